package harness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultTrafficPattern matches incoming traffic lines as cec-client prints
// them, e.g. `TRAFFIC: [ate1234]	>> 4f:84:10:00:04`. The single capture
// group must isolate the colon-separated hex payload; everything around it
// (timestamps, log level prefixes) is adapter noise.
const DefaultTrafficPattern = `>>\s+([0-9a-fA-F]{2}(?::[0-9a-fA-F]{2})*)`

// Codec translates between the adapter's line-oriented text protocol and
// decoded Messages. The traffic grammar is adapter-specific, so the payload
// pattern is configurable rather than hard-coded.
type Codec struct {
	traffic *regexp.Regexp
}

// barePayload is what Encode emits: a self-contained payload line with no
// adapter framing around it.
var barePayload = regexp.MustCompile(`^[0-9a-fA-F]{2}(?::[0-9a-fA-F]{2})*$`)

func NewCodec(pattern string) (*Codec, error) {
	if pattern == "" {
		pattern = DefaultTrafficPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid traffic pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("traffic pattern %q must capture the hex payload", pattern)
	}
	return &Codec{traffic: re}, nil
}

// Decode isolates the hex payload from a raw adapter line and parses it.
// The first byte carries the source and destination nibbles, the second the
// opcode, the rest are parameters. Lines without a payload, or with one too
// short to carry an opcode, return a *DecodeError.
func (c *Codec) Decode(line string) (Message, error) {
	payload := strings.TrimSpace(line)
	if !barePayload.MatchString(payload) {
		m := c.traffic.FindStringSubmatch(line)
		if m == nil {
			return Message{}, &DecodeError{Line: line, Reason: "no frame payload"}
		}
		payload = m[1]
	}

	parts := strings.Split(payload, ":")
	raw := make([]byte, 0, len(parts))
	for _, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return Message{}, &DecodeError{Line: line, Reason: fmt.Sprintf("bad byte %q", part)}
		}
		raw = append(raw, byte(b))
	}

	// Single-byte frames are polls; they carry no opcode and are not useful
	// to expectation matching.
	if len(raw) < 2 {
		return Message{}, &DecodeError{Line: line, Reason: "frame too short"}
	}

	return Message{
		Source:      LogicalAddress(raw[0] >> 4),
		Destination: LogicalAddress(raw[0] & 0xf),
		Opcode:      Opcode(raw[1]),
		Params:      raw[2:],
	}, nil
}

// Encode renders a frame as the colon-separated hex form the adapter's
// transmit command accepts, e.g. "40:04" or "4f:84:10:00:04".
func (c *Codec) Encode(m Message) string {
	parts := make([]string, 0, len(m.Params)+2)
	header := byte(m.Source&0xf)<<4 | byte(m.Destination&0xf)
	parts = append(parts, fmt.Sprintf("%02x", header), fmt.Sprintf("%02x", byte(m.Opcode)))
	for _, p := range m.Params {
		parts = append(parts, fmt.Sprintf("%02x", p))
	}
	return strings.Join(parts, ":")
}
