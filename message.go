package harness

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LogicalAddress is the 4-bit role identifier a CEC device claims on the bus.
type LogicalAddress int

const (
	AddrTV LogicalAddress = iota
	AddrRecorder1
	AddrRecorder2
	AddrTuner1
	AddrPlayback1
	AddrAudioSystem
	AddrTuner2
	AddrTuner3
	AddrPlayback2
	AddrRecorder3
	AddrTuner4
	AddrPlayback3
	AddrReserved1
	AddrReserved2
	AddrFreeUse
	AddrBroadcast
)

var logicalAddressNames = map[LogicalAddress]string{
	AddrTV:          "TV",
	AddrRecorder1:   "Recorder 1",
	AddrRecorder2:   "Recorder 2",
	AddrTuner1:      "Tuner 1",
	AddrPlayback1:   "Playback 1",
	AddrAudioSystem: "Audio System",
	AddrTuner2:      "Tuner 2",
	AddrTuner3:      "Tuner 3",
	AddrPlayback2:   "Playback 2",
	AddrRecorder3:   "Recorder 3",
	AddrTuner4:      "Tuner 4",
	AddrPlayback3:   "Playback 3",
	AddrReserved1:   "Reserved 1",
	AddrReserved2:   "Reserved 2",
	AddrFreeUse:     "Free Use",
	AddrBroadcast:   "Broadcast",
}

func (a LogicalAddress) Valid() bool {
	return a >= AddrTV && a <= AddrBroadcast
}

func (a LogicalAddress) String() string {
	if name, ok := logicalAddressNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", int(a))
}

// DeviceTypeFlag returns the cec-client -t flag value for the device role
// claimed at this address.
func (a LogicalAddress) DeviceTypeFlag() string {
	switch a {
	case AddrTV:
		return "x"
	case AddrRecorder1, AddrRecorder2, AddrRecorder3:
		return "r"
	case AddrTuner1, AddrTuner2, AddrTuner3, AddrTuner4:
		return "t"
	case AddrAudioSystem:
		return "a"
	default:
		return "p"
	}
}

// PhysicalAddress encodes a device's position in the HDMI tree as four
// nibbles, e.g. 1.0.0.0 for a device on the TV's first input.
type PhysicalAddress uint16

// ParsePhysicalAddress parses the dotted a.b.c.d form.
func ParsePhysicalAddress(s string) (PhysicalAddress, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("invalid physical address %q: want 4 dot-separated components", s)
	}
	var addr PhysicalAddress
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 16, 8)
		if err != nil || n > 0xf {
			return 0, fmt.Errorf("invalid physical address component %q in %q", part, s)
		}
		addr = addr<<4 | PhysicalAddress(n)
	}
	return addr, nil
}

func (p PhysicalAddress) String() string {
	return fmt.Sprintf("%x.%x.%x.%x", uint(p>>12&0xf), uint(p>>8&0xf), uint(p>>4&0xf), uint(p&0xf))
}

// Port returns the top-level HDMI input the address hangs off, used for the
// adapter's port binding.
func (p PhysicalAddress) Port() int {
	return int(p >> 12 & 0xf)
}

// Bytes returns the two-byte wire encoding, high byte first.
func (p PhysicalAddress) Bytes() []byte {
	return []byte{byte(p >> 8), byte(p)}
}

// Opcode is a CEC message type.
type Opcode byte

const (
	OpFeatureAbort          Opcode = 0x00
	OpImageViewOn           Opcode = 0x04
	OpStandby               Opcode = 0x36
	OpUserControlPressed    Opcode = 0x44
	OpUserControlReleased   Opcode = 0x45
	OpGiveOsdName           Opcode = 0x46
	OpSetOsdName            Opcode = 0x47
	OpActiveSource          Opcode = 0x82
	OpGivePhysicalAddress   Opcode = 0x83
	OpReportPhysicalAddress Opcode = 0x84
	OpGiveDevicePowerStatus Opcode = 0x8f
	OpReportPowerStatus     Opcode = 0x90
	OpGiveCecVersion        Opcode = 0x9f
	OpCecVersion            Opcode = 0x9e
	OpAbort                 Opcode = 0xff
)

var opcodeNames = map[Opcode]string{
	OpFeatureAbort:          "FEATURE_ABORT",
	OpImageViewOn:           "IMAGE_VIEW_ON",
	OpStandby:               "STANDBY",
	OpUserControlPressed:    "USER_CONTROL_PRESSED",
	OpUserControlReleased:   "USER_CONTROL_RELEASED",
	OpGiveOsdName:           "GIVE_OSD_NAME",
	OpSetOsdName:            "SET_OSD_NAME",
	OpActiveSource:          "ACTIVE_SOURCE",
	OpGivePhysicalAddress:   "GIVE_PHYSICAL_ADDRESS",
	OpReportPhysicalAddress: "REPORT_PHYSICAL_ADDRESS",
	OpGiveDevicePowerStatus: "GIVE_DEVICE_POWER_STATUS",
	OpReportPowerStatus:     "REPORT_POWER_STATUS",
	OpGiveCecVersion:        "GIVE_CEC_VERSION",
	OpCecVersion:            "CEC_VERSION",
	OpAbort:                 "ABORT",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(o))
}

// Message is one decoded CEC frame. Immutable once constructed; At records
// when the monitor observed it.
type Message struct {
	Source      LogicalAddress
	Destination LogicalAddress
	Opcode      Opcode
	Params      []byte
	At          time.Time
}

// NewMessage builds a frame without an observation timestamp, for sending.
func NewMessage(src, dst LogicalAddress, op Opcode, params ...byte) Message {
	return Message{Source: src, Destination: dst, Opcode: op, Params: params}
}

// Equal compares opcode and parameters. Addresses and timestamps are
// deliberately excluded: matching is by message content, addresses are
// queried separately.
func (m Message) Equal(other Message) bool {
	return m.Opcode == other.Opcode && bytes.Equal(m.Params, other.Params)
}

func (m Message) String() string {
	s := fmt.Sprintf("%s -> %s: %s", m.Source, m.Destination, m.Opcode)
	if len(m.Params) > 0 {
		s += fmt.Sprintf(" [% x]", m.Params)
	}
	return s
}
