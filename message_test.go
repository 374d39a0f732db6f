package harness

import (
	"testing"
)

func TestParsePhysicalAddress(t *testing.T) {
	tests := []struct {
		in   string
		want PhysicalAddress
	}{
		{"0.0.0.0", 0x0000},
		{"1.0.0.0", 0x1000},
		{"2.1.0.0", 0x2100},
		{"f.f.f.f", 0xffff},
	}
	for _, tt := range tests {
		got, err := ParsePhysicalAddress(tt.in)
		if err != nil {
			t.Errorf("ParsePhysicalAddress(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePhysicalAddress(%q) = 0x%04x, want 0x%04x", tt.in, uint16(got), uint16(tt.want))
		}
		if got.String() != tt.in {
			t.Errorf("PhysicalAddress(0x%04x).String() = %q, want %q", uint16(got), got.String(), tt.in)
		}
	}
}

func TestParsePhysicalAddress_Invalid(t *testing.T) {
	for _, in := range []string{"", "1.0.0", "1.0.0.0.0", "1.0.0.g", "10.0.0.0", "1..0.0"} {
		if _, err := ParsePhysicalAddress(in); err == nil {
			t.Errorf("ParsePhysicalAddress(%q) succeeded, want error", in)
		}
	}
}

func TestPhysicalAddress_Port(t *testing.T) {
	addr, err := ParsePhysicalAddress("2.1.0.0")
	if err != nil {
		t.Fatalf("ParsePhysicalAddress failed: %v", err)
	}
	if port := addr.Port(); port != 2 {
		t.Errorf("Expected port 2, got %d", port)
	}
}

func TestPhysicalAddress_Bytes(t *testing.T) {
	addr := PhysicalAddress(0x1000)
	b := addr.Bytes()
	if len(b) != 2 || b[0] != 0x10 || b[1] != 0x00 {
		t.Errorf("Expected bytes [10 00], got [% x]", b)
	}
}

func TestLogicalAddress_Valid(t *testing.T) {
	if !AddrPlayback1.Valid() {
		t.Error("Expected Playback 1 to be a valid address")
	}
	if LogicalAddress(16).Valid() {
		t.Error("Expected address 16 to be invalid")
	}
	if LogicalAddress(-1).Valid() {
		t.Error("Expected address -1 to be invalid")
	}
}

func TestLogicalAddress_DeviceTypeFlag(t *testing.T) {
	tests := []struct {
		addr LogicalAddress
		want string
	}{
		{AddrTV, "x"},
		{AddrRecorder1, "r"},
		{AddrTuner3, "t"},
		{AddrAudioSystem, "a"},
		{AddrPlayback1, "p"},
		{AddrPlayback3, "p"},
	}
	for _, tt := range tests {
		if got := tt.addr.DeviceTypeFlag(); got != tt.want {
			t.Errorf("%s.DeviceTypeFlag() = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestOpcode_String(t *testing.T) {
	if got := OpReportPhysicalAddress.String(); got != "REPORT_PHYSICAL_ADDRESS" {
		t.Errorf("Expected REPORT_PHYSICAL_ADDRESS, got %q", got)
	}
	if got := Opcode(0x42).String(); got != "0x42" {
		t.Errorf("Expected 0x42 for unknown opcode, got %q", got)
	}
}

func TestMessage_Equal(t *testing.T) {
	a := NewMessage(AddrPlayback1, AddrBroadcast, OpReportPhysicalAddress, 0x10, 0x00, 0x04)
	b := NewMessage(AddrTV, AddrPlayback1, OpReportPhysicalAddress, 0x10, 0x00, 0x04)
	c := NewMessage(AddrPlayback1, AddrBroadcast, OpReportPhysicalAddress, 0x20, 0x00, 0x04)

	// Addresses are excluded from equality; only opcode and params count.
	if !a.Equal(b) {
		t.Error("Expected frames with same opcode and params to be equal")
	}
	if a.Equal(c) {
		t.Error("Expected frames with different params to differ")
	}
}
