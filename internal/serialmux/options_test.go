package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	want := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N", FlowControl: FlowRTSCTS}
	if opts != want {
		t.Errorf("Normalize() = %+v, want %+v", opts, want)
	}
}

func TestNormalizeParityNames(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"None", "N"}, {"none", "N"}, {"N", "N"},
		{"Even", "E"}, {"Odd", "O"},
		{"Mark", "M"}, {"Space", "S"},
	}
	for _, tt := range tests {
		opts, err := PortOptions{Parity: tt.in}.Normalize()
		if err != nil {
			t.Errorf("Normalize(parity=%q) failed: %v", tt.in, err)
			continue
		}
		if opts.Parity != tt.want {
			t.Errorf("Normalize(parity=%q) = %q, want %q", tt.in, opts.Parity, tt.want)
		}
	}

	if _, err := (PortOptions{Parity: "Sideways"}).Normalize(); err == nil {
		t.Error("expected error for unknown parity")
	}
}

func TestNormalizeFlowControlNames(t *testing.T) {
	for _, in := range []string{"RTS/CTS", "rtscts", "RTS-CTS"} {
		opts, err := PortOptions{FlowControl: in}.Normalize()
		if err != nil {
			t.Fatalf("Normalize(flow=%q) failed: %v", in, err)
		}
		if opts.FlowControl != FlowRTSCTS {
			t.Errorf("Normalize(flow=%q) = %q, want %q", in, opts.FlowControl, FlowRTSCTS)
		}
	}

	opts, err := PortOptions{FlowControl: "XON/XOFF"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if opts.FlowControl != FlowXONXOFF {
		t.Errorf("flow = %q, want %q", opts.FlowControl, FlowXONXOFF)
	}

	if _, err := (PortOptions{FlowControl: "DTR"}).Normalize(); err == nil {
		t.Error("expected error for unknown flow control")
	}
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	if _, err := (PortOptions{DataBits: 9}).Normalize(); err == nil {
		t.Error("expected error for 9 data bits")
	}
	if _, err := (PortOptions{StopBits: 3}).Normalize(); err == nil {
		t.Error("expected error for 3 stop bits")
	}
}

func TestSerialModeMapping(t *testing.T) {
	mode, err := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1.5, Parity: "Even"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode failed: %v", err)
	}
	if mode.BaudRate != 115200 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.StopBits != serial.OnePointFiveStopBits {
		t.Errorf("stop bits = %v, want OnePointFiveStopBits", mode.StopBits)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("parity = %v, want EvenParity", mode.Parity)
	}
}

func TestOptionsEqual(t *testing.T) {
	a := PortOptions{}
	b := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "None", FlowControl: "RTS/CTS"}
	if !a.Equal(b) {
		t.Error("defaults and their explicit spelling should compare equal")
	}

	c := PortOptions{BaudRate: 9600}
	if a.Equal(c) {
		t.Error("different baud rates should not compare equal")
	}
}
