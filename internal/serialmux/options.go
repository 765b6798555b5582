package serialmux

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// Flow control selectors accepted by Normalize. The rail controller ships
// with hardware flow control enabled, so RTS/CTS is the default.
const (
	FlowNone    = "NONE"
	FlowRTSCTS  = "RTSCTS"
	FlowXONXOFF = "XONXOFF"
)

// PortOptions describes the serial connection parameters used when opening a
// real serial port. The fields mirror the user-facing serial configuration
// model so that options can be passed through without translation.
type PortOptions struct {
	BaudRate    int     `json:"baud_rate"`
	DataBits    int     `json:"data_bits"`
	StopBits    float64 `json:"stop_bits"`
	Parity      string  `json:"parity"`
	FlowControl string  `json:"flow_control"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 1.5 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %v: supported values are 1, 1.5 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	if parity == "" {
		parity = "N"
	}
	switch parity {
	case "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	case "M", "MARK":
		parity = "M"
	case "S", "SPACE":
		parity = "S"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected None, Even, Odd, Mark or Space", opts.Parity)
	}
	opts.Parity = parity

	flow := strings.ToUpper(strings.NewReplacer("/", "", "-", "", " ", "").Replace(opts.FlowControl))
	if flow == "" {
		flow = FlowRTSCTS
	}
	switch flow {
	case FlowNone, FlowRTSCTS, FlowXONXOFF:
	default:
		return opts, fmt.Errorf("unsupported flow control %q: expected None, RTS/CTS or XON/XOFF", opts.FlowControl)
	}
	opts.FlowControl = flow

	return opts, nil
}

// Equal reports whether two PortOptions describe the same serial configuration.
func (o PortOptions) Equal(other PortOptions) bool {
	normalizedA, errA := o.Normalize()
	normalizedB, errB := other.Normalize()
	if errA != nil || errB != nil {
		return false
	}
	return normalizedA == normalizedB
}

// SerialMode converts the port options into the serial.Mode structure
// required by go.bug.st/serial when opening a port. The flow-control setting
// is validated and retained in the options but has no field in serial.Mode;
// the platform driver keeps whatever discipline it was configured with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
	}

	switch opts.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 1.5:
		mode.StopBits = serial.OnePointFiveStopBits
	case 2:
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	case "M":
		mode.Parity = serial.MarkParity
	case "S":
		mode.Parity = serial.SpaceParity
	}

	return mode, nil
}
