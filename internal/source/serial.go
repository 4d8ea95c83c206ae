package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/depthmesh/internal/monitoring"
	"go.bug.st/serial"
)

// PortOptions describes the serial connection parameters for a line-mode
// depth sensor.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for unset values.
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
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch parity := strings.TrimSpace(strings.ToUpper(opts.Parity)); parity {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into a go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// ParseLine parses one comma separated frame of exactly n samples.
// Surrounding whitespace on each value is ignored.
func ParseLine(line string, n int) ([]uint16, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != n {
		return nil, fmt.Errorf("%w: line has %d values, want %d", ErrMalformedChunk, len(fields), n)
	}
	samples := make([]uint16, n)
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", ErrMalformedChunk, i, err)
		}
		samples[i] = uint16(v)
	}
	return samples, nil
}

// SerialSource reads newline terminated frames from a serial device.
type SerialSource struct {
	Path    string
	Options PortOptions

	width, height int
	out           Publisher
}

// NewSerialSource creates a source publishing width x height frames to out.
func NewSerialSource(path string, opts PortOptions, width, height int, out Publisher) *SerialSource {
	return &SerialSource{Path: path, Options: opts, width: width, height: height, out: out}
}

// Start opens the port and reads frames until ctx is cancelled or the
// port fails.
func (s *SerialSource) Start(ctx context.Context) error {
	mode, err := s.Options.SerialMode()
	if err != nil {
		return err
	}
	port, err := serial.Open(s.Path, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.Path, err)
	}
	defer port.Close()
	monitoring.Logf("[SerialSource] reading %dx%d frames from %s at %d baud",
		s.width, s.height, s.Path, mode.BaudRate)

	go func() {
		<-ctx.Done()
		port.Close()
	}()
	err = ReadFrames(ctx, port, s.width, s.height, s.out)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ReadFrames scans r for frame lines and publishes each valid one.
// Malformed lines are logged and skipped. It returns nil at end of input.
func ReadFrames(ctx context.Context, r io.Reader, width, height int, out Publisher) error {
	n := width * height
	scan := bufio.NewScanner(r)
	// Up to five digits plus a separator per sample.
	scan.Buffer(make([]byte, 0, 64*1024), 6*n+64)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scan.Err()
	}()

	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			lineNo++
			if strings.TrimSpace(line) == "" {
				continue
			}
			samples, err := ParseLine(line, n)
			if err != nil {
				monitoring.Logf("[SerialSource] line %d: %v", lineNo, err)
				continue
			}
			if err := out.Publish(samples); err != nil {
				monitoring.Logf("[SerialSource] line %d: publish: %v", lineNo, err)
			}
		}
	}
}
