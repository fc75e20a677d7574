package swuart

import (
	"fmt"
	"strconv"
)

// Data bits limits.
const (
	MinDataBits = 3
	MaxDataBits = 10
)

// Parity defines the parity mode.
type Parity uint8

// Parity modes.
const (
	ParityNone Parity = 0
	ParityOdd  Parity = 1
	ParityEven Parity = 2
)

// String implements fmt.Stringer.
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	}
	return "?"
}

// Level returns the line level of the parity bit given the number of
// data bits set to 1.
func (p Parity) Level(setBits uint8) Level {
	odd := setBits&1 != 0
	if p == ParityEven {
		return levelOf(odd)
	}
	return levelOf(!odd)
}

// StopBits defines the number of stop bits.
type StopBits uint8

// Stop bits.
const (
	Stop1 StopBits = 1
	Stop2 StopBits = 2
)

// Config describes the framing of a software UART.
// A Transmitter or Receiver keeps a reference to it after Init, so it must
// stay unchanged for as long as they are in use.
type Config struct {
	// BitWidth is the duration of one bit in ticks.
	// Transmitters need at least 2, receivers need a multiple of 4
	// (or 8 with TripleScan).
	BitWidth uint16
	Stop     StopBits
	Parity   Parity
	// DataBits is the number of data bits per unit, 3 to 10.
	DataBits uint8
	// TripleScan samples each bit three times and decides by majority.
	TripleScan bool
}

// String returns the conventional short form, e.g. "8N1".
func (c Config) String() string {
	return fmt.Sprintf("%d%s%d", c.DataBits, c.Parity, c.Stop)
}

// FrameBits returns the number of bit times of a whole frame.
func (c Config) FrameBits() int {
	n := 1 + int(c.DataBits) + int(c.Stop)
	if c.Parity != ParityNone {
		n++
	}
	return n
}

// UnitMask returns the mask of the data bits.
func (c Config) UnitMask() uint16 {
	return uint16(1)<<c.DataBits - 1
}

func (c *Config) validateFraming() error {
	if c.DataBits < MinDataBits || c.DataBits > MaxDataBits {
		return &ConfigError{Field: "DataBits", Reason: fmt.Sprintf("%d not in [%d, %d]", c.DataBits, MinDataBits, MaxDataBits)}
	}
	if c.Stop != Stop1 && c.Stop != Stop2 {
		return &ConfigError{Field: "Stop", Reason: fmt.Sprintf("%d stop bits", c.Stop)}
	}
	switch c.Parity {
	case ParityNone, ParityOdd, ParityEven:
	default:
		return &ConfigError{Field: "Parity", Reason: fmt.Sprintf("unknown mode %d", c.Parity)}
	}
	return nil
}

// ParseFormat parses the short form like "8N1" or "10E2" into
// DataBits, Parity and Stop of a Config.
func ParseFormat(format string) (Config, error) {
	var cfg Config
	if len(format) < 3 {
		return cfg, fmt.Errorf("invalid format %q", format)
	}
	n := len(format)
	bits, err := strconv.ParseUint(format[:n-2], 10, 8)
	if err != nil {
		return cfg, fmt.Errorf("invalid data bits in %q", format)
	}
	cfg.DataBits = uint8(bits)
	switch format[n-2] {
	case 'N', 'n':
		cfg.Parity = ParityNone
	case 'O', 'o':
		cfg.Parity = ParityOdd
	case 'E', 'e':
		cfg.Parity = ParityEven
	default:
		return cfg, fmt.Errorf("invalid parity in %q", format)
	}
	switch format[n-1] {
	case '1':
		cfg.Stop = Stop1
	case '2':
		cfg.Stop = Stop2
	default:
		return cfg, fmt.Errorf("invalid stop bits in %q", format)
	}
	return cfg, cfg.validateFraming()
}
