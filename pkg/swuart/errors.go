package swuart

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized indicates Init hasn't succeeded.
	ErrNotInitialized = errors.New("not initialized")
	// ErrBusy indicates a unit is still being transmitted.
	ErrBusy = errors.New("transmitter busy")
	// ErrNoConfig indicates a nil Config.
	ErrNoConfig = errors.New("config required")
	// ErrNoLine indicates a nil line function.
	ErrNoLine = errors.New("line required")
	// ErrNoTimer indicates the timer is not reserved in the pool.
	ErrNoTimer = errors.New("timer not reserved")
)

// ConfigError reports an unacceptable Config field.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrorFlags are sticky reception errors.
type ErrorFlags uint8

// Reception errors.
const (
	FramingError ErrorFlags = 1 << iota
	ParityError
	OverrunError
)

// String implements fmt.Stringer.
func (f ErrorFlags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	if f&FramingError != 0 {
		names = append(names, "framing")
	}
	if f&ParityError != 0 {
		names = append(names, "parity")
	}
	if f&OverrunError != 0 {
		names = append(names, "overrun")
	}
	return strings.Join(names, "|")
}
