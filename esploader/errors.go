package esploader

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned by flash operations before a successful Connect.
var ErrNotConnected = errors.New("esploader: not connected")

// ConnectError is returned when the connect handshake fails.
type ConnectError struct {
	// Stage is the handshake step that failed ("sync", "detect", "spi attach", "baud rate")
	Stage string

	// Err is the underlying error
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed at %s: %v", e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// UnsupportedChipError is returned when the chip detect register holds an
// unknown magic value.
type UnsupportedChipError struct {
	Magic uint32
}

func (e *UnsupportedChipError) Error() string {
	return fmt.Sprintf("unsupported chip: magic value 0x%08X", e.Magic)
}

// TimeoutError is returned when the ROM does not answer in time.
type TimeoutError struct {
	// Operation is the command that timed out
	Operation string

	// Timeout is how long the client waited
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response within %s", e.Operation, e.Timeout)
}

// IsTimeout returns true if the error is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
