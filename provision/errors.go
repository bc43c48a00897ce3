package provision

import (
	"errors"
	"fmt"
)

// LinkUnavailableError is returned when the link hardware cannot be claimed.
type LinkUnavailableError struct {
	Err error
}

func (e *LinkUnavailableError) Error() string {
	return fmt.Sprintf("link unavailable: %v", e.Err)
}

func (e *LinkUnavailableError) Unwrap() error {
	return e.Err
}

// ConnectError is returned when the handshake with the target fails.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to target: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TransferError is returned when writing one image fails.
type TransferError struct {
	// Name is the image name
	Name string

	// Address is the flash address of the image
	Address uint32

	// Err is the underlying error
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("write %s at 0x%X: %v", e.Name, e.Address, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// TransferErrors returns every TransferError joined into err.
func TransferErrors(err error) []*TransferError {
	if err == nil {
		return nil
	}
	var out []*TransferError
	var te *TransferError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, TransferErrors(e)...)
		}
		return out
	}
	if errors.As(err, &te) {
		out = append(out, te)
	}
	return out
}
