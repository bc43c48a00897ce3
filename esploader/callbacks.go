package esploader

import "io"

// Port is the serial link to the chip.
type Port interface {
	io.ReadWriter

	// SetBaudRate changes the host side line rate. Reads that time out must
	// return (0, nil) or (0, io.EOF).
	SetBaudRate(baud int) error
}

// Resetter is implemented by ports that control the chip's reset line.
type Resetter interface {
	ResetTarget() error
}

// Logger is an optional logging interface that can be provided to the client.
// logger.Logger satisfies it.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...any)
}
