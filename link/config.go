package link

import (
	"fmt"
	"time"
)

// Defaults match the Challenger fixture wiring.
const (
	DefaultBaudRate         = 115200
	DefaultTransferBaudRate = 2000000
	DefaultResetPin         = "GPIO15"
	DefaultBootPin          = "GPIO14"
	DefaultResetHold        = 100 * time.Millisecond
	DefaultBootHold         = 50 * time.Millisecond
	DefaultReadTimeout      = 100 * time.Millisecond
)

// Config describes the physical link to the target.
type Config struct {
	// PortName is the serial device, e.g. /dev/ttyUSB0
	PortName string

	// BaudRate is the target's normal rate, used at power-up and for passthrough
	BaudRate int

	// TransferBaudRate is the elevated rate negotiated for flashing
	TransferBaudRate int

	// ResetPin and BootPin are periph pin names of the target EN and boot strap lines
	ResetPin string
	BootPin  string

	// ResetHold is how long reset is held low
	ResetHold time.Duration

	// BootHold is how long the boot strap stays low after reset is released
	BootHold time.Duration

	// ReadTimeout bounds one serial read; a timed out read counts as "no data"
	ReadTimeout time.Duration
}

// DefaultConfig returns the fixture defaults for the given serial device.
func DefaultConfig(portName string) Config {
	return Config{
		PortName:         portName,
		BaudRate:         DefaultBaudRate,
		TransferBaudRate: DefaultTransferBaudRate,
		ResetPin:         DefaultResetPin,
		BootPin:          DefaultBootPin,
		ResetHold:        DefaultResetHold,
		BootHold:         DefaultBootHold,
		ReadTimeout:      DefaultReadTimeout,
	}
}

// Validate checks that the configuration can drive a link.
func (c Config) Validate() error {
	if c.PortName == "" {
		return fmt.Errorf("serial port name is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.TransferBaudRate <= 0 {
		return fmt.Errorf("invalid transfer baud rate %d", c.TransferBaudRate)
	}
	if c.ResetPin == "" || c.BootPin == "" {
		return fmt.Errorf("reset and boot pins are required")
	}
	if c.ResetPin == c.BootPin {
		return fmt.Errorf("reset and boot pins must differ, both are %s", c.ResetPin)
	}
	return nil
}
