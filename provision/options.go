package provision

import (
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/moffa90/go-esploader/heartbeat"
)

// Fixture defaults.
const (
	DefaultTransferBaudRate    = 2000000
	DefaultPassthroughBaudRate = 115200
	DefaultPollInterval        = time.Millisecond
)

// DefaultBanner is printed when a run starts.
var DefaultBanner = []string{
	"iLabs ESP32-C2/C3/C6 flash utility V1.0",
	"ESP-AT interpreter V4.0.0.0 for Challenger Boards.",
}

// RelayBanner separates the provisioning output from the target's console.
var RelayBanner = []string{
	"********************************************",
	"*** Logs below are print from slave .... ***",
	"********************************************",
}

// Config holds the provisioner configuration.
type Config struct {
	// Output receives the status stream and the relayed console
	Output io.Writer

	// Color enables coloured failure lines
	Color bool

	// Logger is used for logging operations (optional)
	Logger Logger

	// ProgressCallback is called on state changes and after each image (optional)
	ProgressCallback ProgressCallback

	// Banner lines are printed when the run starts
	Banner []string

	// Indicator is the heartbeat pin; nil disables the heartbeat
	Indicator heartbeat.Pin

	// HeartbeatInterval is the indicator toggle period
	HeartbeatInterval time.Duration

	// TransferBaudRate is requested from the target for flashing
	TransferBaudRate int

	// PassthroughBaudRate is the target console rate used by the relay
	PassthroughBaudRate int

	// PollInterval is the idle wait between relay polls that found no byte
	PollInterval time.Duration

	// AbortOnTransferError skips the remaining images after a failed write
	AbortOnTransferError bool

	// HaltOnFailure blocks a failed run until the context is cancelled
	HaltOnFailure bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Output:              os.Stdout,
		Color:               !color.NoColor,
		Banner:              DefaultBanner,
		HeartbeatInterval:   heartbeat.DefaultInterval,
		TransferBaudRate:    DefaultTransferBaudRate,
		PassthroughBaudRate: DefaultPassthroughBaudRate,
		PollInterval:        DefaultPollInterval,
		HaltOnFailure:       true,
	}
}

// Option is a functional option for configuring the Provisioner.
type Option func(*Config)

// WithOutput sets the status and relay output. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		if w != nil {
			c.Output = w
		}
	}
}

// WithColor enables or disables coloured status lines. By default colour is
// used when stdout is a terminal.
func WithColor(enabled bool) Option {
	return func(c *Config) {
		c.Color = enabled
	}
}

// WithLogger sets a logger for provisioning operations.
//
// Example:
//
//	p := provision.New(lnk, client, images, provision.WithLogger(logger.GetLogger()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithProgressCallback sets a callback function to track the run.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithBanner replaces the startup banner lines.
func WithBanner(lines ...string) Option {
	return func(c *Config) {
		c.Banner = lines
	}
}

// WithIndicator sets the pin toggled while images are written.
//
// Example:
//
//	led := gpioreg.ByName("GPIO25")
//	p := provision.New(lnk, client, images, provision.WithIndicator(led))
func WithIndicator(pin heartbeat.Pin) Option {
	return func(c *Config) {
		c.Indicator = pin
	}
}

// WithHeartbeatInterval sets the indicator toggle period.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.HeartbeatInterval = interval
		}
	}
}

// WithBaudRates sets the transfer and passthrough baud rates.
//
// Example:
//
//	p := provision.New(lnk, client, images, provision.WithBaudRates(921600, 115200))
func WithBaudRates(transfer, passthrough int) Option {
	return func(c *Config) {
		if transfer > 0 {
			c.TransferBaudRate = transfer
		}
		if passthrough > 0 {
			c.PassthroughBaudRate = passthrough
		}
	}
}

// WithPollInterval sets the relay idle wait.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

// WithAbortOnTransferError selects the transfer failure policy. When true a
// failed image skips the rest of the set; when false (the default) every
// image is attempted.
func WithAbortOnTransferError(abort bool) Option {
	return func(c *Config) {
		c.AbortOnTransferError = abort
	}
}

// WithHaltOnFailure controls whether a failed connect blocks until the
// context is cancelled (the default) or returns immediately.
func WithHaltOnFailure(halt bool) Option {
	return func(c *Config) {
		c.HaltOnFailure = halt
	}
}
