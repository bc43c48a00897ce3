package esploader

import (
	"time"

	"github.com/moffa90/go-esploader/protocol"
)

// Config holds the client configuration.
type Config struct {
	// Logger is used for logging operations (optional)
	Logger Logger

	// Timeout bounds the wait for one command response
	Timeout time.Duration

	// EraseTimeoutPerMiB is added to the FLASH_BEGIN timeout per MiB erased
	EraseTimeoutPerMiB time.Duration

	// Retries is the number of extra SYNC attempts before giving up
	Retries int

	// SyncInterval is how long each SYNC attempt waits for an answer
	SyncInterval time.Duration

	// BlockSize is the FLASH_DATA payload size
	BlockSize int

	// IdleWait is the pause between reads that returned no data
	IdleWait time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Timeout:            3 * time.Second,
		EraseTimeoutPerMiB: 30 * time.Second,
		Retries:            7,
		SyncInterval:       100 * time.Millisecond,
		BlockSize:          protocol.FlashBlockSize,
		IdleWait:           time.Millisecond,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithLogger sets a logger for client operations.
//
// Example:
//
//	client := esploader.New(port, esploader.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout sets the response timeout for ordinary commands.
//
// Example:
//
//	client := esploader.New(port, esploader.WithTimeout(10*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithEraseTimeout sets the extra FLASH_BEGIN timeout per MiB erased.
func WithEraseTimeout(perMiB time.Duration) Option {
	return func(c *Config) {
		if perMiB >= 0 {
			c.EraseTimeoutPerMiB = perMiB
		}
	}
}

// WithRetries sets the number of extra SYNC attempts.
//
// Example:
//
//	client := esploader.New(port, esploader.WithRetries(10))
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

// WithSyncInterval sets how long each SYNC attempt waits.
func WithSyncInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.SyncInterval = interval
		}
	}
}

// WithBlockSize sets the FLASH_DATA payload size. It must be a multiple of
// four; the ROM rejects anything else.
//
// Example:
//
//	client := esploader.New(port, esploader.WithBlockSize(0x200))
func WithBlockSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size%4 == 0 && size <= 0x4000 {
			c.BlockSize = size
		}
	}
}
