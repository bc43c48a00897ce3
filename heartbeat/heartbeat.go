// Package heartbeat drives a liveness indicator while a provisioning run is
// writing flash.
//
// A Heartbeat is an owned, cancellable periodic task. It toggles one output
// pin at a fixed interval, independent of transfer progress, and touches
// nothing else. Stop is synchronous: once it returns the pin has been driven
// low and will not be driven by this heartbeat again, so the pin can safely
// be reassigned.
package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/periph/conn/gpio"
)

// DefaultInterval is the toggle period of the indicator.
const DefaultInterval = 250 * time.Millisecond

// Pin is the output the heartbeat drives. periph's gpio.PinOut satisfies it.
type Pin interface {
	Out(l gpio.Level) error
}

// Logger receives pin errors. logger.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a Heartbeat.
type Option func(*Heartbeat)

// WithLogger sets a logger for pin errors.
func WithLogger(l Logger) Option {
	return func(h *Heartbeat) {
		h.logger = l
	}
}

// Heartbeat toggles a pin until stopped.
type Heartbeat struct {
	pin      Pin
	interval time.Duration
	logger   Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error

	running atomic.Bool
	toggles atomic.Int64
	level   gpio.Level
}

// Start drives pin high and begins toggling it every interval.
// A non-positive interval selects DefaultInterval.
func Start(pin Pin, interval time.Duration, opts ...Option) *Heartbeat {
	if pin == nil {
		panic("heartbeat: pin cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{
		pin:      pin,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
		level:    gpio.High,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.drive(gpio.High)
	h.running.Store(true)
	go h.run(ctx)

	return h
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.level = !h.level
			h.drive(h.level)
			h.toggles.Add(1)
		}
	}
}

// Stop cancels the heartbeat, waits for it to finish and leaves the pin low.
// It is safe to call more than once; later calls return the first result.
func (h *Heartbeat) Stop() error {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
		h.running.Store(false)
		h.stopErr = h.pin.Out(gpio.Low)
		if h.stopErr != nil && h.logger != nil {
			h.logger.Error("heartbeat: failed to turn indicator off", "error", h.stopErr)
		}
	})
	return h.stopErr
}

// Running reports whether the heartbeat is still toggling.
func (h *Heartbeat) Running() bool {
	return h.running.Load()
}

// Toggles returns how many times the pin has been toggled.
func (h *Heartbeat) Toggles() int {
	return int(h.toggles.Load())
}

func (h *Heartbeat) drive(l gpio.Level) {
	if err := h.pin.Out(l); err != nil && h.logger != nil {
		h.logger.Debug("heartbeat: pin write failed", "error", err)
	}
}
