// Package link owns the physical connection to the target: one serial port
// and the reset and boot-mode control lines.
//
// The same serial device is used twice. During provisioning it carries the
// ROM loader protocol and the control lines hold the target in download
// mode. After Deinit the lines are released and ConfigurePassthrough
// reopens the port at the target's normal rate for console relay.
//
// A Link has a single owner and is not safe for concurrent use.
package link

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

var (
	// ErrNotInitialized is returned when the control link is not held.
	ErrNotInitialized = errors.New("link: not initialized")

	// ErrNotOpen is returned by I/O on a closed port.
	ErrNotOpen = errors.New("link: serial port not open")

	// ErrStillInitialized is returned by ConfigurePassthrough before Deinit.
	ErrStillInitialized = errors.New("link: control link still held, call Deinit first")
)

// port is the subset of *serial.Port the link uses.
type port interface {
	io.ReadWriteCloser
	Flush() error
}

// Logger is an optional logging interface. logger.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a Link.
type Option func(*Link)

// WithLogger sets a logger for link operations.
func WithLogger(l Logger) Option {
	return func(k *Link) {
		k.logger = l
	}
}

// Link is the link driver.
type Link struct {
	cfg    Config
	logger Logger

	// hardware hooks, replaced in tests
	hostInit  func() error
	lookupPin func(name string) gpio.PinIO
	openPort  func(c *serial.Config) (port, error)
	sleep     func(time.Duration)

	port  port
	baud  int
	reset gpio.PinIO
	boot  gpio.PinIO

	initialized bool
	passthrough bool

	buf  [256]byte
	head int
	tail int
}

// New creates a link for cfg. No hardware is touched until Init.
func New(cfg Config, opts ...Option) *Link {
	k := &Link{
		cfg:       cfg,
		hostInit:  initHost,
		lookupPin: gpioreg.ByName,
		openPort:  openSerial,
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func initHost() error {
	_, err := host.Init()
	return err
}

func openSerial(c *serial.Config) (port, error) {
	return serial.OpenPort(c)
}

// Config returns the link configuration.
func (k *Link) Config() Config {
	return k.cfg
}

// Init claims the control pins, opens the serial port at the normal baud
// rate and straps the target into download mode.
func (k *Link) Init() error {
	if k.initialized {
		return fmt.Errorf("link: already initialized")
	}
	if err := k.cfg.Validate(); err != nil {
		return fmt.Errorf("link: %w", err)
	}
	if err := k.hostInit(); err != nil {
		return fmt.Errorf("link: host init: %w", err)
	}

	reset, err := k.pin(k.cfg.ResetPin)
	if err != nil {
		return err
	}
	boot, err := k.pin(k.cfg.BootPin)
	if err != nil {
		return err
	}
	// Idle levels: target running, normal boot strap.
	if err := reset.Out(gpio.High); err != nil {
		return fmt.Errorf("link: drive %s: %w", reset, err)
	}
	if err := boot.Out(gpio.High); err != nil {
		return fmt.Errorf("link: drive %s: %w", boot, err)
	}
	k.reset, k.boot = reset, boot

	if err := k.open(k.cfg.BaudRate); err != nil {
		k.releasePins()
		return err
	}
	k.initialized = true

	if err := k.EnterDownloadMode(); err != nil {
		_ = k.Deinit()
		return err
	}

	k.logInfo("link initialized", "port", k.cfg.PortName, "baud", k.cfg.BaudRate)
	return nil
}

// LookupPin resolves a named GPIO, initializing the host drivers first.
func (k *Link) LookupPin(name string) (gpio.PinIO, error) {
	if err := k.hostInit(); err != nil {
		return nil, fmt.Errorf("link: host init: %w", err)
	}
	return k.pin(name)
}

func (k *Link) pin(name string) (gpio.PinIO, error) {
	p := k.lookupPin(name)
	if p == nil {
		return nil, fmt.Errorf("link: no such pin %q", name)
	}
	return p, nil
}

// EnterDownloadMode pulses reset with the boot strap held low so the ROM
// starts its serial loader.
func (k *Link) EnterDownloadMode() error {
	if !k.initialized {
		return ErrNotInitialized
	}
	if err := k.boot.Out(gpio.Low); err != nil {
		return fmt.Errorf("link: boot strap low: %w", err)
	}
	if err := k.pulseReset(); err != nil {
		return err
	}
	k.sleep(k.cfg.BootHold)
	if err := k.boot.Out(gpio.High); err != nil {
		return fmt.Errorf("link: boot strap high: %w", err)
	}
	k.discardInput()
	k.logDebug("target strapped into download mode")
	return nil
}

// ResetTarget pulses reset with the boot strap high so the target boots the
// application in flash.
func (k *Link) ResetTarget() error {
	if !k.initialized {
		return ErrNotInitialized
	}
	if err := k.boot.Out(gpio.High); err != nil {
		return fmt.Errorf("link: boot strap high: %w", err)
	}
	if err := k.pulseReset(); err != nil {
		return err
	}
	k.logDebug("target reset")
	return nil
}

func (k *Link) pulseReset() error {
	if err := k.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("link: reset low: %w", err)
	}
	k.sleep(k.cfg.ResetHold)
	if err := k.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("link: reset high: %w", err)
	}
	return nil
}

// Read reads from the serial port. A timed out read returns (0, io.EOF).
func (k *Link) Read(p []byte) (int, error) {
	if k.port == nil {
		return 0, ErrNotOpen
	}
	return k.port.Read(p)
}

// Write writes to the serial port.
func (k *Link) Write(p []byte) (int, error) {
	if k.port == nil {
		return 0, ErrNotOpen
	}
	return k.port.Write(p)
}

// BaudRate returns the rate the port is currently open at.
func (k *Link) BaudRate() int {
	return k.baud
}

// SetBaudRate reopens the port at baud. The serial driver cannot retune an
// open port, so this closes and reopens the device.
func (k *Link) SetBaudRate(baud int) error {
	if k.port == nil {
		return ErrNotOpen
	}
	if baud == k.baud {
		return nil
	}
	if err := k.closePort(); err != nil {
		return err
	}
	return k.open(baud)
}

// Deinit closes the transfer port and releases both control pins. It must be
// called exactly once after a successful Init.
func (k *Link) Deinit() error {
	if !k.initialized {
		return ErrNotInitialized
	}
	k.initialized = false

	err := k.closePort()
	if perr := k.releasePins(); err == nil {
		err = perr
	}
	k.logDebug("link released")
	return err
}

// ConfigurePassthrough reopens the serial device at baud for console relay.
// The control pins must already be released.
func (k *Link) ConfigurePassthrough(baud int) error {
	if k.initialized {
		return ErrStillInitialized
	}
	if k.port != nil {
		if err := k.closePort(); err != nil {
			return err
		}
	}
	if err := k.open(baud); err != nil {
		return err
	}
	k.passthrough = true
	k.logInfo("passthrough configured", "port", k.cfg.PortName, "baud", baud)
	return nil
}

// PollByte returns the next received byte if one is available. It waits at
// most ReadTimeout and reports false when nothing arrived.
func (k *Link) PollByte() (byte, bool, error) {
	if k.port == nil {
		return 0, false, ErrNotOpen
	}
	if k.head == k.tail {
		n, err := k.port.Read(k.buf[:])
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, false, fmt.Errorf("link: read: %w", err)
		}
		if n == 0 {
			return 0, false, nil
		}
		k.head, k.tail = 0, n
	}
	b := k.buf[k.head]
	k.head++
	return b, true, nil
}

// Close releases everything the link still holds.
func (k *Link) Close() error {
	if k.initialized {
		return k.Deinit()
	}
	k.passthrough = false
	return k.closePort()
}

func (k *Link) open(baud int) error {
	timeout := k.cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	p, err := k.openPort(&serial.Config{
		Name:        k.cfg.PortName,
		Baud:        baud,
		ReadTimeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("link: open %s at %d baud: %w", k.cfg.PortName, baud, err)
	}
	k.port = p
	k.baud = baud
	k.head, k.tail = 0, 0
	return nil
}

func (k *Link) closePort() error {
	if k.port == nil {
		return nil
	}
	err := k.port.Close()
	k.port = nil
	k.baud = 0
	k.head, k.tail = 0, 0
	if err != nil {
		return fmt.Errorf("link: close %s: %w", k.cfg.PortName, err)
	}
	return nil
}

// releasePins turns both control lines into floating inputs so the target's
// own pull-ups decide their level.
func (k *Link) releasePins() error {
	var err error
	for _, p := range []gpio.PinIO{k.reset, k.boot} {
		if p == nil {
			continue
		}
		if e := p.In(gpio.PullNoChange, gpio.NoEdge); e != nil && err == nil {
			err = fmt.Errorf("link: release %s: %w", p, e)
		}
	}
	k.reset, k.boot = nil, nil
	return err
}

func (k *Link) discardInput() {
	if k.port == nil {
		return
	}
	if err := k.port.Flush(); err != nil {
		k.logDebug("flush failed", "error", err)
	}
	k.head, k.tail = 0, 0
}

func (k *Link) logDebug(msg string, keysAndValues ...any) {
	if k.logger != nil {
		k.logger.Debug(msg, keysAndValues...)
	}
}

func (k *Link) logInfo(msg string, keysAndValues ...any) {
	if k.logger != nil {
		k.logger.Info(msg, keysAndValues...)
	}
}
