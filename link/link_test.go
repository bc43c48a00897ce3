package link

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
)

// eventPin records every level driven onto it in a log shared by all pins.
type eventPin struct {
	*gpiotest.Pin
	log *[]string
}

func (p *eventPin) Out(l gpio.Level) error {
	*p.log = append(*p.log, fmt.Sprintf("%s=%s", p.N, l))
	return p.Pin.Out(l)
}

func (p *eventPin) In(pull gpio.Pull, edge gpio.Edge) error {
	*p.log = append(*p.log, fmt.Sprintf("%s=in", p.N))
	return p.Pin.In(pull, edge)
}

type fakePort struct {
	rx      bytes.Buffer
	tx      bytes.Buffer
	closed  bool
	flushed int
	readErr error
}

func (f *fakePort) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.rx.Len() == 0 {
		return 0, io.EOF
	}
	return f.rx.Read(p)
}

func (f *fakePort) Write(p []byte) (int, error) { return f.tx.Write(p) }
func (f *fakePort) Close() error                { f.closed = true; return nil }
func (f *fakePort) Flush() error                { f.flushed++; return nil }

type fixture struct {
	link   *Link
	log    []string
	opened []*serial.Config
	ports  []*fakePort
	reset  *eventPin
	boot   *eventPin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	f.reset = &eventPin{Pin: &gpiotest.Pin{N: "GPIO15", Num: 15}, log: &f.log}
	f.boot = &eventPin{Pin: &gpiotest.Pin{N: "GPIO14", Num: 14}, log: &f.log}

	cfg := DefaultConfig("/dev/ttyTEST")
	cfg.ResetHold = time.Millisecond
	cfg.BootHold = time.Millisecond

	f.link = New(cfg)
	f.link.hostInit = func() error { return nil }
	f.link.sleep = func(time.Duration) {}
	f.link.lookupPin = func(name string) gpio.PinIO {
		switch name {
		case "GPIO15":
			return f.reset
		case "GPIO14":
			return f.boot
		}
		return nil
	}
	f.link.openPort = func(c *serial.Config) (port, error) {
		f.opened = append(f.opened, c)
		p := &fakePort{}
		f.ports = append(f.ports, p)
		return p, nil
	}
	return f
}

func TestInitEntersDownloadMode(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.link.Init())

	assert.Equal(t, []string{
		"GPIO15=High", "GPIO14=High",
		"GPIO14=Low", "GPIO15=Low", "GPIO15=High", "GPIO14=High",
	}, f.log)
	require.Len(t, f.opened, 1)
	assert.Equal(t, "/dev/ttyTEST", f.opened[0].Name)
	assert.Equal(t, DefaultBaudRate, f.opened[0].Baud)
	assert.Equal(t, DefaultReadTimeout, f.opened[0].ReadTimeout)
	assert.Equal(t, 1, f.ports[0].flushed)
}

func TestInitErrors(t *testing.T) {
	t.Run("missing pin", func(t *testing.T) {
		f := newFixture(t)
		f.link.cfg.BootPin = "GPIO99"
		err := f.link.Init()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GPIO99")
		assert.Empty(t, f.opened)
	})

	t.Run("host init", func(t *testing.T) {
		f := newFixture(t)
		f.link.hostInit = func() error { return errors.New("no gpio") }
		assert.ErrorContains(t, f.link.Init(), "no gpio")
	})

	t.Run("open fails releases pins", func(t *testing.T) {
		f := newFixture(t)
		f.link.openPort = func(*serial.Config) (port, error) {
			return nil, errors.New("busy")
		}
		require.ErrorContains(t, f.link.Init(), "busy")
		assert.Contains(t, f.log, "GPIO15=in")
		assert.Contains(t, f.log, "GPIO14=in")
		assert.ErrorIs(t, f.link.Deinit(), ErrNotInitialized)
	})

	t.Run("invalid config", func(t *testing.T) {
		f := newFixture(t)
		f.link.cfg.PortName = ""
		assert.Error(t, f.link.Init())
	})

	t.Run("double init", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.link.Init())
		assert.Error(t, f.link.Init())
	})
}

func TestResetTarget(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.link.ResetTarget(), ErrNotInitialized)

	require.NoError(t, f.link.Init())
	f.log = nil
	require.NoError(t, f.link.ResetTarget())
	assert.Equal(t, []string{"GPIO14=High", "GPIO15=Low", "GPIO15=High"}, f.log)
}

func TestSetBaudRateReopens(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.link.Init())

	require.NoError(t, f.link.SetBaudRate(DefaultTransferBaudRate))
	require.Len(t, f.opened, 2)
	assert.True(t, f.ports[0].closed)
	assert.Equal(t, DefaultTransferBaudRate, f.opened[1].Baud)
	assert.Equal(t, DefaultTransferBaudRate, f.link.BaudRate())

	// same rate is a no-op
	require.NoError(t, f.link.SetBaudRate(DefaultTransferBaudRate))
	assert.Len(t, f.opened, 2)
}

func TestDeinitReleasesOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.link.Init())
	f.log = nil

	require.NoError(t, f.link.Deinit())
	assert.Equal(t, []string{"GPIO15=in", "GPIO14=in"}, f.log)
	assert.True(t, f.ports[0].closed)
	assert.Equal(t, gpio.PullNoChange, f.reset.P)

	assert.ErrorIs(t, f.link.Deinit(), ErrNotInitialized)
	_, err := f.link.Write([]byte{1})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestConfigurePassthrough(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.link.Init())
	assert.ErrorIs(t, f.link.ConfigurePassthrough(115200), ErrStillInitialized)

	require.NoError(t, f.link.Deinit())
	require.NoError(t, f.link.ConfigurePassthrough(115200))
	require.Len(t, f.opened, 2)
	assert.Equal(t, 115200, f.opened[1].Baud)

	require.NoError(t, f.link.Close())
	assert.True(t, f.ports[1].closed)
}

func TestPollByte(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.link.PollByte()
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, f.link.ConfigurePassthrough(115200))
	p := f.ports[0]

	b, ok, err := f.link.PollByte()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, b)

	p.rx.WriteString("OK\r\n")
	var got []byte
	for {
		b, ok, err := f.link.PollByte()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, b)
	}
	assert.Equal(t, "OK\r\n", string(got))

	p.readErr = errors.New("unplugged")
	_, _, err = f.link.PollByte()
	assert.ErrorContains(t, err, "unplugged")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no port", func(c *Config) { c.PortName = "" }, true},
		{"zero baud", func(c *Config) { c.BaudRate = 0 }, true},
		{"zero transfer baud", func(c *Config) { c.TransferBaudRate = -1 }, true},
		{"same pins", func(c *Config) { c.BootPin = c.ResetPin }, true},
		{"no reset pin", func(c *Config) { c.ResetPin = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/dev/ttyUSB0")
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
