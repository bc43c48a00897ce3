package esploader

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-esploader/catalog"
	"github.com/moffa90/go-esploader/internal/romsim"
	"github.com/moffa90/go-esploader/protocol"
)

func newTestClient(port Port, opts ...Option) *Client {
	opts = append([]Option{
		WithRetries(1),
		WithSyncInterval(20 * time.Millisecond),
		WithTimeout(200 * time.Millisecond),
	}, opts...)
	return New(port, opts...)
}

// portOnly hides the simulator's Resetter so FLASH_END is used.
type portOnly struct {
	t *romsim.Target
}

func (p portOnly) Read(b []byte) (int, error)  { return p.t.Read(b) }
func (p portOnly) Write(b []byte) (int, error) { return p.t.Write(b) }
func (p portOnly) SetBaudRate(baud int) error  { return p.t.SetBaudRate(baud) }

func TestNew(t *testing.T) {
	t.Run("nil port panics", func(t *testing.T) {
		assert.Panics(t, func() { New(nil) })
	})

	t.Run("defaults", func(t *testing.T) {
		c := New(romsim.New())
		assert.Equal(t, protocol.FlashBlockSize, c.config.BlockSize)
		assert.Equal(t, 7, c.config.Retries)
		assert.Equal(t, 100*time.Millisecond, c.config.SyncInterval)
	})

	t.Run("options", func(t *testing.T) {
		c := New(romsim.New(),
			WithBlockSize(0x200),
			WithRetries(2),
			WithTimeout(time.Second),
			WithSyncInterval(time.Millisecond),
			WithEraseTimeout(time.Second),
		)
		assert.Equal(t, 0x200, c.config.BlockSize)
		assert.Equal(t, 2, c.config.Retries)
		assert.Equal(t, time.Second, c.config.Timeout)
		assert.Equal(t, time.Millisecond, c.config.SyncInterval)
		assert.Equal(t, time.Second, c.config.EraseTimeoutPerMiB)
	})

	t.Run("invalid block size ignored", func(t *testing.T) {
		c := New(romsim.New(), WithBlockSize(3))
		assert.Equal(t, protocol.FlashBlockSize, c.config.BlockSize)
	})
}

func TestConnect(t *testing.T) {
	sim := romsim.New()
	c := newTestClient(sim)

	variant, err := c.Connect(context.Background(), 2000000)
	require.NoError(t, err)
	assert.Equal(t, catalog.VariantESP32C6, variant)

	chip, ok := c.Chip()
	require.True(t, ok)
	assert.Equal(t, "ESP32-C6", chip.Name)

	assert.Equal(t, []int{2000000}, sim.BaudRates())
	assert.Equal(t, 2000000, sim.TargetBaudRate())
	assert.Equal(t, []byte{
		protocol.CmdSync,
		protocol.CmdReadReg,
		protocol.CmdSpiAttach,
		protocol.CmdChangeBaudRate,
	}, sim.Ops())
}

func TestConnectDefaultBaudSkipsChange(t *testing.T) {
	sim := romsim.New()
	c := newTestClient(sim)

	_, err := c.Connect(context.Background(), protocol.DefaultBaudRate)
	require.NoError(t, err)
	assert.Empty(t, sim.BaudRates())
	assert.NotContains(t, sim.Ops(), byte(protocol.CmdChangeBaudRate))
}

func TestConnectLegacyStatusLayout(t *testing.T) {
	sim := romsim.New(romsim.WithChip(protocol.ChipESP32))
	c := newTestClient(sim)

	variant, err := c.Connect(context.Background(), protocol.DefaultBaudRate)
	require.NoError(t, err)
	assert.Equal(t, catalog.Variant("ESP32"), variant)
}

func TestConnectFailures(t *testing.T) {
	t.Run("no answer", func(t *testing.T) {
		sim := romsim.New(romsim.WithUnresponsive())
		c := newTestClient(sim)

		_, err := c.Connect(context.Background(), 2000000)
		require.Error(t, err)

		var ce *ConnectError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "sync", ce.Stage)
		assert.True(t, IsTimeout(err))
		assert.Len(t, sim.Ops(), 0)

		_, ok := c.Chip()
		assert.False(t, ok)
	})

	t.Run("unknown chip", func(t *testing.T) {
		sim := romsim.New(romsim.WithMagic(0xDEADBEEF))
		c := newTestClient(sim)

		_, err := c.Connect(context.Background(), 2000000)
		var uce *UnsupportedChipError
		require.ErrorAs(t, err, &uce)
		assert.Equal(t, uint32(0xDEADBEEF), uce.Magic)
		assert.NotContains(t, sim.Ops(), byte(protocol.CmdSpiAttach))
	})

	t.Run("baud rate switch fails", func(t *testing.T) {
		sim := romsim.New(romsim.WithBaudRateError(errors.New("unsupported rate")))
		c := newTestClient(sim)

		_, err := c.Connect(context.Background(), 2000000)
		var ce *ConnectError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "baud rate", ce.Stage)
		assert.ErrorContains(t, err, "unsupported rate")
	})

	t.Run("cancelled", func(t *testing.T) {
		sim := romsim.New(romsim.WithUnresponsive())
		c := New(sim, WithSyncInterval(time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Connect(ctx, 2000000)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWriteImage(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		blocks int
	}{
		{"single partial block", 100, 1},
		{"exact block", protocol.FlashBlockSize, 1},
		{"multiple blocks with tail", 3*protocol.FlashBlockSize + 17, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := romsim.New()
			c := newTestClient(sim)
			_, err := c.Connect(context.Background(), 2000000)
			require.NoError(t, err)

			data := bytes.Repeat([]byte{0xA5, 0x5A, 0xC0, 0xDB}, tt.size/4+1)[:tt.size]
			require.NoError(t, c.WriteImage(context.Background(), 0x8000, data))

			writes := sim.Writes()
			require.Len(t, writes, 1)
			assert.Equal(t, uint32(0x8000), writes[0].Offset)
			assert.Equal(t, uint32(tt.size), writes[0].EraseSize)
			assert.Equal(t, data, writes[0].Data)

			var dataOps int
			for _, op := range sim.Ops() {
				if op == protocol.CmdFlashData {
					dataOps++
				}
			}
			assert.Equal(t, tt.blocks, dataOps)
		})
	}
}

func TestWriteImageInOrder(t *testing.T) {
	sim := romsim.New()
	c := newTestClient(sim)
	_, err := c.Connect(context.Background(), 2000000)
	require.NoError(t, err)

	for _, addr := range []uint32{0x0, 0x8000, 0xd000} {
		require.NoError(t, c.WriteImage(context.Background(), addr, []byte{byte(addr >> 12), 1, 2, 3}))
	}

	writes := sim.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, uint32(0x0), writes[0].Offset)
	assert.Equal(t, uint32(0x8000), writes[1].Offset)
	assert.Equal(t, uint32(0xd000), writes[2].Offset)
}

func TestWriteImageErrors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		c := newTestClient(romsim.New())
		assert.ErrorIs(t, c.WriteImage(context.Background(), 0, []byte{1}), ErrNotConnected)
	})

	t.Run("empty image", func(t *testing.T) {
		c := newTestClient(romsim.New())
		_, err := c.Connect(context.Background(), 2000000)
		require.NoError(t, err)
		assert.Error(t, c.WriteImage(context.Background(), 0, nil))
	})

	t.Run("rom flash error", func(t *testing.T) {
		sim := romsim.New(romsim.WithFlashError(0x1e000, protocol.ErrFlashWrite))
		c := newTestClient(sim)
		_, err := c.Connect(context.Background(), 2000000)
		require.NoError(t, err)

		err = c.WriteImage(context.Background(), 0x1e000, []byte{1, 2, 3})
		require.Error(t, err)
		assert.True(t, protocol.IsProtocolError(err))

		var pe *protocol.ProtocolError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, byte(protocol.ErrFlashWrite), pe.Code)

		// later images are unaffected
		require.NoError(t, c.WriteImage(context.Background(), 0x1f000, []byte{4, 5, 6}))
		_, ok := sim.Image(0x1f000)
		assert.True(t, ok)
	})

	t.Run("cancelled", func(t *testing.T) {
		c := newTestClient(romsim.New())
		_, err := c.Connect(context.Background(), 2000000)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, c.WriteImage(ctx, 0, []byte{1}), context.Canceled)
	})
}

func TestResetTarget(t *testing.T) {
	t.Run("hardware reset", func(t *testing.T) {
		sim := romsim.New()
		c := newTestClient(sim)
		_, err := c.Connect(context.Background(), 2000000)
		require.NoError(t, err)

		require.NoError(t, c.ResetTarget(context.Background()))
		assert.Equal(t, 1, sim.Resets())
		assert.Equal(t, 0, sim.SoftResets())
		assert.ErrorIs(t, c.WriteImage(context.Background(), 0, []byte{1}), ErrNotConnected)
	})

	t.Run("soft reset", func(t *testing.T) {
		sim := romsim.New()
		c := newTestClient(portOnly{sim})
		_, err := c.Connect(context.Background(), 2000000)
		require.NoError(t, err)

		require.NoError(t, c.ResetTarget(context.Background()))
		assert.Equal(t, 0, sim.Resets())
		assert.Equal(t, 1, sim.SoftResets())
	})

	t.Run("soft reset needs connection", func(t *testing.T) {
		c := newTestClient(portOnly{romsim.New()})
		assert.ErrorIs(t, c.ResetTarget(context.Background()), ErrNotConnected)
	})
}

func TestEraseTimeout(t *testing.T) {
	c := New(romsim.New(), WithTimeout(3*time.Second), WithEraseTimeout(30*time.Second))

	assert.Equal(t, 3*time.Second, c.eraseTimeout(1024))
	assert.Equal(t, 30*time.Second, c.eraseTimeout(1<<20))
	assert.Equal(t, 60*time.Second, c.eraseTimeout(2<<20))
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "connect",
			err:  &ConnectError{Stage: "sync", Err: errors.New("boom")},
			want: "connect failed at sync: boom",
		},
		{
			name: "unsupported chip",
			err:  &UnsupportedChipError{Magic: 0x12},
			want: "unsupported chip: magic value 0x00000012",
		},
		{
			name: "timeout",
			err:  &TimeoutError{Operation: "sync", Timeout: time.Second},
			want: "sync: no response within 1s",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
