package esploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/moffa90/go-esploader/catalog"
	"github.com/moffa90/go-esploader/protocol"
)

const (
	// settle time after a baud rate change before the ROM listens again
	baudSettle = 50 * time.Millisecond

	mib = 1 << 20
)

// Client talks to the ROM loader of one chip.
//
// Client is safe for concurrent use; calls are serialized.
type Client struct {
	mu     sync.Mutex
	port   Port
	config Config

	chip      protocol.Chip
	connected bool

	dec  protocol.Decoder
	rbuf []byte
	rx   []byte
}

// New creates a client on port. The port must already be open and the chip
// held in download mode.
//
// Example:
//
//	client := esploader.New(port,
//	    esploader.WithLogger(myLogger),
//	    esploader.WithTimeout(5*time.Second),
//	)
func New(port Port, opts ...Option) *Client {
	if port == nil {
		panic("port cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		port:   port,
		config: cfg,
		rbuf:   make([]byte, 256),
	}
}

// Chip returns the chip identified by the last successful Connect.
func (c *Client) Chip() (protocol.Chip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chip, c.connected
}

// Connect performs the ROM handshake:
//  1. SYNC until the ROM answers (Retries+1 attempts)
//  2. Read the chip detect register and identify the chip
//  3. Attach the SPI flash
//  4. Switch both ends to baud (skipped when baud is the ROM default)
//
// The returned variant names the detected chip.
func (c *Client) Connect(ctx context.Context, baud int) (catalog.Variant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	c.chip = protocol.Chip{}
	c.resetInput()

	if err := c.sync(ctx); err != nil {
		return "", &ConnectError{Stage: "sync", Err: err}
	}

	resp, err := c.command(ctx, protocol.CmdReadReg,
		protocol.BuildReadRegCmd(protocol.ChipDetectMagicAddress), c.config.Timeout)
	if err != nil {
		return "", &ConnectError{Stage: "detect", Err: err}
	}
	chip, ok := protocol.DetectChip(resp.Value)
	if !ok {
		return "", &ConnectError{Stage: "detect", Err: &UnsupportedChipError{Magic: resp.Value}}
	}
	c.chip = chip
	c.logDebug("chip detected", "chip", chip.Name, "magic", fmt.Sprintf("0x%08X", resp.Value))

	if _, err := c.command(ctx, protocol.CmdSpiAttach, protocol.BuildSpiAttachCmd(), c.config.Timeout); err != nil {
		return "", &ConnectError{Stage: "spi attach", Err: err}
	}

	if baud > 0 && baud != protocol.DefaultBaudRate {
		if err := c.changeBaudRate(ctx, baud); err != nil {
			return "", &ConnectError{Stage: "baud rate", Err: err}
		}
	}

	c.connected = true
	c.logInfo("connected", "chip", chip.Name, "baud", baud)
	return catalog.Variant(chip.Name), nil
}

// sync autobauds the ROM. The ROM answers one SYNC with several identical
// responses; the extras are discarded.
func (c *Client) sync(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := c.command(ctx, protocol.CmdSync, protocol.BuildSyncCmd(), c.config.SyncInterval)
		if err == nil {
			c.drain()
			c.logDebug("synced", "attempts", attempt+1)
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		c.logDebug("sync attempt failed", "attempt", attempt+1, "error", err)
		c.resetInput()
	}
	return fmt.Errorf("no answer after %d attempts: %w", c.config.Retries+1, lastErr)
}

func (c *Client) changeBaudRate(ctx context.Context, baud int) error {
	if _, err := c.command(ctx, protocol.CmdChangeBaudRate,
		protocol.BuildChangeBaudRateCmd(uint32(baud), 0), c.config.Timeout); err != nil {
		return err
	}
	if err := c.port.SetBaudRate(baud); err != nil {
		return fmt.Errorf("set port baud rate: %w", err)
	}
	if err := sleep(ctx, baudSettle); err != nil {
		return err
	}
	c.drain()
	return nil
}

// WriteImage erases the flash region at address and writes data to it.
//
// The image is sent in BlockSize blocks; the last block is padded with 0xFF.
// ROM failures are returned as *protocol.ProtocolError, silence as
// *TimeoutError.
func (c *Client) WriteImage(ctx context.Context, address uint32, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	if len(data) == 0 {
		return fmt.Errorf("image at 0x%X is empty", address)
	}

	blockSize := c.config.BlockSize
	blocks := (len(data) + blockSize - 1) / blockSize
	begin := protocol.FlashBegin{
		EraseSize: uint32(len(data)),
		Blocks:    uint32(blocks),
		BlockSize: uint32(blockSize),
		Offset:    address,
	}

	pkt, err := protocol.BuildFlashBeginCmd(begin, c.chip.EncryptedFlashBegin)
	if err != nil {
		return err
	}
	c.logDebug("flash begin", "offset", fmt.Sprintf("0x%X", address), "size", len(data), "blocks", blocks)
	if _, err := c.command(ctx, protocol.CmdFlashBegin, pkt, c.eraseTimeout(len(data))); err != nil {
		return fmt.Errorf("flash begin: %w", err)
	}

	block := make([]byte, blockSize)
	for seq := 0; seq < blocks; seq++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		chunk := data[seq*blockSize:]
		if len(chunk) > blockSize {
			chunk = chunk[:blockSize]
		}
		n := copy(block, chunk)
		for i := n; i < blockSize; i++ {
			block[i] = protocol.FlashPadByte
		}

		pkt, err := protocol.BuildFlashDataCmd(block, uint32(seq))
		if err != nil {
			return err
		}
		if _, err := c.command(ctx, protocol.CmdFlashData, pkt, c.config.Timeout); err != nil {
			return fmt.Errorf("flash data block %d/%d: %w", seq+1, blocks, err)
		}
	}

	c.logDebug("image written", "offset", fmt.Sprintf("0x%X", address), "bytes", len(data))
	return nil
}

// ResetTarget restarts the chip into the written application. The client
// must Connect again before further flash operations.
func (c *Client) ResetTarget(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.port.(Resetter); ok {
		c.connected = false
		if err := r.ResetTarget(); err != nil {
			return fmt.Errorf("hardware reset: %w", err)
		}
		c.logDebug("hardware reset")
		return nil
	}

	if !c.connected {
		return ErrNotConnected
	}
	c.connected = false
	if _, err := c.command(ctx, protocol.CmdFlashEnd, protocol.BuildFlashEndCmd(true), c.config.Timeout); err != nil {
		return fmt.Errorf("flash end: %w", err)
	}
	c.logDebug("soft reset")
	return nil
}

// eraseTimeout scales the FLASH_BEGIN timeout with the region size, since
// the ROM erases before it answers.
func (c *Client) eraseTimeout(size int) time.Duration {
	t := time.Duration(float64(c.config.EraseTimeoutPerMiB) * float64(size) / mib)
	if t < c.config.Timeout {
		return c.config.Timeout
	}
	return t
}

// command sends a packet and waits for the response to op. Responses to
// other opcodes (late SYNC replies) are skipped.
func (c *Client) command(ctx context.Context, op byte, pkt []byte, timeout time.Duration) (*protocol.Response, error) {
	if _, err := c.port.Write(protocol.Encode(pkt)); err != nil {
		return nil, fmt.Errorf("write %s: %w", protocol.CommandName(op), err)
	}

	deadline := time.Now().Add(timeout)
	for {
		raw, err := c.readPacket(ctx, deadline)
		if err != nil {
			if errors.Is(err, errDeadline) {
				return nil, &TimeoutError{Operation: protocol.CommandName(op), Timeout: timeout}
			}
			return nil, err
		}

		resp, err := protocol.ParseResponse(raw)
		if err != nil {
			c.logDebug("discarding malformed packet", "error", err)
			continue
		}
		if resp.Op != op {
			continue
		}
		if err := resp.Check(op, c.statusBytes(resp)); err != nil {
			return nil, err
		}
		return resp, nil
	}
}

// statusBytes returns the status trailer length. Before the chip is known
// it is inferred from the payload of the payload-less handshake replies.
func (c *Client) statusBytes(resp *protocol.Response) int {
	if c.chip.StatusBytes > 0 {
		return c.chip.StatusBytes
	}
	if len(resp.Data) == 4 {
		return 4
	}
	return 2
}

var errDeadline = errors.New("deadline")

// readPacket returns the next SLIP packet received before deadline.
func (c *Client) readPacket(ctx context.Context, deadline time.Time) ([]byte, error) {
	for {
		for len(c.rx) > 0 {
			b := c.rx[0]
			c.rx = c.rx[1:]
			if pkt, ok := c.dec.Feed(b); ok {
				return pkt, nil
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, errDeadline
		}

		n, err := c.port.Read(c.rbuf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			if err := sleep(ctx, c.config.IdleWait); err != nil {
				return nil, err
			}
			continue
		}
		c.rx = append(c.rx[:0], c.rbuf[:n]...)
	}
}

// drain discards everything already received.
func (c *Client) drain() {
	c.resetInput()
	for {
		n, err := c.port.Read(c.rbuf)
		if n == 0 || (err != nil && !errors.Is(err, io.EOF)) {
			return
		}
	}
}

func (c *Client) resetInput() {
	c.rx = c.rx[:0]
	c.dec.Reset()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// logDebug logs a debug message if a logger is configured.
func (c *Client) logDebug(msg string, keysAndValues ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (c *Client) logInfo(msg string, keysAndValues ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}
