// Package romsim simulates the serial loader in an ESP chip's mask ROM.
//
// A Target decodes the SLIP framed commands written to it, validates them
// the way the ROM does and queues the responses for Read. Flash writes and
// resets are recorded so tests can assert on what reached the chip.
package romsim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/moffa90/go-esploader/protocol"
)

// Write is one completed image write.
type Write struct {
	// Offset is the flash address announced in FLASH_BEGIN
	Offset uint32

	// EraseSize is the erase size announced in FLASH_BEGIN
	EraseSize uint32

	// Data is the image as received, without block padding
	Data []byte
}

type pendingWrite struct {
	begin protocol.FlashBegin
	next  uint32
	data  []byte
}

// Target is a simulated ROM loader. It implements the esploader Port and
// Resetter contracts.
//
// Target is safe for concurrent use.
type Target struct {
	mu sync.Mutex

	chip  protocol.Chip
	magic uint32

	dec protocol.Decoder
	out bytes.Buffer

	synced   bool
	attached bool
	baud     int
	pending  *pendingWrite

	ops        []byte
	writes     []Write
	resets     int
	softResets int
	bauds      []int

	unresponsive bool
	failAt       map[uint32]byte
	failBaud     error
}

// Option configures a Target.
type Option func(*Target)

// WithChip selects the simulated chip. The default is ESP32-C6.
func WithChip(c protocol.Chip) Option {
	return func(t *Target) {
		t.chip = c
		if len(c.Magic) > 0 {
			t.magic = c.Magic[0]
		}
	}
}

// WithMagic overrides the value of the chip detect register.
func WithMagic(magic uint32) Option {
	return func(t *Target) {
		t.magic = magic
	}
}

// WithUnresponsive makes the target ignore every command, as a chip that
// never entered download mode would.
func WithUnresponsive() Option {
	return func(t *Target) {
		t.unresponsive = true
	}
}

// WithFlashError makes every FLASH_DATA block of the image at offset fail
// with the ROM error code.
func WithFlashError(offset uint32, code byte) Option {
	return func(t *Target) {
		t.failAt[offset] = code
	}
}

// WithBaudRateError makes SetBaudRate fail.
func WithBaudRateError(err error) Option {
	return func(t *Target) {
		t.failBaud = err
	}
}

// New creates a simulated target waiting in download mode.
func New(opts ...Option) *Target {
	t := &Target{
		baud:   protocol.DefaultBaudRate,
		failAt: make(map[uint32]byte),
	}
	WithChip(protocol.ChipESP32C6)(t)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Read returns queued response bytes. With nothing queued it returns
// (0, io.EOF) like a serial port whose read timed out.
func (t *Target) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.out.Len() == 0 {
		return 0, io.EOF
	}
	return t.out.Read(p)
}

// Write feeds host bytes into the ROM's SLIP decoder.
func (t *Target) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range p {
		pkt, ok := t.dec.Feed(b)
		if !ok {
			continue
		}
		t.handle(pkt)
	}
	return len(p), nil
}

// SetBaudRate records the host side rate change.
func (t *Target) SetBaudRate(baud int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failBaud != nil {
		return t.failBaud
	}
	t.bauds = append(t.bauds, baud)
	return nil
}

// ResetTarget performs a hardware reset. The chip leaves the loader, so
// the session state is dropped.
func (t *Target) ResetTarget() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets++
	t.reboot()
	t.out.Reset()
	return nil
}

func (t *Target) reboot() {
	t.synced = false
	t.attached = false
	t.pending = nil
	t.baud = protocol.DefaultBaudRate
	t.dec.Reset()
}

func (t *Target) handle(pkt []byte) {
	if t.unresponsive {
		return
	}
	cmd, err := protocol.ParseCommand(pkt)
	if err != nil {
		// The ROM answers malformed packets with an "invalid message" status
		// when it can at least read the opcode.
		if len(pkt) >= 2 {
			t.fail(pkt[1], protocol.ErrReceivedMessageInvalid)
		}
		return
	}
	t.ops = append(t.ops, cmd.Op)

	if cmd.Op != protocol.CmdSync && !t.synced {
		// Before autobaud the ROM has not locked onto the line rate.
		return
	}

	switch cmd.Op {
	case protocol.CmdSync:
		t.handleSync(cmd)
	case protocol.CmdReadReg:
		t.handleReadReg(cmd)
	case protocol.CmdSpiAttach:
		t.attached = true
		t.ok(cmd.Op, 0)
	case protocol.CmdChangeBaudRate:
		t.handleChangeBaudRate(cmd)
	case protocol.CmdFlashBegin:
		t.handleFlashBegin(cmd)
	case protocol.CmdFlashData:
		t.handleFlashData(cmd)
	case protocol.CmdFlashEnd:
		t.handleFlashEnd(cmd)
	default:
		t.fail(cmd.Op, protocol.ErrReceivedMessageInvalid)
	}
}

func (t *Target) handleSync(cmd *protocol.Command) {
	if !bytes.Equal(cmd.Data, syncPayload()) {
		return
	}
	t.synced = true
	for i := 0; i < protocol.SyncResponseCount; i++ {
		t.ok(cmd.Op, 0)
	}
}

func (t *Target) handleReadReg(cmd *protocol.Command) {
	if len(cmd.Data) != 4 {
		t.fail(cmd.Op, protocol.ErrReceivedMessageInvalid)
		return
	}
	var value uint32
	if binary.LittleEndian.Uint32(cmd.Data) == protocol.ChipDetectMagicAddress {
		value = t.magic
	}
	t.ok(cmd.Op, value)
}

func (t *Target) handleChangeBaudRate(cmd *protocol.Command) {
	if len(cmd.Data) != 8 {
		t.fail(cmd.Op, protocol.ErrReceivedMessageInvalid)
		return
	}
	// The acknowledgement still goes out at the old rate.
	t.ok(cmd.Op, 0)
	t.baud = int(binary.LittleEndian.Uint32(cmd.Data[0:4]))
}

func (t *Target) handleFlashBegin(cmd *protocol.Command) {
	begin, err := protocol.ParseFlashBegin(cmd.Data)
	if err != nil || !t.attached {
		t.fail(cmd.Op, protocol.ErrFailedToAct)
		return
	}
	want := 16
	if t.chip.EncryptedFlashBegin {
		want = 20
	}
	if len(cmd.Data) != want {
		t.fail(cmd.Op, protocol.ErrReceivedMessageInvalid)
		return
	}
	t.pending = &pendingWrite{begin: begin}
	t.ok(cmd.Op, 0)
}

func (t *Target) handleFlashData(cmd *protocol.Command) {
	seq, block, err := protocol.ParseFlashData(cmd.Data)
	if err != nil || t.pending == nil {
		t.fail(cmd.Op, protocol.ErrReceivedMessageInvalid)
		return
	}
	w := t.pending
	if code, ok := t.failAt[w.begin.Offset]; ok {
		t.fail(cmd.Op, code)
		return
	}
	if seq != w.next || uint32(len(block)) != w.begin.BlockSize {
		t.fail(cmd.Op, protocol.ErrReceivedMessageInvalid)
		return
	}
	if protocol.Checksum(block) != cmd.Checksum {
		t.fail(cmd.Op, protocol.ErrInvalidCRC)
		return
	}

	w.data = append(w.data, block...)
	w.next++
	if w.next == w.begin.Blocks {
		size := w.begin.EraseSize
		if size > uint32(len(w.data)) {
			size = uint32(len(w.data))
		}
		t.writes = append(t.writes, Write{
			Offset:    w.begin.Offset,
			EraseSize: w.begin.EraseSize,
			Data:      append([]byte(nil), w.data[:size]...),
		})
		t.pending = nil
	}
	t.ok(cmd.Op, 0)
}

func (t *Target) handleFlashEnd(cmd *protocol.Command) {
	if len(cmd.Data) != 4 {
		t.fail(cmd.Op, protocol.ErrReceivedMessageInvalid)
		return
	}
	t.ok(cmd.Op, 0)
	if binary.LittleEndian.Uint32(cmd.Data) == 0 {
		t.softResets++
		t.reboot()
	}
}

func (t *Target) ok(op byte, value uint32) {
	t.out.Write(protocol.Encode(protocol.BuildResponse(op, value, nil, 0, 0, t.chip.StatusBytes)))
}

func (t *Target) fail(op byte, code byte) {
	t.out.Write(protocol.Encode(protocol.BuildResponse(op, 0, nil, 1, code, t.chip.StatusBytes)))
}

func syncPayload() []byte {
	cmd, _ := protocol.ParseCommand(protocol.BuildSyncCmd())
	return cmd.Data
}

// Writes returns the completed image writes in arrival order.
func (t *Target) Writes() []Write {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Write, len(t.writes))
	copy(out, t.writes)
	return out
}

// Image returns the data written at offset.
func (t *Target) Image(offset uint32) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range t.writes {
		if w.Offset == offset {
			return w.Data, true
		}
	}
	return nil, false
}

// Ops returns the opcodes of every well-formed command received.
func (t *Target) Ops() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.ops...)
}

// Resets returns the number of hardware resets.
func (t *Target) Resets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

// SoftResets returns the number of FLASH_END reboots.
func (t *Target) SoftResets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.softResets
}

// BaudRates returns the host side rates set through SetBaudRate.
func (t *Target) BaudRates() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.bauds...)
}

// TargetBaudRate returns the rate the simulated ROM is running at.
func (t *Target) TargetBaudRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baud
}

func (t *Target) String() string {
	return fmt.Sprintf("romsim %s", t.chip)
}
