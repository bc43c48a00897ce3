package protocol

import (
	"encoding/binary"
	"fmt"
)

// BuildCommand constructs a raw command packet (before SLIP framing).
//
// Packet structure:
//
//	[0x00][OP][SIZE_L][SIZE_H][CHECKSUM(4)][DATA...]
func BuildCommand(op byte, data []byte, checksum uint32) []byte {
	pkt := make([]byte, HeaderSize, HeaderSize+len(data))
	pkt[0] = DirRequest
	pkt[1] = op
	binary.LittleEndian.PutUint16(pkt[2:4], uint16(len(data)))
	binary.LittleEndian.PutUint32(pkt[4:8], checksum)
	return append(pkt, data...)
}

// BuildSyncCmd constructs the SYNC command used to autobaud the ROM loader.
//
// Payload: 0x07 0x07 0x12 0x20 followed by 32 bytes of 0x55.
func BuildSyncCmd() []byte {
	data := make([]byte, SyncPayloadSize)
	copy(data, []byte{0x07, 0x07, 0x12, 0x20})
	for i := 4; i < len(data); i++ {
		data[i] = 0x55
	}
	return BuildCommand(CmdSync, data, 0)
}

// BuildReadRegCmd constructs a READ_REG command for a 32-bit register.
func BuildReadRegCmd(addr uint32) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, addr)
	return BuildCommand(CmdReadReg, data, 0)
}

// BuildSpiAttachCmd constructs the SPI_ATTACH command selecting the default
// SPI flash pins.
//
// Payload: [HSPI_ARG(4)][IS_LEGACY(4)], both zero.
func BuildSpiAttachCmd() []byte {
	return BuildCommand(CmdSpiAttach, make([]byte, 8), 0)
}

// BuildChangeBaudRateCmd constructs CHANGE_BAUDRATE. oldBaud must be zero
// when talking to the ROM loader (only the flasher stub uses it).
func BuildChangeBaudRateCmd(newBaud, oldBaud uint32) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], newBaud)
	binary.LittleEndian.PutUint32(data[4:8], oldBaud)
	return BuildCommand(CmdChangeBaudRate, data, 0)
}

// BuildFlashBeginCmd constructs FLASH_BEGIN. The fifth word is only emitted
// when withEncryptedWord is set, matching what the chip's ROM expects.
//
// Payload: [ERASE_SIZE(4)][BLOCKS(4)][BLOCK_SIZE(4)][OFFSET(4)]([ENCRYPTED(4)])
func BuildFlashBeginCmd(p FlashBegin, withEncryptedWord bool) ([]byte, error) {
	if p.BlockSize == 0 {
		return nil, fmt.Errorf("block size cannot be zero")
	}
	if p.Blocks == 0 {
		return nil, fmt.Errorf("block count cannot be zero")
	}

	size := 16
	if withEncryptedWord {
		size = 20
	}
	data := make([]byte, size)
	binary.LittleEndian.PutUint32(data[0:4], p.EraseSize)
	binary.LittleEndian.PutUint32(data[4:8], p.Blocks)
	binary.LittleEndian.PutUint32(data[8:12], p.BlockSize)
	binary.LittleEndian.PutUint32(data[12:16], p.Offset)
	if withEncryptedWord && p.Encrypted {
		binary.LittleEndian.PutUint32(data[16:20], 1)
	}
	return BuildCommand(CmdFlashBegin, data, 0), nil
}

// BuildFlashDataCmd constructs FLASH_DATA for one block. The block must
// already be padded to the size announced in FLASH_BEGIN.
//
// Payload: [DATA_SIZE(4)][SEQ(4)][0(4)][0(4)][DATA...], checksum over DATA.
func BuildFlashDataCmd(block []byte, seq uint32) ([]byte, error) {
	if len(block) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}

	data := make([]byte, FlashDataHeaderSize, FlashDataHeaderSize+len(block))
	binary.LittleEndian.PutUint32(data[0:4], uint32(len(block)))
	binary.LittleEndian.PutUint32(data[4:8], seq)
	data = append(data, block...)
	return BuildCommand(CmdFlashData, data, Checksum(block)), nil
}

// BuildFlashEndCmd constructs FLASH_END. With reboot set the ROM restarts
// the chip into the freshly written application.
func BuildFlashEndCmd(reboot bool) []byte {
	data := make([]byte, 4)
	if !reboot {
		binary.LittleEndian.PutUint32(data, 1)
	}
	return BuildCommand(CmdFlashEnd, data, 0)
}

// ParseCommand decodes a raw command packet. It is the inverse of
// BuildCommand and is used by target simulators.
func ParseCommand(pkt []byte) (*Command, error) {
	if len(pkt) < MinPacketSize {
		return nil, fmt.Errorf("packet too short: got %d bytes, minimum is %d", len(pkt), MinPacketSize)
	}
	if pkt[0] != DirRequest {
		return nil, fmt.Errorf("invalid direction: got 0x%02X, expected 0x%02X", pkt[0], DirRequest)
	}

	size := int(binary.LittleEndian.Uint16(pkt[2:4]))
	if len(pkt) != HeaderSize+size {
		return nil, fmt.Errorf("packet length mismatch: got %d bytes, expected %d", len(pkt), HeaderSize+size)
	}

	return &Command{
		Op:       pkt[1],
		Checksum: binary.LittleEndian.Uint32(pkt[4:8]),
		Data:     pkt[HeaderSize:],
	}, nil
}

// ParseFlashBegin decodes a FLASH_BEGIN payload.
func ParseFlashBegin(data []byte) (FlashBegin, error) {
	if len(data) != 16 && len(data) != 20 {
		return FlashBegin{}, fmt.Errorf("invalid FLASH_BEGIN payload length: %d", len(data))
	}
	p := FlashBegin{
		EraseSize: binary.LittleEndian.Uint32(data[0:4]),
		Blocks:    binary.LittleEndian.Uint32(data[4:8]),
		BlockSize: binary.LittleEndian.Uint32(data[8:12]),
		Offset:    binary.LittleEndian.Uint32(data[12:16]),
	}
	if len(data) == 20 {
		p.Encrypted = binary.LittleEndian.Uint32(data[16:20]) != 0
	}
	return p, nil
}

// ParseFlashData decodes a FLASH_DATA payload into its sequence number and block.
func ParseFlashData(data []byte) (seq uint32, block []byte, err error) {
	if len(data) < FlashDataHeaderSize {
		return 0, nil, fmt.Errorf("FLASH_DATA payload too short: %d bytes", len(data))
	}
	size := binary.LittleEndian.Uint32(data[0:4])
	seq = binary.LittleEndian.Uint32(data[4:8])
	block = data[FlashDataHeaderSize:]
	if uint32(len(block)) != size {
		return 0, nil, fmt.Errorf("FLASH_DATA size mismatch: header says %d, got %d", size, len(block))
	}
	return seq, block, nil
}
