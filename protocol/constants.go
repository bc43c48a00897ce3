package protocol

// Direction bytes of the packet header.
const (
	DirRequest  = 0x00
	DirResponse = 0x01
)

// SLIP framing bytes.
const (
	SlipEnd       = 0xC0
	SlipEsc       = 0xDB
	SlipEscEnd    = 0xDC
	SlipEscEsc    = 0xDD
	HeaderSize    = 8
	MinPacketSize = HeaderSize
)

// ROM loader command opcodes.
const (
	CmdFlashBegin      = 0x02
	CmdFlashData       = 0x03
	CmdFlashEnd        = 0x04
	CmdMemBegin        = 0x05
	CmdMemEnd          = 0x06
	CmdMemData         = 0x07
	CmdSync            = 0x08
	CmdWriteReg        = 0x09
	CmdReadReg         = 0x0A
	CmdSpiSetParams    = 0x0B
	CmdSpiAttach       = 0x0D
	CmdChangeBaudRate  = 0x0F
	CmdFlashDeflBegin  = 0x10
	CmdFlashDeflData   = 0x11
	CmdFlashDeflEnd    = 0x12
	CmdSpiFlashMD5     = 0x13
	CmdGetSecurityInfo = 0x14
)

// ROM loader error codes, reported in the second status byte.
const (
	ErrReceivedMessageInvalid = 0x05
	ErrFailedToAct            = 0x06
	ErrInvalidCRC             = 0x07
	ErrFlashWrite             = 0x08
	ErrFlashRead              = 0x09
	ErrFlashReadLength        = 0x0A
	ErrDeflate                = 0x0B
)

// Flash layout parameters.
const (
	// FlashBlockSize is the payload size of one FLASH_DATA packet used by the ROM loader.
	FlashBlockSize = 0x400

	// FlashSectorSize is the erase granularity of the SPI flash.
	FlashSectorSize = 0x1000

	// FlashPadByte fills the unused tail of the last block of an image.
	FlashPadByte = 0xFF
)

// ChecksumSeed is the initial value of the FLASH_DATA payload checksum.
const ChecksumSeed = 0xEF

// ChipDetectMagicAddress is the register holding a chip specific magic value.
const ChipDetectMagicAddress = 0x40001000

// DefaultBaudRate is the rate the ROM loader listens at after reset.
const DefaultBaudRate = 115200

// Fixed payloads and sizes.
const (
	// SyncPayloadSize is the size of the SYNC command payload.
	SyncPayloadSize = 36

	// FlashDataHeaderSize is the size of the FLASH_DATA header preceding the block data.
	FlashDataHeaderSize = 16

	// SyncResponseCount is the number of responses the ROM emits for one SYNC.
	SyncResponseCount = 8
)
