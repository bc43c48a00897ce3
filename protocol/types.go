package protocol

import "fmt"

// Chip describes a target chip family as seen by the ROM loader.
type Chip struct {
	// Name is the marketing name, e.g. "ESP32-C6"
	Name string

	// ID is the chip ID reported by GET_SECURITY_INFO on chips that support it
	ID uint32

	// Magic lists the values of the register at ChipDetectMagicAddress
	// that identify this chip (one per silicon revision)
	Magic []uint32

	// StatusBytes is the number of trailing status bytes in ROM responses
	StatusBytes int

	// EncryptedFlashBegin reports whether FLASH_BEGIN takes a fifth
	// "encrypted" word on this chip
	EncryptedFlashBegin bool
}

func (c Chip) String() string {
	return c.Name
}

// Known chips. ESP8266 and ESP32 use the legacy ROM response layout.
var (
	ChipESP8266 = Chip{Name: "ESP8266", Magic: []uint32{0xFFF0C101}, StatusBytes: 2}
	ChipESP32   = Chip{Name: "ESP32", ID: 0x00, Magic: []uint32{0x00F01D83}, StatusBytes: 4}
	ChipESP32S2 = Chip{Name: "ESP32-S2", ID: 0x02, Magic: []uint32{0x000007C6}, StatusBytes: 2, EncryptedFlashBegin: true}
	ChipESP32C3 = Chip{Name: "ESP32-C3", ID: 0x05, Magic: []uint32{0x6921506F, 0x1B31506F, 0x4881606F, 0x4361606F}, StatusBytes: 2, EncryptedFlashBegin: true}
	ChipESP32S3 = Chip{Name: "ESP32-S3", ID: 0x09, Magic: []uint32{0x00000009}, StatusBytes: 2, EncryptedFlashBegin: true}
	ChipESP32C2 = Chip{Name: "ESP32-C2", ID: 0x0C, Magic: []uint32{0x6F51306F, 0x7C41A06F}, StatusBytes: 2, EncryptedFlashBegin: true}
	ChipESP32C6 = Chip{Name: "ESP32-C6", ID: 0x0D, Magic: []uint32{0x2CE0806F}, StatusBytes: 2, EncryptedFlashBegin: true}
	ChipESP32H2 = Chip{Name: "ESP32-H2", ID: 0x10, Magic: []uint32{0xD7B73E80}, StatusBytes: 2, EncryptedFlashBegin: true}
)

// Chips is the detection table, in lookup order.
var Chips = []Chip{
	ChipESP8266,
	ChipESP32,
	ChipESP32S2,
	ChipESP32C3,
	ChipESP32S3,
	ChipESP32C2,
	ChipESP32C6,
	ChipESP32H2,
}

// DetectChip returns the chip whose magic value matches.
func DetectChip(magic uint32) (Chip, bool) {
	for _, c := range Chips {
		for _, m := range c.Magic {
			if m == magic {
				return c, true
			}
		}
	}
	return Chip{}, false
}

// Command is a decoded command packet. Used by simulators and tests.
type Command struct {
	// Op is the command opcode
	Op byte

	// Checksum is the header checksum word
	Checksum uint32

	// Data is the command payload
	Data []byte
}

// Response is a decoded response packet.
type Response struct {
	// Op is the opcode of the command being answered
	Op byte

	// Value is the 32-bit header value (register contents for READ_REG)
	Value uint32

	// Data is the response payload including the trailing status bytes
	Data []byte
}

// FlashBegin holds the FLASH_BEGIN parameters.
type FlashBegin struct {
	// EraseSize is the number of bytes to erase starting at Offset
	EraseSize uint32

	// Blocks is the number of FLASH_DATA packets that will follow
	Blocks uint32

	// BlockSize is the payload size of each FLASH_DATA packet
	BlockSize uint32

	// Offset is the flash address of the image
	Offset uint32

	// Encrypted requests on-the-fly flash encryption (only sent when the chip takes the word)
	Encrypted bool
}

func (f FlashBegin) String() string {
	return fmt.Sprintf("offset=0x%X size=%d blocks=%d", f.Offset, f.EraseSize, f.Blocks)
}
