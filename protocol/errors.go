package protocol

import (
	"errors"
	"fmt"
)

// ProtocolError represents a failure status returned by the ROM loader.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// Status is the first status byte (non-zero on failure)
	Status byte

	// Code is the ROM error code from the second status byte
	Code byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, errorName(e.Code), e.Code)
}

// IsProtocolError returns true if the error is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// CommandName returns a human-readable name for an opcode.
func CommandName(op byte) string {
	switch op {
	case CmdFlashBegin:
		return "flash begin"
	case CmdFlashData:
		return "flash data"
	case CmdFlashEnd:
		return "flash end"
	case CmdMemBegin:
		return "mem begin"
	case CmdMemEnd:
		return "mem end"
	case CmdMemData:
		return "mem data"
	case CmdSync:
		return "sync"
	case CmdWriteReg:
		return "write reg"
	case CmdReadReg:
		return "read reg"
	case CmdSpiSetParams:
		return "spi set params"
	case CmdSpiAttach:
		return "spi attach"
	case CmdChangeBaudRate:
		return "change baudrate"
	case CmdSpiFlashMD5:
		return "spi flash md5"
	case CmdGetSecurityInfo:
		return "get security info"
	default:
		return fmt.Sprintf("command 0x%02X", op)
	}
}

// errorName returns a human-readable name for a ROM error code.
func errorName(code byte) string {
	switch code {
	case ErrReceivedMessageInvalid:
		return "received message is invalid"
	case ErrFailedToAct:
		return "failed to act on received message"
	case ErrInvalidCRC:
		return "invalid CRC in message"
	case ErrFlashWrite:
		return "flash write error"
	case ErrFlashRead:
		return "flash read error"
	case ErrFlashReadLength:
		return "flash read length error"
	case ErrDeflate:
		return "deflate error"
	default:
		return fmt.Sprintf("unknown error code 0x%02X", code)
	}
}
