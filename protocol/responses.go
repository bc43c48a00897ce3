package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParseResponse decodes a raw response packet (after SLIP decoding).
//
// Response structure:
//
//	[0x01][OP][SIZE_L][SIZE_H][VALUE(4)][DATA...]
func ParseResponse(pkt []byte) (*Response, error) {
	if len(pkt) < MinPacketSize {
		return nil, fmt.Errorf("packet too short: got %d bytes, minimum is %d", len(pkt), MinPacketSize)
	}
	if pkt[0] != DirResponse {
		return nil, fmt.Errorf("invalid direction: got 0x%02X, expected 0x%02X", pkt[0], DirResponse)
	}

	size := int(binary.LittleEndian.Uint16(pkt[2:4]))
	if len(pkt) < HeaderSize+size {
		return nil, fmt.Errorf("packet length mismatch: got %d bytes, expected %d", len(pkt), HeaderSize+size)
	}

	return &Response{
		Op:    pkt[1],
		Value: binary.LittleEndian.Uint32(pkt[4:8]),
		Data:  pkt[HeaderSize : HeaderSize+size],
	}, nil
}

// Status extracts the status and error bytes from the response payload.
// statusBytes is Chip.StatusBytes (2 or 4).
func (r *Response) Status(statusBytes int) (status, code byte, err error) {
	if statusBytes < 2 {
		statusBytes = 2
	}
	if len(r.Data) < statusBytes {
		return 0, 0, fmt.Errorf("response to 0x%02X too short for status: %d bytes", r.Op, len(r.Data))
	}
	off := len(r.Data) - statusBytes
	return r.Data[off], r.Data[off+1], nil
}

// Check verifies that the response answers op and reports success.
// A failure status is returned as a *ProtocolError.
func (r *Response) Check(op byte, statusBytes int) error {
	if r.Op != op {
		return fmt.Errorf("unexpected response: got op 0x%02X, expected 0x%02X", r.Op, op)
	}
	status, code, err := r.Status(statusBytes)
	if err != nil {
		return err
	}
	if status != 0 {
		return &ProtocolError{
			Operation: CommandName(op),
			Status:    status,
			Code:      code,
		}
	}
	return nil
}

// BuildResponse constructs a raw response packet carrying a success or
// failure status. statusBytes selects the legacy 4-byte layout when 4.
// Used by target simulators and tests.
func BuildResponse(op byte, value uint32, payload []byte, status, code byte, statusBytes int) []byte {
	if statusBytes < 2 {
		statusBytes = 2
	}
	trailer := make([]byte, statusBytes)
	trailer[0] = status
	trailer[1] = code

	size := len(payload) + len(trailer)
	pkt := make([]byte, HeaderSize, HeaderSize+size)
	pkt[0] = DirResponse
	pkt[1] = op
	binary.LittleEndian.PutUint16(pkt[2:4], uint16(size))
	binary.LittleEndian.PutUint32(pkt[4:8], value)
	pkt = append(pkt, payload...)
	return append(pkt, trailer...)
}
