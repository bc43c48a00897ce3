// Package protocol implements the Espressif ROM serial loader protocol.
//
// This package provides functions to build command packets, parse response
// packets and frame both with SLIP, as spoken by the ROM bootloader of the
// ESP32 family when the chip is strapped into download mode.
//
// # Protocol Overview
//
// Every packet travels inside a SLIP frame:
//
//	[0xC0][PACKET (escaped)][0xC0]
//
// where 0xC0 inside the packet is sent as 0xDB 0xDC and 0xDB as 0xDB 0xDD.
//
// Packets have an 8-byte header followed by the payload:
//
//	Command:  [0x00][OP][SIZE_L][SIZE_H][CHECKSUM(4)][DATA...]
//	Response: [0x01][OP][SIZE_L][SIZE_H][VALUE(4)][DATA...]
//
// All multi-byte fields are little-endian. The checksum field is only
// meaningful for FLASH_DATA and MEM_DATA, where it is the XOR of the payload
// data seeded with 0xEF. The last StatusBytes(chip) bytes of a response
// payload carry the status and error code.
//
// # Command Builders
//
// Use the Build* functions to create command packets, then Encode to frame them:
//
//	pkt := protocol.BuildSyncCmd()
//	_, err := port.Write(protocol.Encode(pkt))
//
// # Response Parsers
//
// Feed received bytes to a Decoder and parse each complete packet:
//
//	var dec protocol.Decoder
//	if pkt, ok := dec.Feed(b); ok {
//	    resp, err := protocol.ParseResponse(pkt)
//	    ...
//	    if err := resp.Check(protocol.CmdSync, statusLen); err != nil { ... }
//	}
//
// # Chips
//
// The chip behind the link is identified by reading the magic register at
// ChipDetectMagicAddress and matching the value with DetectChip.
package protocol
