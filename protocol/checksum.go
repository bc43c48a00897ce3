package protocol

// Checksum computes the payload checksum carried in the header of FLASH_DATA
// and MEM_DATA commands: the XOR of every data byte, seeded with ChecksumSeed.
func Checksum(data []byte) uint32 {
	sum := byte(ChecksumSeed)
	for _, b := range data {
		sum ^= b
	}
	return uint32(sum)
}
