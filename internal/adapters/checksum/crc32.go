package checksum

import (
	"hash/crc32"
)

type crc32Checksum struct {
	name  string
	table *crc32.Table
}

// NewCRC32Castagnoli returns a CRC32 checksum using the Castagnoli
// polynomial.
func NewCRC32Castagnoli() *crc32Checksum {
	return &crc32Checksum{
		name:  string(CRC32Castagnoli),
		table: crc32.MakeTable(crc32.Castagnoli),
	}
}

// NewCRC32IEEE returns a CRC32 checksum using the IEEE polynomial.
func NewCRC32IEEE() *crc32Checksum {
	return &crc32Checksum{
		name:  string(CRC32IEEE),
		table: crc32.MakeTable(crc32.IEEE),
	}
}

func (c *crc32Checksum) Calculate(data []byte) uint32 {
	return crc32.Checksum(data, c.table)
}

func (c *crc32Checksum) Verify(data []byte, expected uint32) bool {
	return crc32.Checksum(data, c.table) == expected
}

func (c *crc32Checksum) Name() string {
	return c.name
}
