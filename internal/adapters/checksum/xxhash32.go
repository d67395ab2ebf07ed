package checksum

import (
	"github.com/cespare/xxhash/v2"
)

type xxhash32 struct {
	name string
}

// NewXXHash32 returns a checksum based on the 64-bit xxHash digest
// truncated to the low 32 bits. Faster than CRC32 on large payloads where
// hardware CRC is unavailable.
func NewXXHash32() *xxhash32 {
	return &xxhash32{name: string(XXHash32)}
}

func (x *xxhash32) Calculate(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}

func (x *xxhash32) Verify(data []byte, expected uint32) bool {
	return uint32(xxhash.Sum64(data)) == expected
}

func (x *xxhash32) Name() string {
	return x.name
}
