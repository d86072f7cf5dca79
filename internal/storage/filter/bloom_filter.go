package filter

import "github.com/twmb/murmur3"

const (
	DefaultBloomFilterBits = 1 << 13

	// bloomHashes is the number of probe positions per key. With the
	// default bitmap size this keeps the false positive rate low for the
	// segment sizes this engine produces.
	bloomHashes = 4
)

// BloomFilter is a murmur3-based bloom filter over segment keys.
type BloomFilter struct {
	bits []uint64
	m    uint64
}

func NewBloomFilter(m int) *BloomFilter {
	if m <= 0 {
		m = DefaultBloomFilterBits
	}
	return &BloomFilter{
		bits: make([]uint64, (m+63)/64),
		m:    uint64(m),
	}
}

func (b *BloomFilter) Add(key []byte) {
	h1, h2 := murmur3.Sum128(key)
	for i := uint64(0); i < bloomHashes; i++ {
		pos := (h1 + i*h2) % b.m
		b.bits[pos/64] |= 1 << (pos % 64)
	}
}

func (b *BloomFilter) MayContain(key []byte) bool {
	h1, h2 := murmur3.Sum128(key)
	for i := uint64(0); i < bloomHashes; i++ {
		pos := (h1 + i*h2) % b.m
		if b.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}
