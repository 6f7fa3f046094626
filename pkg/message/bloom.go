package message

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"

	"github.com/ZentaChain/kadwire/pkg/kad"
)

// maxBloomBits keeps the serialized filter within its 16-bit length
// prefix.
const maxBloomBits = 520_000

// BloomFilter is a probabilistic key-presence summary shipped as a
// payload item, letting a peer ask "which of these do you have" without
// listing every key. Membership hashing uses double hashing over the
// identifier's own bits, which are uniformly distributed already.
type BloomFilter struct {
	hashes uint16
	bits   *bitset.BitSet
}

// NewBloomFilter creates a filter with m bits and k hash functions.
func NewBloomFilter(m uint, k uint16) *BloomFilter {
	if m == 0 {
		m = 1
	}
	if m > maxBloomBits {
		m = maxBloomBits
	}
	if k == 0 {
		k = 1
	}
	return &BloomFilter{hashes: k, bits: bitset.New(m)}
}

// M returns the filter width in bits.
func (f *BloomFilter) M() uint { return f.bits.Len() }

// K returns the number of hash functions.
func (f *BloomFilter) K() uint16 { return f.hashes }

func (f *BloomFilter) indexes(id kad.ID) (uint64, uint64) {
	h1 := binary.BigEndian.Uint64(id[0:8])
	h2 := binary.BigEndian.Uint64(id[8:16]) | 1
	return h1, h2
}

// Add inserts an identifier.
func (f *BloomFilter) Add(id kad.ID) {
	h1, h2 := f.indexes(id)
	m := uint64(f.bits.Len())
	for i := uint64(0); i < uint64(f.hashes); i++ {
		f.bits.Set(uint((h1 + i*h2) % m))
	}
}

// Contains reports whether the identifier may have been added; false
// positives are possible, false negatives are not.
func (f *BloomFilter) Contains(id kad.ID) bool {
	h1, h2 := f.indexes(id)
	m := uint64(f.bits.Len())
	for i := uint64(0); i < uint64(f.hashes); i++ {
		if !f.bits.Test(uint((h1 + i*h2) % m)) {
			return false
		}
	}
	return true
}

// Equal compares width, hash count and bit contents.
func (f *BloomFilter) Equal(o *BloomFilter) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.hashes == o.hashes && f.bits.Equal(o.bits)
}

// encodedSize returns the wire size after the 2-byte length prefix:
// k(2) + m(4) + bit words.
func (f *BloomFilter) encodedSize() int {
	return 6 + 8*len(f.bits.Bytes())
}

func (f *BloomFilter) encode() []byte {
	words := f.bits.Bytes()
	out := make([]byte, 0, 2+f.encodedSize())
	out = binary.BigEndian.AppendUint16(out, uint16(f.encodedSize()))
	out = binary.BigEndian.AppendUint16(out, f.hashes)
	out = binary.BigEndian.AppendUint32(out, uint32(f.bits.Len()))
	for _, w := range words {
		out = binary.BigEndian.AppendUint64(out, w)
	}
	return out
}

// decodeBloomFilter rebuilds a filter from the bytes after the length
// prefix.
func decodeBloomFilter(raw []byte) (*BloomFilter, bool) {
	if len(raw) < 6 || (len(raw)-6)%8 != 0 {
		return nil, false
	}
	k := binary.BigEndian.Uint16(raw[0:2])
	m := binary.BigEndian.Uint32(raw[2:6])
	if k == 0 || m == 0 || m > maxBloomBits {
		return nil, false
	}
	words := make([]uint64, (len(raw)-6)/8)
	for i := range words {
		words[i] = binary.BigEndian.Uint64(raw[6+8*i:])
	}
	if len(words) != int((m+63)/64) {
		return nil, false
	}
	return &BloomFilter{hashes: k, bits: bitset.FromWithLength(uint(m), words)}, true
}
