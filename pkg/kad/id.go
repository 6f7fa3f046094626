package kad

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// IDBits is the width of a DHT identifier in bits.
const IDBits = 160

// IDBytes is the width of a DHT identifier in bytes.
const IDBytes = IDBits / 8

var ErrMalformedID = errors.New("kad: malformed identifier")

// ID is a 160-bit DHT identifier. IDs are immutable value types; they
// compare equal iff every bit matches and order as unsigned big-endian
// integers. An ID always serializes to exactly 20 bytes.
type ID [IDBytes]byte

// ZeroID returns the all-zero identifier.
func ZeroID() ID {
	return ID{}
}

// NewID creates an ID from raw bytes. Inputs shorter than 20 bytes are
// left-padded with zeros; longer inputs are rejected.
func NewID(data []byte) (ID, error) {
	if len(data) > IDBytes {
		return ID{}, ErrMalformedID
	}
	var id ID
	copy(id[IDBytes-len(data):], data)
	return id, nil
}

// DecodeID reads exactly 20 bytes from the front of buf.
func DecodeID(buf []byte) (ID, error) {
	if len(buf) < IDBytes {
		return ID{}, ErrMalformedID
	}
	var id ID
	copy(id[:], buf[:IDBytes])
	return id, nil
}

// NewIDFromHex creates an ID from a hex string, with or without a
// leading "0x". Short strings are left-padded like NewID.
func NewIDFromHex(s string) (ID, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, ErrMalformedID
	}
	return NewID(raw)
}

// NewIDFromInt creates an ID holding the unsigned value of n.
func NewIDFromInt(n int64) ID {
	var id ID
	big.NewInt(n).FillBytes(id[:])
	return id
}

// RandomID generates a random ID from crypto/rand.
func RandomID() ID {
	var id ID
	rand.Read(id[:])
	return id
}

// HashID derives an ID from arbitrary content using BLAKE2b with a
// 160-bit digest, so content-addressed keys fit the identifier width
// directly.
func HashID(data []byte) ID {
	h, err := blake2b.New(IDBytes, nil)
	if err != nil {
		panic(err)
	}
	h.Write(data)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// Bytes returns the big-endian 20-byte encoding.
func (id ID) Bytes() []byte {
	out := make([]byte, IDBytes)
	copy(out, id[:])
	return out
}

// String returns the hex representation.
func (id ID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// IsZero reports whether every bit is zero.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Equals checks if two IDs are equal.
func (id ID) Equals(other ID) bool {
	return id == other
}

// Compare orders IDs as unsigned big-endian integers.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

// Xor returns the XOR distance between two IDs.
func (id ID) Xor(other ID) ID {
	var result ID
	for i := 0; i < IDBytes; i++ {
		result[i] = id[i] ^ other[i]
	}
	return result
}

// Distance returns the XOR distance as a big.Int.
func (id ID) Distance(other ID) *big.Int {
	xor := id.Xor(other)
	return new(big.Int).SetBytes(xor[:])
}
