package message

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// Protocol constants
const (
	// Version is the wire protocol version.
	Version = 1

	// SlotCount is the fixed capacity of the content-type slot table.
	SlotCount = 8

	// headerFixedSize covers id(2) + version(1) + slot table(4) +
	// command(1) + type(1). The two addresses that follow are
	// variable-length.
	headerFixedSize = 10
)

// Decode sanity caps. Counts and lengths beyond these are treated as
// structural corruption rather than honored with huge allocations.
const (
	maxEntries = 1 << 20
	maxBlobLen = 256 << 20
)

var (
	ErrMalformedMessage       = errors.New("message: malformed message")
	ErrUnsupportedContentType = errors.New("message: unsupported content type")
	ErrSlotsFull              = errors.New("message: all content slots filled")
	ErrNoPrivateKey           = errors.New("message: sign hint set but no private key")
	ErrHeaderRequired         = errors.New("message: decode header before payload")
)

// Content tags one slot of the header's slot table.
type Content uint8

const (
	ContentEmpty Content = iota
	ContentKey
	ContentSetKeys640
	ContentMapKey640Data
	ContentMapKey640Keys
	ContentSetNeighbors
	ContentInteger
	ContentLong
	ContentByteBuffer
	ContentBloomFilter
	ContentPublicKey
	ContentSetPeerSocket
	ContentPublicKeySignature

	contentLimit
)

func (c Content) valid() bool {
	return c < contentLimit
}

func (c Content) String() string {
	switch c {
	case ContentEmpty:
		return "EMPTY"
	case ContentKey:
		return "KEY"
	case ContentSetKeys640:
		return "SET_KEYS640"
	case ContentMapKey640Data:
		return "MAP_KEY640_DATA"
	case ContentMapKey640Keys:
		return "MAP_KEY640_KEYS"
	case ContentSetNeighbors:
		return "SET_NEIGHBORS"
	case ContentInteger:
		return "INTEGER"
	case ContentLong:
		return "LONG"
	case ContentByteBuffer:
		return "BYTE_BUFFER"
	case ContentBloomFilter:
		return "BLOOM_FILTER"
	case ContentPublicKey:
		return "PUBLIC_KEY"
	case ContentSetPeerSocket:
		return "SET_PEER_SOCKET"
	case ContentPublicKeySignature:
		return "PUBLIC_KEY_SIGNATURE"
	}
	return fmt.Sprintf("CONTENT(%d)", uint8(c))
}

// Type distinguishes the request variants of a command and the reply
// outcomes.
type Type uint8

const (
	TypeRequest1 Type = iota
	TypeRequest2
	TypeRequest3
	TypeRequest4
	TypeRequest5
	TypeOK
	TypePartiallyOK
	TypeNotFound
	TypeDenied
	TypeUnknownID
	TypeException
	TypeCancel

	typeLimit
)

// IsRequest reports whether t is one of the request variants.
func (t Type) IsRequest() bool {
	return t <= TypeRequest5
}

func (t Type) String() string {
	switch t {
	case TypeRequest1, TypeRequest2, TypeRequest3, TypeRequest4, TypeRequest5:
		return fmt.Sprintf("REQUEST_%d", t+1)
	case TypeOK:
		return "OK"
	case TypePartiallyOK:
		return "PARTIALLY_OK"
	case TypeNotFound:
		return "NOT_FOUND"
	case TypeDenied:
		return "DENIED"
	case TypeUnknownID:
		return "UNKNOWN_ID"
	case TypeException:
		return "EXCEPTION"
	case TypeCancel:
		return "CANCEL"
	}
	return fmt.Sprintf("TYPE(%d)", uint8(t))
}

// packSlots packs the 8 slot tags into 4 bytes, one nibble per slot,
// slot 0 in the high nibble of the first byte.
func packSlots(types [SlotCount]Content) [4]byte {
	var out [4]byte
	for i, t := range types {
		if i%2 == 0 {
			out[i/2] |= byte(t) << 4
		} else {
			out[i/2] |= byte(t) & 0x0f
		}
	}
	return out
}

func unpackSlots(raw [4]byte) [SlotCount]Content {
	var out [SlotCount]Content
	for i := 0; i < SlotCount; i++ {
		if i%2 == 0 {
			out[i] = Content(raw[i/2] >> 4)
		} else {
			out[i] = Content(raw[i/2] & 0x0f)
		}
	}
	return out
}

// randomMessageID generates a random 16-bit message id from
// crypto/rand.
func randomMessageID() uint16 {
	var b [2]byte
	rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}
