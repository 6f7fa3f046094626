package wire

import (
	"encoding/binary"
	"io"
)

// ChunkSize bounds a single sink write. Large payload blocks are
// emitted across multiple writes of at most this size so a transport
// never has to accept a 50MB item in one call.
const ChunkSize = 32 * 1024

// WriteChunked writes p to w in chunks of at most ChunkSize bytes.
func WriteChunked(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if n > ChunkSize {
			n = ChunkSize
		}
		if _, err := w.Write(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// WriteUint8 writes one byte.
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// WriteUint16 writes v big-endian.
func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint32 writes v big-endian.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint64 writes v big-endian.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
