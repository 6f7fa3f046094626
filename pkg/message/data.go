package message

import (
	"bytes"
	"crypto"
	"encoding/binary"

	"github.com/ZentaChain/kadwire/pkg/sig"
)

// Data entry flag bits.
const dataFlagSigned = 1 << 0

// Data is one opaque stored value plus its metadata: a validity window
// in seconds (0 = no expiry), a version hint, and an optional per-entry
// signature with its public key, independent of the message-level
// signature.
type Data struct {
	payload  []byte
	validFor uint32
	version  uint32

	alg       sig.Algorithm
	publicKey crypto.PublicKey
	signature []byte
}

// NewData wraps a byte payload.
func NewData(payload []byte) *Data {
	return &Data{payload: payload}
}

// Bytes returns the payload.
func (d *Data) Bytes() []byte { return d.payload }

// Len returns the payload length.
func (d *Data) Len() int { return len(d.payload) }

// ValidFor returns the validity window in seconds, 0 for no expiry.
func (d *Data) ValidFor() uint32 { return d.validFor }

// SetValidFor sets the validity window in seconds.
func (d *Data) SetValidFor(seconds uint32) *Data {
	d.validFor = seconds
	return d
}

// DataVersion returns the version hint.
func (d *Data) DataVersion() uint32 { return d.version }

// SetDataVersion sets the version hint.
func (d *Data) SetDataVersion(v uint32) *Data {
	d.version = v
	return d
}

// Signed reports whether the entry carries a signature.
func (d *Data) Signed() bool { return d.signature != nil }

// Signature returns the entry signature, nil when unsigned.
func (d *Data) Signature() []byte { return d.signature }

// PublicKey returns the signing key, nil when unsigned.
func (d *Data) PublicKey() crypto.PublicKey { return d.publicKey }

// SignatureAlgorithm returns the algorithm of the entry signature.
func (d *Data) SignatureAlgorithm() sig.Algorithm { return d.alg }

// signedBytes is the byte string covered by the entry signature:
// metadata first, then the payload, so a tampered validity window or
// version fails verification too.
func (d *Data) signedBytes() []byte {
	out := make([]byte, 8, 8+len(d.payload))
	binary.BigEndian.PutUint32(out[0:4], d.validFor)
	binary.BigEndian.PutUint32(out[4:8], d.version)
	return append(out, d.payload...)
}

// SignNow signs the entry with the given key pair. Metadata changes
// after signing invalidate the signature.
func (d *Data) SignNow(alg sig.Algorithm, priv crypto.PrivateKey, pub crypto.PublicKey) error {
	f, err := sig.Lookup(alg)
	if err != nil {
		return err
	}
	if _, err := f.EncodePublicKey(pub); err != nil {
		return err
	}
	signature, err := sig.Sign(alg, d.signedBytes(), priv)
	if err != nil {
		return err
	}
	d.alg = alg
	d.publicKey = pub
	d.signature = signature
	return nil
}

// VerifySignature checks the entry signature against the inline public
// key. Unsigned entries verify as false.
func (d *Data) VerifySignature() bool {
	if !d.Signed() {
		return false
	}
	return sig.Verify(d.alg, d.signedBytes(), d.signature, d.publicKey)
}

func (d *Data) flags() uint8 {
	if d.Signed() {
		return dataFlagSigned
	}
	return 0
}

// Equal compares payload, metadata and signature fields.
func (d *Data) Equal(o *Data) bool {
	if d == nil || o == nil {
		return d == o
	}
	return bytes.Equal(d.payload, o.payload) &&
		d.validFor == o.validFor &&
		d.version == o.version &&
		d.alg == o.alg &&
		bytes.Equal(d.signature, o.signature)
}
