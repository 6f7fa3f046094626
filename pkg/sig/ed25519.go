package sig

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"hash"
)

// ed25519Factory implements Ed25519ph: payload bytes stream through
// SHA-512 and the prehash is signed, so signing a 50MB payload never
// needs the payload in one block.
type ed25519Factory struct{}

func (ed25519Factory) Algorithm() Algorithm {
	return AlgorithmEd25519
}

var ed25519Opts = &ed25519.Options{Hash: crypto.SHA512}

type ed25519Signer struct {
	hash.Hash
	priv ed25519.PrivateKey
}

func (s *ed25519Signer) Sign() ([]byte, error) {
	return s.priv.Sign(rand.Reader, s.Hash.Sum(nil), ed25519Opts)
}

func (ed25519Factory) NewSigner(priv crypto.PrivateKey) (Signer, error) {
	key, ok := priv.(ed25519.PrivateKey)
	if !ok || len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: want ed25519 private key", ErrInvalidKey)
	}
	return &ed25519Signer{Hash: sha512.New(), priv: key}, nil
}

type ed25519Verifier struct {
	hash.Hash
	pub ed25519.PublicKey
}

func (v *ed25519Verifier) Verify(signature []byte) bool {
	return ed25519.VerifyWithOptions(v.pub, v.Hash.Sum(nil), signature, ed25519Opts) == nil
}

func (ed25519Factory) NewVerifier(pub crypto.PublicKey) (Verifier, error) {
	key, ok := pub.(ed25519.PublicKey)
	if !ok || len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: want ed25519 public key", ErrInvalidKey)
	}
	return &ed25519Verifier{Hash: sha512.New(), pub: key}, nil
}

func (ed25519Factory) EncodePublicKey(pub crypto.PublicKey) ([]byte, error) {
	key, ok := pub.(ed25519.PublicKey)
	if !ok || len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: want ed25519 public key", ErrInvalidKey)
	}
	out := make([]byte, ed25519.PublicKeySize)
	copy(out, key)
	return out, nil
}

func (ed25519Factory) DecodePublicKey(raw []byte) (crypto.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key size %d", ErrInvalidKey, len(raw))
	}
	return ed25519.PublicKey(append([]byte(nil), raw...)), nil
}
