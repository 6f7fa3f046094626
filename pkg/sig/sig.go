// Package sig is the signature subsystem of the wire codec: pluggable
// sign/verify over payload bytes, selected by the algorithm identifier
// carried on the wire next to every public key.
package sig

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Algorithm identifies a signature scheme on the wire.
type Algorithm uint8

const (
	AlgorithmEd25519 Algorithm = 1
	AlgorithmRSA     Algorithm = 2
	AlgorithmLibp2p  Algorithm = 3
)

var (
	ErrUnknownAlgorithm = errors.New("sig: unknown signature algorithm")
	ErrInvalidKey       = errors.New("sig: invalid key")
)

// Signer accumulates payload bytes and produces a signature over them.
type Signer interface {
	io.Writer
	Sign() ([]byte, error)
}

// Verifier accumulates payload bytes and checks a signature over them.
// A failed verification is an observable false, never an error.
type Verifier interface {
	io.Writer
	Verify(signature []byte) bool
}

// Factory builds signers and verifiers for one algorithm and owns the
// wire form of its public keys.
type Factory interface {
	Algorithm() Algorithm
	NewSigner(priv crypto.PrivateKey) (Signer, error)
	NewVerifier(pub crypto.PublicKey) (Verifier, error)
	EncodePublicKey(pub crypto.PublicKey) ([]byte, error)
	DecodePublicKey(raw []byte) (crypto.PublicKey, error)
}

var (
	mu       sync.RWMutex
	registry = map[Algorithm]Factory{}
)

// Register makes a factory available for lookup by algorithm byte.
func Register(f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[f.Algorithm()] = f
}

// Lookup returns the factory for the given algorithm.
func Lookup(a Algorithm) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[a]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, a)
	}
	return f, nil
}

// Default returns the Ed25519 factory.
func Default() Factory {
	f, _ := Lookup(AlgorithmEd25519)
	return f
}

// Sign is the one-shot form used for per-entry data signatures.
func Sign(a Algorithm, data []byte, priv crypto.PrivateKey) ([]byte, error) {
	f, err := Lookup(a)
	if err != nil {
		return nil, err
	}
	s, err := f.NewSigner(priv)
	if err != nil {
		return nil, err
	}
	if _, err := s.Write(data); err != nil {
		return nil, err
	}
	return s.Sign()
}

// Verify is the one-shot form used for per-entry data signatures.
func Verify(a Algorithm, data, signature []byte, pub crypto.PublicKey) bool {
	f, err := Lookup(a)
	if err != nil {
		return false
	}
	v, err := f.NewVerifier(pub)
	if err != nil {
		return false
	}
	if _, err := v.Write(data); err != nil {
		return false
	}
	return v.Verify(signature)
}

func init() {
	Register(ed25519Factory{})
	Register(rsaFactory{})
	Register(libp2pFactory{})
}
