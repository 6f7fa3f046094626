package sig

import (
	"bytes"
	"crypto"
	"fmt"

	lcrypto "github.com/libp2p/go-libp2p/core/crypto"
)

// libp2pFactory adapts libp2p identity keys so nodes running on a
// libp2p transport can sign messages with their host key. Public keys
// travel in the libp2p protobuf envelope, which carries its own key
// type. libp2p keys sign whole messages, so this factory buffers the
// payload; prefer Ed25519 for very large signed payloads.
type libp2pFactory struct{}

func (libp2pFactory) Algorithm() Algorithm {
	return AlgorithmLibp2p
}

type libp2pSigner struct {
	bytes.Buffer
	priv lcrypto.PrivKey
}

func (s *libp2pSigner) Sign() ([]byte, error) {
	return s.priv.Sign(s.Buffer.Bytes())
}

func (libp2pFactory) NewSigner(priv crypto.PrivateKey) (Signer, error) {
	key, ok := priv.(lcrypto.PrivKey)
	if !ok {
		return nil, fmt.Errorf("%w: want libp2p private key", ErrInvalidKey)
	}
	return &libp2pSigner{priv: key}, nil
}

type libp2pVerifier struct {
	bytes.Buffer
	pub lcrypto.PubKey
}

func (v *libp2pVerifier) Verify(signature []byte) bool {
	ok, err := v.pub.Verify(v.Buffer.Bytes(), signature)
	return err == nil && ok
}

func (libp2pFactory) NewVerifier(pub crypto.PublicKey) (Verifier, error) {
	key, ok := pub.(lcrypto.PubKey)
	if !ok {
		return nil, fmt.Errorf("%w: want libp2p public key", ErrInvalidKey)
	}
	return &libp2pVerifier{pub: key}, nil
}

func (libp2pFactory) EncodePublicKey(pub crypto.PublicKey) ([]byte, error) {
	key, ok := pub.(lcrypto.PubKey)
	if !ok {
		return nil, fmt.Errorf("%w: want libp2p public key", ErrInvalidKey)
	}
	return lcrypto.MarshalPublicKey(key)
}

func (libp2pFactory) DecodePublicKey(raw []byte) (crypto.PublicKey, error) {
	key, err := lcrypto.UnmarshalPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}
