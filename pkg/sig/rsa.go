package sig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"hash"
)

// rsaFactory signs the SHA-256 of the payload with PKCS#1 v1.5. Public
// keys travel in PKIX/ASN.1 DER form.
type rsaFactory struct{}

func (rsaFactory) Algorithm() Algorithm {
	return AlgorithmRSA
}

type rsaSigner struct {
	hash.Hash
	priv *rsa.PrivateKey
}

func (s *rsaSigner) Sign() ([]byte, error) {
	return rsa.SignPKCS1v15(rand.Reader, s.priv, crypto.SHA256, s.Hash.Sum(nil))
}

func (rsaFactory) NewSigner(priv crypto.PrivateKey) (Signer, error) {
	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: want RSA private key", ErrInvalidKey)
	}
	return &rsaSigner{Hash: sha256.New(), priv: key}, nil
}

type rsaVerifier struct {
	hash.Hash
	pub *rsa.PublicKey
}

func (v *rsaVerifier) Verify(signature []byte) bool {
	return rsa.VerifyPKCS1v15(v.pub, crypto.SHA256, v.Hash.Sum(nil), signature) == nil
}

func (rsaFactory) NewVerifier(pub crypto.PublicKey) (Verifier, error) {
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: want RSA public key", ErrInvalidKey)
	}
	return &rsaVerifier{Hash: sha256.New(), pub: key}, nil
}

func (rsaFactory) EncodePublicKey(pub crypto.PublicKey) ([]byte, error) {
	if _, ok := pub.(*rsa.PublicKey); !ok {
		return nil, fmt.Errorf("%w: want RSA public key", ErrInvalidKey)
	}
	return x509.MarshalPKIXPublicKey(pub)
}

func (rsaFactory) DecodePublicKey(raw []byte) (crypto.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
	}
	return key, nil
}
