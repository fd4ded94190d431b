package key

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// maxScalarAttempts bounds the rehashing loop in P256Scalar. A uniformly
// random 32-byte value is rejected with probability below 2^-32.
const maxScalarAttempts = 16

// ErrNoScalar is returned when no valid P256 scalar could be derived from a seed.
var ErrNoScalar = errors.New("key: no valid P256 scalar")

// P256Scalar turns a 32-byte seed into a valid P256 private scalar. A seed that
// is out of range is replaced by its SHA-256 digest until a valid scalar is found.
func P256Scalar(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: P256 seed is %d bytes", ErrInvalidLength, len(seed))
	}
	s := seed
	for range maxScalarAttempts {
		if _, err := ecdh.P256().NewPrivateKey(s); err == nil {
			return s, nil
		}
		sum := sha256.Sum256(s)
		s = sum[:]
	}
	return nil, ErrNoScalar
}

// P256PrivateKey returns the signing key derived from seed.
func P256PrivateKey(seed []byte) (*ecdsa.PrivateKey, error) {
	scalar, err := P256Scalar(seed)
	if err != nil {
		return nil, err
	}
	return ecdsa.ParseRawPrivateKey(elliptic.P256(), scalar)
}

// PublicKey derives the public key for a seed of the given kind. P256 keys
// are returned as the 64-byte concatenation x ‖ y; Ed25519 and X25519 keys
// in their native 32-byte encodings.
func PublicKey(kind Kind, seed []byte) ([]byte, error) {
	switch kind {
	case KindP256:
		scalar, err := P256Scalar(seed)
		if err != nil {
			return nil, err
		}
		priv, err := ecdh.P256().NewPrivateKey(scalar)
		if err != nil {
			return nil, err
		}
		// Drop the 0x04 uncompressed point prefix.
		return priv.PublicKey().Bytes()[1:], nil

	case KindEd255:
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: Ed25519 seed is %d bytes", ErrInvalidLength, len(seed))
		}
		pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
		return []byte(pub), nil

	case KindX255:
		if len(seed) != curve25519.ScalarSize {
			return nil, fmt.Errorf("%w: X25519 seed is %d bytes", ErrInvalidLength, len(seed))
		}
		return curve25519.X25519(seed, curve25519.Basepoint)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint16(kind))
	}
}
