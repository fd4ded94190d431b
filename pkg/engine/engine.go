// Package engine defines the capability-typed crypto service the provisioner
// talks to, and a software implementation backed by a store.
//
// Keys are addressed by KeyID. IDs 1 to 3 are reserved for the attestation
// keys held in flash; every other ID names a volatile key created during the
// session.
package engine

import (
	"errors"
	"fmt"
)

// Engine errors.
var (
	ErrKeyNotFound       = errors.New("engine: key not found")
	ErrMechanismMismatch = errors.New("engine: key does not match mechanism")
	ErrInvalidKey        = errors.New("engine: invalid key material")
	ErrUnsupported       = errors.New("engine: unsupported mechanism")
)

// KeyID addresses a key held by the engine.
type KeyID uint32

// Special key IDs bound to the attestation keys in flash.
const (
	SpecialP256  KeyID = 1
	SpecialEd255 KeyID = 2
	SpecialX255  KeyID = 3
)

// firstVolatileID is the first ID handed out for session keys.
const firstVolatileID KeyID = 0x100

// IsSpecial reports whether id refers to an attestation key.
func (id KeyID) IsSpecial() bool {
	return id >= SpecialP256 && id <= SpecialX255
}

// String returns the key ID in hex.
func (id KeyID) String() string {
	return fmt.Sprintf("%08x", uint32(id))
}

// Mechanism selects an algorithm.
type Mechanism uint8

const (
	MechanismP256 Mechanism = iota + 1
	MechanismEd255
	MechanismX255
	MechanismHmacSha256
)

// String returns the mechanism name.
func (m Mechanism) String() string {
	switch m {
	case MechanismP256:
		return "P256"
	case MechanismEd255:
		return "Ed255"
	case MechanismX255:
		return "X255"
	case MechanismHmacSha256:
		return "HmacSha256"
	default:
		return fmt.Sprintf("Mechanism(%d)", uint8(m))
	}
}

// Random produces random bytes.
type Random interface {
	RandomBytes(n int) ([]byte, error)
}

// Signer signs with a stored key. P256 signatures are DER encoded over the
// SHA-256 digest of msg; Ed25519 signatures are the raw 64-byte form.
type Signer interface {
	Sign(mech Mechanism, id KeyID, msg []byte) ([]byte, error)
}

// X255 performs X25519 key agreement.
type X255 interface {
	// ImportX255 loads a raw 32-byte public key as a volatile key.
	ImportX255(public []byte) (KeyID, error)

	// AgreeX255 derives the shared secret of private and public and stores
	// it as a volatile secret key.
	AgreeX255(private, public KeyID) (KeyID, error)
}

// HmacSha256 computes HMAC-SHA256 keyed by a stored secret.
type HmacSha256 interface {
	SignHmacSha256(secret KeyID, msg []byte) ([]byte, error)
}

// Client is the full capability set the provisioner needs.
type Client interface {
	Random
	Signer
	X255
	HmacSha256

	// Delete drops a volatile key. Attestation keys cannot be deleted.
	Delete(id KeyID) error
}
