package iso7816

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

// AID length bounds.
const (
	// RIDLength is the length of the registered application provider identifier.
	RIDLength = 5

	// MaxAIDLength is the maximum length of an application identifier.
	MaxAIDLength = 16
)

// ErrInvalidAID indicates an application identifier outside 5..16 bytes.
var ErrInvalidAID = errors.New("invalid AID")

// AID is an application identifier: a 5-byte RID followed by an optional PIX.
type AID []byte

// NewAID validates and copies an application identifier.
func NewAID(b []byte) (AID, error) {
	if len(b) < RIDLength || len(b) > MaxAIDLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidAID, len(b))
	}
	return AID(bytes.Clone(b)), nil
}

// MustAID is like NewAID but panics on invalid input.
// Intended for package-level constants.
func MustAID(b ...byte) AID {
	aid, err := NewAID(b)
	if err != nil {
		panic(err)
	}
	return aid
}

// RID returns the registered application provider identifier.
func (a AID) RID() []byte {
	if len(a) < RIDLength {
		return a
	}
	return a[:RIDLength]
}

// Matches reports whether the SELECT data names this application.
// The data may be the full AID, the AID followed by extra bytes, or a
// truncated AID covering at least the RID (partial DF name selection).
func (a AID) Matches(data []byte) bool {
	if len(data) < RIDLength || len(a) == 0 {
		return false
	}
	return bytes.HasPrefix(data, a) || bytes.HasPrefix(a, data)
}

// Equal reports whether two AIDs are identical.
func (a AID) Equal(other AID) bool {
	return bytes.Equal(a, other)
}

// String returns the AID in upper-case hex.
func (a AID) String() string {
	return fmt.Sprintf("%X", []byte(a))
}

// ParseAID parses a hex-encoded application identifier.
func ParseAID(s string) (AID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAID, err)
	}
	return NewAID(b)
}
