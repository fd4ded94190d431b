// Package key defines the serialized key record stored by the token and the
// derivation of public keys from stored seeds.
//
// A record is laid out as
//
//	flags (u16 BE) ‖ kind (u16 BE) ‖ material
//
// which is the layout the token's crypto service reads back from flash.
package key

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Key record errors.
var (
	ErrTruncated     = errors.New("key: record truncated")
	ErrUnknownKind   = errors.New("key: unknown kind")
	ErrInvalidLength = errors.New("key: invalid material length")
)

// HeaderSize is the length of the flags and kind prefix.
const HeaderSize = 4

// SeedSize is the length of generated secret material for every kind.
const SeedSize = 32

// Flags are the storage attributes of a key.
type Flags uint16

const (
	// FlagLocal marks a key generated on the device.
	FlagLocal Flags = 1 << 0
	// FlagSensitive marks a key whose material must never be exported.
	FlagSensitive Flags = 1 << 1
)

// String returns a "|" separated list of set flags.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f&FlagLocal != 0 {
		parts = append(parts, "local")
	}
	if f&FlagSensitive != 0 {
		parts = append(parts, "sensitive")
	}
	if rest := f &^ (FlagLocal | FlagSensitive); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// Kind identifies the algorithm of a key.
type Kind uint16

const (
	KindEd255 Kind = 4
	KindP256  Kind = 5
	KindX255  Kind = 6
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindEd255:
		return "Ed255"
	case KindP256:
		return "P256"
	case KindX255:
		return "X255"
	default:
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindEd255 || k == KindP256 || k == KindX255
}

// PublicKeyLength returns the length of the public key encoding for k:
// 64 bytes (x ‖ y) for P256, 32 bytes otherwise.
func (k Kind) PublicKeyLength() int {
	if k == KindP256 {
		return 64
	}
	return 32
}

// Key is a stored key record.
type Key struct {
	Flags    Flags
	Kind     Kind
	Material []byte
}

// NewSecret returns a device-generated secret key record for seed.
func NewSecret(kind Kind, seed []byte) Key {
	return Key{
		Flags:    FlagLocal | FlagSensitive,
		Kind:     kind,
		Material: seed,
	}
}

// NewPublic returns an imported public key record.
func NewPublic(kind Kind, material []byte) Key {
	return Key{Kind: kind, Material: material}
}

// Serialize encodes the record.
func (k Key) Serialize() []byte {
	buf := make([]byte, HeaderSize, HeaderSize+len(k.Material))
	binary.BigEndian.PutUint16(buf[0:2], uint16(k.Flags))
	binary.BigEndian.PutUint16(buf[2:4], uint16(k.Kind))
	return append(buf, k.Material...)
}

// Deserialize decodes a record produced by Serialize.
func Deserialize(data []byte) (Key, error) {
	if len(data) < HeaderSize {
		return Key{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	kind := Kind(binary.BigEndian.Uint16(data[2:4]))
	if !kind.Valid() {
		return Key{}, fmt.Errorf("%w: %d", ErrUnknownKind, uint16(kind))
	}
	return Key{
		Flags:    Flags(binary.BigEndian.Uint16(data[0:2])),
		Kind:     kind,
		Material: append([]byte(nil), data[HeaderSize:]...),
	}, nil
}

// IsSecret reports whether the record holds secret material.
func (k Key) IsSecret() bool {
	return k.Flags&FlagSensitive != 0
}
