package key

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// ErrBadSignature is returned when an attestation response does not verify.
var ErrBadSignature = errors.New("key: signature does not verify")

// Verify checks sig over msg against a public key in the encoding returned
// by PublicKey. P256 signatures are ASN.1 DER over SHA-256(msg).
func Verify(kind Kind, public, msg, sig []byte) error {
	if len(public) != kind.PublicKeyLength() {
		return fmt.Errorf("%w: %s public key is %d bytes", ErrInvalidLength, kind, len(public))
	}
	switch kind {
	case KindP256:
		pub, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), append([]byte{0x04}, public...))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLength, err)
		}
		digest := sha256.Sum256(msg)
		if !ecdsa.VerifyASN1(pub, digest[:], sig) {
			return ErrBadSignature
		}
		return nil
	case KindEd255:
		if !ed25519.Verify(ed25519.PublicKey(public), msg, sig) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("%w: %s cannot sign", ErrUnknownKind, kind)
	}
}

// VerifyAgreement checks an X25519 attestation: mac must equal
// HMAC-SHA256(X25519(private, peer), challenge).
func VerifyAgreement(private, peer, challenge, mac []byte) error {
	shared, err := curve25519.X25519(private, peer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLength, err)
	}
	h := hmac.New(sha256.New, shared)
	h.Write(challenge)
	if !hmac.Equal(h.Sum(nil), mac) {
		return ErrBadSignature
	}
	return nil
}
