package key

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"

	"golang.org/x/crypto/curve25519"
)

func seed(b byte) []byte {
	return bytes.Repeat([]byte{b}, SeedSize)
}

func TestSerialize(t *testing.T) {
	k := NewSecret(KindP256, []byte{0xAA, 0xBB})
	got := k.Serialize()
	want := []byte{0x00, 0x03, 0x00, 0x05, 0xAA, 0xBB}
	if !bytes.Equal(got, want) {
		t.Errorf("Serialize() = % X, want % X", got, want)
	}

	pub := NewPublic(KindP256, []byte{0x01})
	if got := pub.Serialize(); !bytes.Equal(got, []byte{0, 0, 0, 5, 1}) {
		t.Errorf("Serialize() = % X", got)
	}
}

func TestDeserialize(t *testing.T) {
	k, err := Deserialize([]byte{0x00, 0x03, 0x00, 0x04, 1, 2, 3})
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if k.Kind != KindEd255 || k.Flags != FlagLocal|FlagSensitive || !bytes.Equal(k.Material, []byte{1, 2, 3}) {
		t.Errorf("Deserialize() = %+v", k)
	}
	if !k.IsSecret() {
		t.Error("IsSecret() = false for sensitive key")
	}

	if _, err := Deserialize([]byte{0, 0, 0}); !errors.Is(err, ErrTruncated) {
		t.Errorf("Deserialize(short) error = %v, want ErrTruncated", err)
	}
	if _, err := Deserialize([]byte{0, 0, 0, 9}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Deserialize(kind 9) error = %v, want ErrUnknownKind", err)
	}
}

func TestFlagsAndKindString(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Flags(0).String(), "none"},
		{(FlagLocal | FlagSensitive).String(), "local|sensitive"},
		{Flags(0x10).String(), "0x10"},
		{KindP256.String(), "P256"},
		{KindEd255.String(), "Ed255"},
		{KindX255.String(), "X255"},
		{Kind(1).String(), "Kind(1)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestPublicKeyP256(t *testing.T) {
	s := seed(0x11)
	pub, err := PublicKey(KindP256, s)
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if len(pub) != 64 {
		t.Fatalf("len(PublicKey()) = %d, want 64", len(pub))
	}

	priv, err := ecdh.P256().NewPrivateKey(s)
	if err != nil {
		t.Fatalf("NewPrivateKey() error = %v", err)
	}
	if !bytes.Equal(pub, priv.PublicKey().Bytes()[1:]) {
		t.Error("PublicKey() does not match ecdh derivation")
	}

	signer, err := P256PrivateKey(s)
	if err != nil {
		t.Fatalf("P256PrivateKey() error = %v", err)
	}
	digest := sha256.Sum256([]byte("challenge"))
	sig, err := ecdsa.SignASN1(rand.Reader, signer, digest[:])
	if err != nil {
		t.Fatalf("SignASN1() error = %v", err)
	}
	if !ecdsa.VerifyASN1(&signer.PublicKey, digest[:], sig) {
		t.Error("signature does not verify")
	}
}

func TestP256ScalarRehashesOutOfRangeSeed(t *testing.T) {
	// All-ones exceeds the group order and must be replaced by its digest.
	s := seed(0xFF)
	got, err := P256Scalar(s)
	if err != nil {
		t.Fatalf("P256Scalar() error = %v", err)
	}
	want := sha256.Sum256(s)
	if !bytes.Equal(got, want[:]) {
		t.Errorf("P256Scalar() = % X, want sha256(seed)", got)
	}

	if _, err := P256Scalar(make([]byte, 16)); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("P256Scalar(short) error = %v, want ErrInvalidLength", err)
	}
}

func TestPublicKeyEd25519(t *testing.T) {
	s := seed(0x22)
	pub, err := PublicKey(KindEd255, s)
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	want := ed25519.NewKeyFromSeed(s).Public().(ed25519.PublicKey)
	if !bytes.Equal(pub, want) {
		t.Error("PublicKey() does not match ed25519 derivation")
	}
}

func TestPublicKeyX25519(t *testing.T) {
	s := seed(0x33)
	pub, err := PublicKey(KindX255, s)
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if len(pub) != 32 {
		t.Fatalf("len(PublicKey()) = %d, want 32", len(pub))
	}

	// Agreement from both sides yields the same secret.
	peer := seed(0x44)
	peerPub, _ := curve25519.X25519(peer, curve25519.Basepoint)
	a, _ := curve25519.X25519(s, peerPub)
	b, _ := curve25519.X25519(peer, pub)
	if !bytes.Equal(a, b) {
		t.Error("X25519 agreement mismatch")
	}
}

func TestPublicKeyErrors(t *testing.T) {
	if _, err := PublicKey(Kind(1), seed(1)); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("PublicKey(unknown) error = %v", err)
	}
	if _, err := PublicKey(KindEd255, []byte{1}); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("PublicKey(Ed255 short) error = %v", err)
	}
	if _, err := PublicKey(KindX255, []byte{1}); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("PublicKey(X255 short) error = %v", err)
	}
}

func TestVerify(t *testing.T) {
	msg := []byte("challenge")

	p256, err := P256PrivateKey(seed(0x11))
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(rand.Reader, p256, digest[:])
	if err != nil {
		t.Fatal(err)
	}
	pub, err := PublicKey(KindP256, seed(0x11))
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(KindP256, pub, msg, sig); err != nil {
		t.Errorf("Verify(P256) = %v", err)
	}
	if err := Verify(KindP256, pub, []byte("other"), sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Verify(P256, other msg) = %v, want ErrBadSignature", err)
	}

	edSig := ed25519.Sign(ed25519.NewKeyFromSeed(seed(0x22)), msg)
	edPub, err := PublicKey(KindEd255, seed(0x22))
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(KindEd255, edPub, msg, edSig); err != nil {
		t.Errorf("Verify(Ed25519) = %v", err)
	}

	if err := Verify(KindX255, edPub, msg, edSig); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Verify(X25519) = %v, want ErrUnknownKind", err)
	}
	if err := Verify(KindP256, edPub, msg, sig); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("Verify(P256, short key) = %v, want ErrInvalidLength", err)
	}
}

func TestVerifyAgreement(t *testing.T) {
	tokenSeed, hostSeed := seed(0x33), seed(0x44)
	tokenPub, _ := curve25519.X25519(tokenSeed, curve25519.Basepoint)
	hostPub, _ := curve25519.X25519(hostSeed, curve25519.Basepoint)

	shared, _ := curve25519.X25519(tokenSeed, hostPub)
	challenge := seed(0x55)
	h := hmac.New(sha256.New, shared)
	h.Write(challenge)
	mac := h.Sum(nil)

	if err := VerifyAgreement(hostSeed, tokenPub, challenge, mac); err != nil {
		t.Errorf("VerifyAgreement() = %v", err)
	}
	mac[0] ^= 1
	if err := VerifyAgreement(hostSeed, tokenPub, challenge, mac); !errors.Is(err, ErrBadSignature) {
		t.Errorf("VerifyAgreement(tampered) = %v, want ErrBadSignature", err)
	}
}
