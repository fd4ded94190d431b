package engine

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/curve25519"

	"github.com/attn-provisioner/provisioner-go/pkg/key"
	"github.com/attn-provisioner/provisioner-go/pkg/store"
)

// SecretKeyPath returns the flash path of the attestation key for a special ID.
func SecretKeyPath(id KeyID) string {
	return fmt.Sprintf("/attn/sec/%02d", uint32(id))
}

// slot is a volatile key.
type slot struct {
	mech     Mechanism
	material []byte
}

// Software is a Client implemented in Go, reading attestation keys from a store.
type Software struct {
	mu sync.Mutex

	rand  io.Reader
	store store.Store

	volatile map[KeyID]slot
	nextID   KeyID
}

// Option configures a Software engine.
type Option func(*Software)

// WithRand sets the randomness source. Defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(s *Software) {
		s.rand = r
	}
}

// NewSoftware creates a software engine over st.
func NewSoftware(st store.Store, opts ...Option) *Software {
	s := &Software{
		rand:     rand.Reader,
		store:    st,
		volatile: make(map[KeyID]slot),
		nextID:   firstVolatileID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RandomBytes returns n random bytes.
func (s *Software) RandomBytes(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, n)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return nil, fmt.Errorf("engine: read random: %w", err)
	}
	return buf, nil
}

// Sign signs msg with key id.
func (s *Software) Sign(mech Mechanism, id KeyID, msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	material, err := s.secretLocked(mech, id)
	if err != nil {
		return nil, err
	}

	switch mech {
	case MechanismP256:
		priv, err := key.P256PrivateKey(material)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		digest := sha256.Sum256(msg)
		return ecdsa.SignASN1(s.rand, priv, digest[:])

	case MechanismEd255:
		if len(material) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: Ed25519 seed is %d bytes", ErrInvalidKey, len(material))
		}
		return ed25519.Sign(ed25519.NewKeyFromSeed(material), msg), nil

	default:
		return nil, fmt.Errorf("%w: sign with %s", ErrUnsupported, mech)
	}
}

// ImportX255 stores a peer public key as a volatile key.
func (s *Software) ImportX255(public []byte) (KeyID, error) {
	if len(public) != curve25519.PointSize {
		return 0, fmt.Errorf("%w: X25519 public key is %d bytes", ErrInvalidKey, len(public))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked(MechanismX255, public), nil
}

// AgreeX255 computes the X25519 shared secret.
func (s *Software) AgreeX255(private, public KeyID) (KeyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priv, err := s.secretLocked(MechanismX255, private)
	if err != nil {
		return 0, err
	}
	peer, ok := s.volatile[public]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, public)
	}
	if peer.mech != MechanismX255 {
		return 0, fmt.Errorf("%w: %s is %s", ErrMechanismMismatch, public, peer.mech)
	}
	if len(priv) != curve25519.ScalarSize {
		return 0, fmt.Errorf("%w: X25519 secret is %d bytes", ErrInvalidKey, len(priv))
	}

	shared, err := curve25519.X25519(priv, peer.material)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return s.storeLocked(MechanismHmacSha256, shared), nil
}

// SignHmacSha256 computes HMAC-SHA256(secret, msg).
func (s *Software) SignHmacSha256(secret KeyID, msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sk, ok := s.volatile[secret]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, secret)
	}
	if sk.mech != MechanismHmacSha256 {
		return nil, fmt.Errorf("%w: %s is %s", ErrMechanismMismatch, secret, sk.mech)
	}
	mac := hmac.New(sha256.New, sk.material)
	mac.Write(msg)
	return mac.Sum(nil), nil
}

// Delete drops a volatile key.
func (s *Software) Delete(id KeyID) error {
	if id.IsSpecial() {
		return fmt.Errorf("%w: attestation key %s cannot be deleted", ErrUnsupported, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.volatile[id]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	delete(s.volatile, id)
	return nil
}

// VolatileKeys returns the number of volatile keys held.
func (s *Software) VolatileKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.volatile)
}

func (s *Software) storeLocked(mech Mechanism, material []byte) KeyID {
	id := s.nextID
	s.nextID++
	s.volatile[id] = slot{mech: mech, material: append([]byte(nil), material...)}
	return id
}

// secretLocked resolves the secret material for id and checks it matches mech.
func (s *Software) secretLocked(mech Mechanism, id KeyID) ([]byte, error) {
	if !id.IsSpecial() {
		sk, ok := s.volatile[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
		}
		if sk.mech != mech {
			return nil, fmt.Errorf("%w: %s is %s", ErrMechanismMismatch, id, sk.mech)
		}
		return sk.material, nil
	}

	raw, err := s.store.Read(store.Internal, SecretKeyPath(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyNotFound, id, err)
	}
	k, err := key.Deserialize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if !k.IsSecret() {
		return nil, fmt.Errorf("%w: %s is not a secret key", ErrInvalidKey, id)
	}
	if kindMechanism(k.Kind) != mech {
		return nil, fmt.Errorf("%w: %s holds %s", ErrMechanismMismatch, id, k.Kind)
	}
	return k.Material, nil
}

func kindMechanism(k key.Kind) Mechanism {
	switch k {
	case key.KindP256:
		return MechanismP256
	case key.KindEd255:
		return MechanismEd255
	case key.KindX255:
		return MechanismX255
	default:
		return 0
	}
}

// Ensure Software implements Client.
var _ Client = (*Software)(nil)
