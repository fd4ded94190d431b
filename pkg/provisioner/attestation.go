package provisioner

import (
	"errors"

	"github.com/attn-provisioner/provisioner-go/pkg/engine"
	"github.com/attn-provisioner/provisioner-go/pkg/key"
	"github.com/attn-provisioner/provisioner-go/pkg/store"
)

// ChallengeSize is the length of the random challenge signed by TestAttestation.
const ChallengeSize = 32

// X255PeerKeySize is the length of the peer public key for ModeX255Agree.
const X255PeerKeySize = 32

// testAttestation exercises a provisioned attestation key or reads back a
// provisioned record.
func (p *Provisioner) testAttestation(mode TestAttestationMode, data []byte) ([]byte, error) {
	switch mode {
	case ModeP256Sign:
		return p.signChallenge(engine.MechanismP256, slotP256)
	case ModeEd255Sign:
		return p.signChallenge(engine.MechanismEd255, slotEd255)
	case ModeP256Cert:
		return p.readRecord(slotP256.certPath)
	case ModeEd255Cert:
		return p.readRecord(slotEd255.certPath)
	case ModeX255Cert:
		return p.readRecord(slotX255.certPath)
	case ModeX255Agree:
		return p.agreeChallenge(data)
	case ModeT1Key:
		raw, err := p.readRecord(PathT1PublicKey)
		if err != nil {
			return nil, err
		}
		k, err := key.Deserialize(raw)
		if err != nil {
			p.debugLog("stored T1 key malformed", "error", err)
			return nil, WrongLength
		}
		return k.Material, nil
	default:
		return nil, NotFound
	}
}

func (p *Provisioner) challenge() ([]byte, error) {
	c, err := p.engine.RandomBytes(ChallengeSize)
	if err != nil || len(c) != ChallengeSize {
		p.debugLog("random source failed", "error", err)
		return nil, NotEnoughMemory
	}
	return c, nil
}

// signChallenge returns challenge ‖ signature.
func (p *Provisioner) signChallenge(mech engine.Mechanism, slot attestationSlot) ([]byte, error) {
	challenge, err := p.challenge()
	if err != nil {
		return nil, err
	}
	sig, err := p.engine.Sign(mech, slot.keyID, challenge)
	if err != nil {
		p.debugLog("attestation sign failed", "kind", slot.description, "error", err)
		return nil, engineStatus(err)
	}

	out := make([]byte, 0, len(challenge)+len(sig))
	out = append(out, challenge...)
	return append(out, sig...), nil
}

// agreeChallenge runs X25519 between the attestation key and the caller's
// public key and returns challenge ‖ HMAC-SHA256(shared secret, challenge).
func (p *Provisioner) agreeChallenge(data []byte) ([]byte, error) {
	if len(data) < X255PeerKeySize {
		p.debugLog("peer key too short", "size", len(data))
		return nil, WrongLength
	}

	challenge, err := p.challenge()
	if err != nil {
		return nil, err
	}

	peer, err := p.engine.ImportX255(data[:X255PeerKeySize])
	if err != nil {
		p.debugLog("peer key rejected", "error", err)
		return nil, engineStatus(err)
	}
	defer p.deleteKey(peer)

	shared, err := p.engine.AgreeX255(slotX255.keyID, peer)
	if err != nil {
		p.debugLog("key agreement failed", "error", err)
		return nil, engineStatus(err)
	}
	defer p.deleteKey(shared)

	mac, err := p.engine.SignHmacSha256(shared, challenge)
	if err != nil {
		p.debugLog("hmac failed", "error", err)
		return nil, engineStatus(err)
	}

	out := make([]byte, 0, len(challenge)+len(mac))
	out = append(out, challenge...)
	return append(out, mac...), nil
}

func (p *Provisioner) readRecord(path string) ([]byte, error) {
	data, err := p.store.Read(store.Internal, path)
	if err != nil {
		p.debugLog("record not readable", "path", path, "error", err)
		return nil, NotFound
	}
	return data, nil
}

func (p *Provisioner) deleteKey(id engine.KeyID) {
	if err := p.engine.Delete(id); err != nil {
		p.debugLog("failed deleting volatile key", "key", id.String(), "error", err)
	}
}

// engineStatus maps an engine failure onto the status taxonomy: a missing
// attestation key is NotFound, anything else is malformed key material.
func engineStatus(err error) Status {
	if errors.Is(err, engine.ErrKeyNotFound) {
		return NotFound
	}
	return WrongLength
}
