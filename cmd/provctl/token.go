package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
	"github.com/attn-provisioner/provisioner-go/pkg/provisioner"
	"github.com/attn-provisioner/provisioner-go/pkg/transport"
)

// token drives the provisioner application of a connected token over APDUs.
type token struct {
	link   transport.TokenLink
	iface  iso7816.Interface
	logger *slog.Logger
}

func newToken(link transport.TokenLink, iface iso7816.Interface, logger *slog.Logger) *token {
	return &token{link: link, iface: iface, logger: logger}
}

// transmit sends cmd, splitting it into a chain of short APDUs when needed,
// and collects a response spread over GET RESPONSE calls.
func (t *token) transmit(ctx context.Context, cmd iso7816.Command) ([]byte, error) {
	var resp iso7816.Response
	for _, part := range cmd.Chain() {
		var err error
		resp, err = t.exchange(ctx, part)
		if err != nil {
			return nil, err
		}
		if part.IsChained() && !resp.Status.IsSuccess() {
			return nil, fmt.Errorf("%s: %w", cmd.Instruction, resp.Status)
		}
	}

	data := resp.Data
	for resp.Status.SW1() == iso7816.StatusBytesRemaining.SW1() {
		var err error
		resp, err = t.exchange(ctx, iso7816.NewCommand(iso7816.InsGetResponse, 0, 0, nil))
		if err != nil {
			return nil, err
		}
		data = append(data, resp.Data...)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Instruction, err)
	}
	return data, nil
}

func (t *token) exchange(ctx context.Context, cmd iso7816.Command) (iso7816.Response, error) {
	frame, err := cmd.Bytes()
	if err != nil {
		return iso7816.Response{}, fmt.Errorf("encode %s: %w", cmd.Instruction, err)
	}
	raw, err := t.link.APDU(ctx, uint8(t.iface), frame)
	if err != nil {
		return iso7816.Response{}, err
	}
	resp, err := iso7816.ParseResponse(raw)
	if err != nil {
		return iso7816.Response{}, err
	}
	if t.logger != nil {
		t.logger.Debug("apdu", "command", cmd.String(), "status", resp.Status.String(), "data", len(resp.Data))
	}
	return resp, nil
}

// selectApp selects the provisioner and returns the device UUID it answers with.
func (t *token) selectApp(ctx context.Context) (uuid.UUID, error) {
	data, err := t.transmit(ctx, iso7816.NewCommand(iso7816.InsSelect, iso7816.SelectByName, 0, provisioner.AID))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("select provisioner: %w", err)
	}
	return uuid.FromBytes(data)
}

func (t *token) call(ctx context.Context, ins iso7816.Instruction, p1 byte, data []byte) ([]byte, error) {
	return t.transmit(ctx, iso7816.NewCommand(ins, p1, 0, data))
}

// UUID reads the device UUID.
func (t *token) UUID(ctx context.Context) (uuid.UUID, error) {
	data, err := t.call(ctx, provisioner.InsGetUuid, 0, nil)
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.FromBytes(data)
}

// Generate creates an attestation key and returns its public key.
func (t *token) Generate(ctx context.Context, kind keyKind) ([]byte, error) {
	return t.call(ctx, kind.generate, 0, nil)
}

// StoreCertificate saves the attestation certificate for kind.
func (t *token) StoreCertificate(ctx context.Context, kind keyKind, der []byte) error {
	_, err := t.call(ctx, kind.saveCert, 0, der)
	return err
}

// StoreT1 saves the T1 intermediate public key.
func (t *token) StoreT1(ctx context.Context, public []byte) error {
	_, err := t.call(ctx, provisioner.InsSaveT1IntermediatePublicKey, 0, public)
	return err
}

// WriteFile stores content at path through the filename and file buffers.
func (t *token) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := t.fill(ctx, provisioner.TagFilename(), []byte(path)); err != nil {
		return fmt.Errorf("write path: %w", err)
	}
	if err := t.fill(ctx, provisioner.TagFile(), content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	_, err := t.call(ctx, provisioner.InsWriteFile, 0, nil)
	return err
}

func (t *token) fill(ctx context.Context, tag, data []byte) error {
	if _, err := t.call(ctx, iso7816.InsSelect, 0, tag); err != nil {
		return err
	}
	for len(data) > 0 {
		n := min(len(data), iso7816.MaxShortData)
		if _, err := t.call(ctx, iso7816.InsWriteBinary, 0, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Reformat wipes the token filesystem.
func (t *token) Reformat(ctx context.Context) error {
	_, err := t.call(ctx, provisioner.InsReformatFilesystem, 0, nil)
	return err
}

// BootToBootrom reboots the token into its bootloader. The token does not
// answer the command, so the link error is returned as is.
func (t *token) BootToBootrom(ctx context.Context) error {
	_, err := t.call(ctx, provisioner.InsBootToBootrom, 0, nil)
	return err
}

// SelfTest runs a TestAttestation mode on tokens built with self-test.
func (t *token) SelfTest(ctx context.Context, mode provisioner.TestAttestationMode, data []byte) ([]byte, error) {
	return t.call(ctx, provisioner.InsTestAttestation, byte(mode), data)
}

// keyKind names one attestation key slot on the token.
type keyKind struct {
	name     string
	generate iso7816.Instruction
	saveCert iso7816.Instruction
	signMode provisioner.TestAttestationMode
	certMode provisioner.TestAttestationMode
}

var keyKinds = []keyKind{
	{"p256", provisioner.InsGenerateP256Key, provisioner.InsSaveP256AttestationCertificate, provisioner.ModeP256Sign, provisioner.ModeP256Cert},
	{"ed25519", provisioner.InsGenerateEd255Key, provisioner.InsSaveEd255AttestationCertificate, provisioner.ModeEd255Sign, provisioner.ModeEd255Cert},
	{"x25519", provisioner.InsGenerateX255Key, provisioner.InsSaveX255AttestationCertificate, provisioner.ModeX255Agree, provisioner.ModeX255Cert},
}

func lookupKind(name string) (keyKind, error) {
	for _, k := range keyKinds {
		if k.name == name {
			return k, nil
		}
	}
	return keyKind{}, fmt.Errorf("unknown key kind %q (want p256, ed25519 or x25519)", name)
}
