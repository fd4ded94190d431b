package provisioner

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/attn-provisioner/provisioner-go/pkg/engine"
	"github.com/attn-provisioner/provisioner-go/pkg/key"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/store"
)

// AppName is the application name used in logs.
const AppName = "provisioner"

// Fixed store paths. Companion tooling depends on these exact values.
const (
	PathT1PublicKey = "/attn/pub/00"

	PathP256Secret  = "/attn/sec/01"
	PathEd255Secret = "/attn/sec/02"
	PathX255Secret  = "/attn/sec/03"

	PathP256Certificate  = "/attn/x5c/01"
	PathEd255Certificate = "/attn/x5c/02"
	PathX255Certificate  = "/attn/x5c/03"
)

// MinCertificateSize is the smallest certificate accepted.
const MinCertificateSize = 100

// T1PublicKeySize is the length of the raw P256 T1 intermediate public key.
const T1PublicKeySize = 64

// Configuration errors.
var (
	ErrNoEngine     = errors.New("provisioner: engine is required")
	ErrNoStore      = errors.New("provisioner: store is required")
	ErrNoFilesystem = errors.New("provisioner: filesystem is required")
	ErrNoPlatform   = errors.New("provisioner: platform is required")
)

// attestationSlot ties a key kind to its engine key ID and store paths.
type attestationSlot struct {
	kind        key.Kind
	keyID       engine.KeyID
	secretPath  string
	certPath    string
	description string
}

var (
	slotP256  = attestationSlot{key.KindP256, engine.SpecialP256, PathP256Secret, PathP256Certificate, "P256"}
	slotEd255 = attestationSlot{key.KindEd255, engine.SpecialEd255, PathEd255Secret, PathEd255Certificate, "Ed25519"}
	slotX255  = attestationSlot{key.KindX255, engine.SpecialX255, PathX255Secret, PathX255Certificate, "X25519"}
)

// Config configures a Provisioner.
type Config struct {
	// Engine is the crypto service. Required.
	Engine engine.Client

	// Store holds keys, certificates and injected files. Required.
	Store store.Store

	// Filesystem is the raw filesystem handle used by ReformatFilesystem. Required.
	Filesystem store.Filesystem

	// Platform provides the UUID, flash erase and reboot. Required.
	Platform Platform

	// NFCPowered is set when the token runs from the NFC field only.
	NFCPowered bool

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives command events (optional).
	ProtocolLogger log.Logger
}

// Validate checks that every required handle is set.
func (c Config) Validate() error {
	switch {
	case c.Engine == nil:
		return ErrNoEngine
	case c.Store == nil:
		return ErrNoStore
	case c.Filesystem == nil:
		return ErrNoFilesystem
	case c.Platform == nil:
		return ErrNoPlatform
	}
	return nil
}

// Provisioner is the provisioning command interpreter.
// It is not safe for concurrent use; callers serialize frames.
type Provisioner struct {
	engine   engine.Client
	store    store.Store
	fs       store.Filesystem
	platform Platform

	nfcPowered bool
	uuid       [UUIDSize]byte

	selected Buffer
	path     boundedBuffer
	content  boundedBuffer

	logger         *slog.Logger
	protocolLogger log.Logger
}

// New creates a provisioner.
func New(config Config) (*Provisioner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provisioner{
		engine:         config.Engine,
		store:          config.Store,
		fs:             config.Filesystem,
		platform:       config.Platform,
		nfcPowered:     config.NFCPowered,
		uuid:           config.Platform.UUID(),
		selected:       BufferFilename,
		path:           newBoundedBuffer(PathBufferSize),
		content:        newBoundedBuffer(ContentBufferSize),
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
	}
	if p.protocolLogger == nil {
		p.protocolLogger = log.NoopLogger{}
	}
	return p, nil
}

// UUID returns the device identifier.
func (p *Provisioner) UUID() [UUIDSize]byte {
	return p.uuid
}

// SelectedBuffer returns the buffer WriteBinary currently appends to.
func (p *Provisioner) SelectedBuffer() Buffer {
	return p.selected
}

// BufferLengths returns the current lengths of the path and content buffers.
func (p *Provisioner) BufferLengths() (path, content int) {
	return p.path.len(), p.content.len()
}

// Select handles application selection: both buffers are cleared, the
// Filename buffer is targeted, and the device UUID is returned.
func (p *Provisioner) Select() []byte {
	p.path.reset()
	p.content.reset()
	p.setSelected(BufferFilename, "application selected")

	p.debugLog("provisioner selected", "nfc_powered", p.nfcPowered)
	id := p.uuid
	return id[:]
}

// Reset returns the interpreter to its power-on state: both buffers are
// emptied and the Filename buffer is targeted. Stored records are kept.
func (p *Provisioner) Reset() {
	p.path.reset()
	p.content.reset()
	p.setSelected(BufferFilename, "reset")
}

// Handle executes cmd with payload data. On failure the error is a Status,
// or ErrUnsupportedCommand for an operation outside the vocabulary.
// TestAttestation is part of the vocabulary only in selftest builds.
func (p *Provisioner) Handle(cmd Command, data []byte) ([]byte, error) {
	return p.handle(log.TransportUnknown, cmd, data)
}

func (p *Provisioner) handle(transport log.Transport, cmd Command, data []byte) ([]byte, error) {
	start := time.Now()
	resp, err := p.execute(cmd, data)
	p.logCommand(transport, cmd, len(data), resp, err, time.Since(start))
	return resp, err
}

func (p *Provisioner) execute(cmd Command, data []byte) ([]byte, error) {
	switch cmd.Op {
	case OpSelect:
		return nil, p.selectBuffer(data)
	case OpWriteBinary:
		return nil, p.writeBinary(data)
	case OpWriteFile:
		return nil, p.writeFile()
	case OpReformatFilesystem:
		return nil, p.reformat()
	case OpGetUuid:
		id := p.uuid
		return id[:], nil
	case OpBootToBootrom:
		p.bootToBootrom()
		return nil, nil
	case OpGenerateP256Key:
		return p.generateKey(slotP256)
	case OpGenerateEd255Key:
		return p.generateKey(slotEd255)
	case OpGenerateX255Key:
		return p.generateKey(slotX255)
	case OpSaveP256AttestationCertificate:
		return nil, p.saveCertificate(slotP256, data)
	case OpSaveEd255AttestationCertificate:
		return nil, p.saveCertificate(slotEd255, data)
	case OpSaveX255AttestationCertificate:
		return nil, p.saveCertificate(slotX255, data)
	case OpSaveT1IntermediatePublicKey:
		return nil, p.saveT1PublicKey(data)
	case OpTestAttestation:
		if !SelfTestEnabled {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		return p.testAttestation(cmd.Mode, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
	}
}

// selectBuffer switches WriteBinary to the buffer named by the selector
// tag. Neither buffer is cleared, so writes continue where they stopped.
func (p *Provisioner) selectBuffer(data []byte) error {
	var target Buffer
	switch {
	case bytes.HasPrefix(data, tagFilename[:]):
		target = BufferFilename
	case bytes.HasPrefix(data, tagFile[:]):
		target = BufferFile
	default:
		p.debugLog("unknown selector", "payload", fmt.Sprintf("% X", data))
		return NotFound
	}
	p.setSelected(target, "select")
	return nil
}

func (p *Provisioner) writeBinary(data []byte) error {
	buf := &p.path
	if p.selected == BufferFile {
		buf = &p.content
	}
	if !buf.append(data) {
		p.debugLog("write exceeds buffer",
			"buffer", p.selected.String(),
			"have", buf.len(),
			"chunk", len(data))
		return IncorrectDataParameter
	}
	return nil
}

func (p *Provisioner) writeFile() error {
	if p.path.len() == 0 || p.content.len() == 0 {
		p.path.reset()
		p.content.reset()
		return IncorrectDataParameter
	}

	path := string(p.path.bytes())
	size := p.content.len()
	err := p.store.Put(store.Internal, path, p.content.bytes())
	p.path.reset()
	p.content.reset()

	if err != nil {
		p.debugLog("failed writing file", "path", path, "size", size, "error", err)
		return NotEnoughMemory
	}
	p.debugLog("wrote file", "path", path, "size", size)
	return nil
}

func (p *Provisioner) reformat() error {
	p.debugLog("reformatting filesystem")
	if err := p.fs.Format(); err != nil {
		p.debugLog("format failed", "error", err)
		return NotEnoughMemory
	}
	return nil
}

// bootToBootrom erases flash page 0 so the boot ROM takes over on the next
// reset, then resets.
func (p *Provisioner) bootToBootrom() {
	p.debugLog("rebooting to bootrom")
	if err := p.platform.ErasePage(0); err != nil {
		p.debugLog("erase page 0 failed", "error", err)
	}
	p.platform.Reboot()
	panic("provisioner: reboot returned")
}

func (p *Provisioner) generateKey(slot attestationSlot) ([]byte, error) {
	seed, err := p.engine.RandomBytes(key.SeedSize)
	if err != nil || len(seed) != key.SeedSize {
		p.debugLog("random source failed", "kind", slot.description, "error", err)
		return nil, NotEnoughMemory
	}

	record := key.NewSecret(slot.kind, seed).Serialize()
	if err := p.store.Put(store.Internal, slot.secretPath, record); err != nil {
		p.debugLog("failed storing secret key", "path", slot.secretPath, "error", err)
		return nil, NotEnoughMemory
	}
	p.debugLog("stored attestation key", "kind", slot.description, "path", slot.secretPath)

	pub, err := key.PublicKey(slot.kind, seed)
	if err != nil {
		p.debugLog("public key derivation failed", "kind", slot.description, "error", err)
		return nil, WrongLength
	}
	return pub, nil
}

func (p *Provisioner) saveCertificate(slot attestationSlot, data []byte) error {
	if !p.store.Exists(slot.secretPath) {
		p.debugLog("no attestation key for certificate", "kind", slot.description)
		return IncorrectDataParameter
	}
	if len(data) < MinCertificateSize {
		p.debugLog("certificate too short", "kind", slot.description, "size", len(data))
		return IncorrectDataParameter
	}

	if err := p.store.Put(store.Internal, slot.certPath, data); err != nil {
		p.debugLog("failed storing certificate", "path", slot.certPath, "error", err)
		return NotEnoughMemory
	}
	p.debugLog("saved attestation certificate", "kind", slot.description, "size", len(data))
	return nil
}

func (p *Provisioner) saveT1PublicKey(data []byte) error {
	if len(data) != T1PublicKeySize {
		p.debugLog("T1 public key has wrong size", "size", len(data))
		return IncorrectDataParameter
	}

	record := key.NewPublic(key.KindP256, data).Serialize()
	if err := p.store.Put(store.Internal, PathT1PublicKey, record); err != nil {
		p.debugLog("failed storing T1 public key", "error", err)
		return NotEnoughMemory
	}
	p.debugLog("saved T1 intermediate public key")
	return nil
}

func (p *Provisioner) setSelected(b Buffer, reason string) {
	old := p.selected
	p.selected = b
	if old == b {
		return
	}
	p.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerApp,
		Category:   log.CategoryState,
		DeviceUUID: p.uuidString(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityBuffer,
			OldState: old.String(),
			NewState: b.String(),
			Reason:   reason,
		},
	})
}

func (p *Provisioner) logCommand(transport log.Transport, cmd Command, dataLen int, resp []byte, err error, elapsed time.Duration) {
	ev := &log.CommandEvent{
		App:            AppName,
		Command:        cmd.String(),
		DataLen:        dataLen,
		ResponseLen:    len(resp),
		ProcessingTime: &elapsed,
	}
	if err != nil {
		if st, ok := AsStatus(err); ok {
			ev.Status = st.String()
		} else {
			ev.Status = err.Error()
		}
	}
	p.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerApp,
		Category:   log.CategoryCommand,
		Transport:  transport,
		DeviceUUID: p.uuidString(),
		Command:    ev,
	})
}

func (p *Provisioner) uuidString() string {
	return uuid.UUID(p.uuid).String()
}

func (p *Provisioner) debugLog(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
