// Package apps assembles the token's application set and hands it to the
// router in routing order.
package apps

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/attn-provisioner/provisioner-go/pkg/dispatch"
	"github.com/attn-provisioner/provisioner-go/pkg/engine"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/provisioner"
	"github.com/attn-provisioner/provisioner-go/pkg/store"
	"github.com/attn-provisioner/provisioner-go/pkg/version"
)

// Configuration errors.
var (
	ErrNoRunner   = errors.New("apps: runner is required")
	ErrNoEngine   = errors.New("apps: engine is required")
	ErrNoStore    = errors.New("apps: store is required")
	ErrNoFlash    = errors.New("apps: flash is required")
	ErrNoRebooter = errors.New("apps: rebooter is required")
)

// Runner describes the device the applications run on.
type Runner interface {
	UUID() [provisioner.UUIDSize]byte
	Version() uint32
}

// NonPortable holds the host-specific resources only the provisioner gets.
type NonPortable struct {
	// Store is the persistent store, also wiped by ReformatFilesystem.
	Store store.Device

	// Flash erases raw pages outside the filesystem.
	Flash provisioner.Flash

	// Rebooter resets the device.
	Rebooter provisioner.Rebooter

	// NFCPowered is set when the token runs from the NFC field only.
	NFCPowered bool
}

// Config configures the application set.
type Config struct {
	Runner      Runner
	Engine      engine.Client
	NonPortable NonPortable

	// APDUApps and HIDApps are routed ahead of the provisioner, in order.
	APDUApps []dispatch.APDUApp
	HIDApps  []dispatch.HIDApp

	// Logger is the optional logger for debug output.
	Logger *slog.Logger

	// ProtocolLogger receives command and routing events (optional).
	ProtocolLogger log.Logger
}

func (c Config) validate() error {
	switch {
	case c.Runner == nil:
		return ErrNoRunner
	case c.Engine == nil:
		return ErrNoEngine
	case c.NonPortable.Store == nil:
		return ErrNoStore
	case c.NonPortable.Flash == nil:
		return ErrNoFlash
	case c.NonPortable.Rebooter == nil:
		return ErrNoRebooter
	}
	return nil
}

// Apps is the assembled application set.
type Apps struct {
	runner      Runner
	provisioner *provisioner.Provisioner
	apdu        []dispatch.APDUApp
	hid         []dispatch.HIDApp
	nfcPowered  bool

	logger         *slog.Logger
	protocolLogger log.Logger
}

// New builds the provisioner from the runner and its non-portable resources
// and places it after the extra applications.
func New(config Config) (*Apps, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	p, err := provisioner.New(provisioner.Config{
		Engine:     config.Engine,
		Store:      config.NonPortable.Store,
		Filesystem: config.NonPortable.Store,
		Platform: platform{
			Flash:    config.NonPortable.Flash,
			Rebooter: config.NonPortable.Rebooter,
			uuid:     config.Runner.UUID(),
		},
		NFCPowered:     config.NonPortable.NFCPowered,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("create provisioner: %w", err)
	}

	a := &Apps{
		runner:         config.Runner,
		provisioner:    p,
		nfcPowered:     config.NonPortable.NFCPowered,
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
	}
	a.apdu = append(append(a.apdu, config.APDUApps...), p.APDU())
	a.hid = append(append(a.hid, config.HIDApps...), p.HID())
	return a, nil
}

// Provisioner returns the provisioning application.
func (a *Apps) Provisioner() *provisioner.Provisioner {
	return a.provisioner
}

// Reset drops the volatile state of the built-in applications, as a power
// cycle would.
func (a *Apps) Reset() {
	a.provisioner.Reset()
}

// APDUApps returns the ISO 7816 applications in routing order.
func (a *Apps) APDUApps() []dispatch.APDUApp {
	return append([]dispatch.APDUApp(nil), a.apdu...)
}

// HIDApps returns the CTAPHID applications in routing order.
func (a *Apps) HIDApps() []dispatch.HIDApp {
	return append([]dispatch.HIDApp(nil), a.hid...)
}

// UUID returns the runner's device UUID.
func (a *Apps) UUID() [provisioner.UUIDSize]byte {
	return a.runner.UUID()
}

// UUIDString returns the device UUID in canonical dashed form, as used in
// protocol events.
func (a *Apps) UUIDString() string {
	return uuid.UUID(a.runner.UUID()).String()
}

// UUIDHex returns the device UUID as 32 lowercase hex digits.
func (a *Apps) UUIDHex() string {
	id := a.runner.UUID()
	return hex.EncodeToString(id[:])
}

// Version returns the runner's firmware version.
func (a *Apps) Version() version.Version {
	return version.Decode(a.runner.Version())
}

// NFCPowered reports the passive-power flag handed to the provisioner.
func (a *Apps) NFCPowered() bool {
	return a.nfcPowered
}

// NewRouter creates a router over the application set. MaxCommandData is
// taken from config; loggers and the device UUID default to the set's own.
func (a *Apps) NewRouter(config dispatch.Config) (*dispatch.Router, error) {
	if config.DeviceUUID == "" {
		config.DeviceUUID = a.UUIDString()
	}
	if config.Logger == nil {
		config.Logger = a.logger
	}
	if config.ProtocolLogger == nil {
		config.ProtocolLogger = a.protocolLogger
	}
	return dispatch.NewRouter(a.apdu, a.hid, config)
}

// platform joins the runner's UUID with the non-portable flash and rebooter.
type platform struct {
	provisioner.Flash
	provisioner.Rebooter
	uuid [provisioner.UUIDSize]byte
}

func (p platform) UUID() [provisioner.UUIDSize]byte {
	return p.uuid
}

var _ provisioner.Platform = platform{}
