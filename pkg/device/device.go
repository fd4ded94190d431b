// Package device runs an application set as a simulated token: it serializes
// simulator link requests onto the router, one frame at a time.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/attn-provisioner/provisioner-go/pkg/apps"
	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/dispatch"
	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/transport"
	"github.com/attn-provisioner/provisioner-go/pkg/wire"
)

// ErrNoApps is returned by New without an application set.
var ErrNoApps = errors.New("device: apps are required")

// Config configures a simulated token.
type Config struct {
	// Apps is the application set. Required.
	Apps *apps.Apps

	// MaxCommandData bounds reassembled APDU chains (default: 3072).
	MaxCommandData int

	// BusyTimeout is how long a request waits for the previous frame to
	// finish before it is answered with StatusBusy. Zero waits as long as
	// the request context allows.
	BusyTimeout time.Duration

	// OnReboot is called after the token rebooted, with the router already
	// reset (optional).
	OnReboot func()

	// Logger is the optional logger for debug output.
	Logger *slog.Logger

	// ProtocolLogger receives routing events (optional).
	ProtocolLogger log.Logger
}

// Device executes simulator link requests against a router.
// It is safe for concurrent use; frames are processed one at a time.
type Device struct {
	apps        *apps.Apps
	router      *dispatch.Router
	info        wire.DeviceInfo
	sem         chan struct{}
	busyTimeout time.Duration
	onReboot    func()
	logger      *slog.Logger
}

// New creates a device over the application set.
func New(config Config) (*Device, error) {
	if config.Apps == nil {
		return nil, ErrNoApps
	}

	router, err := config.Apps.NewRouter(dispatch.Config{
		MaxCommandData: config.MaxCommandData,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	return &Device{
		apps:        config.Apps,
		router:      router,
		info:        describe(config.Apps),
		sem:         make(chan struct{}, 1),
		busyTimeout: config.BusyTimeout,
		onReboot:    config.OnReboot,
		logger:      config.Logger,
	}, nil
}

// Router returns the underlying router.
func (d *Device) Router() *dispatch.Router {
	return d.router
}

// Info returns the token description served for KindInfo requests.
func (d *Device) Info() wire.DeviceInfo {
	info := d.info
	info.UUID = append([]byte(nil), d.info.UUID...)
	info.APDUApps = append([]string(nil), d.info.APDUApps...)
	info.HIDCommands = append([]uint8(nil), d.info.HIDCommands...)
	return info
}

// HandleRequest executes one request.
func (d *Device) HandleRequest(ctx context.Context, req *wire.Request) (resp *wire.Response) {
	if !d.acquire(ctx) {
		return &wire.Response{Status: wire.StatusBusy, Message: "token busy"}
	}
	defer d.release()

	defer func() {
		if r := recover(); r != nil {
			resp = d.recovered(r)
		}
	}()

	return d.execute(req)
}

func (d *Device) execute(req *wire.Request) *wire.Response {
	switch req.Kind {
	case wire.KindAPDU:
		if req.Interface > wire.MaxInterface {
			return invalid(fmt.Errorf("%w: %d", wire.ErrInvalidInterface, req.Interface))
		}
		return &wire.Response{Payload: d.router.RouteAPDU(iso7816.Interface(req.Interface), req.Payload)}

	case wire.KindCTAPHID:
		data, err := d.router.RouteHID(ctaphid.Command(req.Command), req.Payload)
		if err != nil {
			return hidError(err)
		}
		return &wire.Response{Payload: data}

	case wire.KindReset:
		d.powerCycle()
		d.debugLog("token reset")
		return &wire.Response{}

	case wire.KindInfo:
		info := d.Info()
		payload, err := wire.EncodeDeviceInfo(&info)
		if err != nil {
			return &wire.Response{Status: wire.StatusInternal, Message: err.Error()}
		}
		return &wire.Response{Payload: payload}

	default:
		return invalid(fmt.Errorf("%w: %d", wire.ErrInvalidKind, req.Kind))
	}
}

// powerCycle clears everything a token keeps in RAM: the router's
// selection and chaining state and the applications' scratch buffers.
func (d *Device) powerCycle() {
	d.router.Reset()
	d.apps.Reset()
}

// recovered turns a panic from an application into a response. A reboot
// is a power cycle.
func (d *Device) recovered(r any) *wire.Response {
	if _, ok := r.(RebootSignal); ok {
		d.powerCycle()
		d.debugLog("token rebooted")
		if d.onReboot != nil {
			d.onReboot()
		}
		return &wire.Response{Status: wire.StatusInternal, Message: "token rebooted"}
	}
	if d.logger != nil {
		d.logger.Error("application panic", "panic", r)
	}
	d.powerCycle()
	return &wire.Response{Status: wire.StatusInternal, Message: fmt.Sprint(r)}
}

func (d *Device) acquire(ctx context.Context) bool {
	select {
	case d.sem <- struct{}{}:
		return true
	default:
	}

	if d.busyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.busyTimeout)
		defer cancel()
	}
	select {
	case d.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Device) release() {
	<-d.sem
}

func (d *Device) debugLog(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func invalid(err error) *wire.Response {
	return &wire.Response{Status: wire.StatusInvalidRequest, Message: err.Error()}
}

func hidError(err error) *wire.Response {
	code := ctaphid.ErrOther
	var hidErr ctaphid.Error
	if errors.As(err, &hidErr) {
		code = hidErr
	}
	return &wire.Response{Status: wire.StatusHIDError, HIDError: uint8(code), Message: err.Error()}
}

func describe(set *apps.Apps) wire.DeviceInfo {
	uuid := set.UUID()
	info := wire.DeviceInfo{
		UUID:       append([]byte(nil), uuid[:]...),
		Version:    set.Version().String(),
		NFCPowered: set.NFCPowered(),
	}
	for _, app := range set.APDUApps() {
		info.APDUApps = append(info.APDUApps, app.AID().String())
	}
	for _, app := range set.HIDApps() {
		for _, cmd := range app.Commands() {
			info.HIDCommands = append(info.HIDCommands, uint8(cmd))
		}
	}
	sort.Slice(info.HIDCommands, func(i, j int) bool { return info.HIDCommands[i] < info.HIDCommands[j] })
	return info
}

var _ transport.Handler = (*Device)(nil)
