package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

// DefaultMaxCommandData is the largest reassembled command data field.
const DefaultMaxCommandData = 3072

// Construction errors.
var (
	ErrDuplicateAID     = errors.New("dispatch: duplicate AID")
	ErrDuplicateCommand = errors.New("dispatch: duplicate CTAPHID command")
	ErrNilApp           = errors.New("dispatch: nil application")
)

// Config configures a Router.
type Config struct {
	// MaxCommandData bounds the data reassembled from a command chain.
	// Zero means DefaultMaxCommandData.
	MaxCommandData int

	// DeviceUUID is recorded in protocol events (optional).
	DeviceUUID string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives frame and selection events (optional).
	ProtocolLogger log.Logger
}

// Router dispatches APDU and CTAPHID frames to applications.
// It is not safe for concurrent use.
type Router struct {
	apdu []APDUApp
	hid  []HIDApp

	// hidIndex maps each command code to its application.
	hidIndex map[ctaphid.Command]int

	ifaces map[iso7816.Interface]*interfaceState

	maxCommandData int
	deviceUUID     string

	logger         *slog.Logger
	protocolLogger log.Logger
}

// interfaceState is the per-interface APDU state.
type interfaceState struct {
	selected int // index into Router.apdu, -1 for none

	// chain holds a command whose chained data is still arriving.
	chain *iso7816.Command

	// pending is response data not yet fetched with GET RESPONSE.
	pending []byte
}

func newInterfaceState() *interfaceState {
	return &interfaceState{selected: -1}
}

// NewRouter creates a router over the given applications. Order matters:
// SELECT picks the first application whose AID matches.
func NewRouter(apdu []APDUApp, hid []HIDApp, config Config) (*Router, error) {
	for i, app := range apdu {
		if app == nil {
			return nil, fmt.Errorf("%w: APDU app %d", ErrNilApp, i)
		}
		for _, prev := range apdu[:i] {
			if prev.AID().Equal(app.AID()) {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateAID, app.AID())
			}
		}
	}

	hidIndex := make(map[ctaphid.Command]int)
	for i, app := range hid {
		if app == nil {
			return nil, fmt.Errorf("%w: CTAPHID app %d", ErrNilApp, i)
		}
		for _, cmd := range app.Commands() {
			if owner, ok := hidIndex[cmd]; ok && owner != i {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd)
			}
			hidIndex[cmd] = i
		}
	}

	r := &Router{
		apdu:           append([]APDUApp(nil), apdu...),
		hid:            append([]HIDApp(nil), hid...),
		hidIndex:       hidIndex,
		ifaces:         make(map[iso7816.Interface]*interfaceState),
		maxCommandData: config.MaxCommandData,
		deviceUUID:     config.DeviceUUID,
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
	}
	if r.maxCommandData <= 0 {
		r.maxCommandData = DefaultMaxCommandData
	}
	if r.protocolLogger == nil {
		r.protocolLogger = log.NoopLogger{}
	}
	for _, iface := range iso7816.Interfaces {
		r.ifaces[iface] = newInterfaceState()
	}
	return r, nil
}

// APDUApps returns the APDU applications in routing order.
func (r *Router) APDUApps() []APDUApp {
	return append([]APDUApp(nil), r.apdu...)
}

// HIDApps returns the CTAPHID applications in routing order.
func (r *Router) HIDApps() []HIDApp {
	return append([]HIDApp(nil), r.hid...)
}

// Selected returns the application selected on iface.
func (r *Router) Selected(iface iso7816.Interface) (APDUApp, bool) {
	st := r.state(iface)
	if st.selected < 0 {
		return nil, false
	}
	return r.apdu[st.selected], true
}

// Reset drops the selection and chaining state of every interface,
// deselecting selected applications. Used when the token loses power.
func (r *Router) Reset() {
	for _, iface := range iso7816.Interfaces {
		st := r.state(iface)
		st.chain = nil
		st.pending = nil
		if st.selected >= 0 {
			r.setSelected(iface, st, -1, "reset", true)
		}
	}
}

// RouteHID dispatches a CTAPHID message to the application that owns cmd.
func (r *Router) RouteHID(cmd ctaphid.Command, data []byte) ([]byte, error) {
	r.logFrame(log.TransportCTAPHID, log.DirectionIn, data, uint16(cmd))

	if len(data) > ctaphid.MaxMessageSize {
		r.debugLog("CTAPHID message too large", "command", cmd.String(), "size", len(data))
		return nil, ctaphid.ErrInvalidLength
	}
	idx, ok := r.hidIndex[cmd]
	if !ok {
		r.debugLog("no application for CTAPHID command", "command", cmd.String())
		return nil, ctaphid.ErrInvalidCommand
	}

	resp, err := r.hid[idx].Call(cmd, data)
	if err != nil {
		r.debugLog("CTAPHID command failed",
			"app", hidAppName(r.hid[idx]),
			"command", cmd.String(),
			"error", err)
		r.logError(log.TransportCTAPHID, err, fmt.Sprintf("command %s", cmd))
		return nil, err
	}
	r.logFrame(log.TransportCTAPHID, log.DirectionOut, resp, uint16(cmd))
	return resp, nil
}

func (r *Router) state(iface iso7816.Interface) *interfaceState {
	st, ok := r.ifaces[iface]
	if !ok {
		st = newInterfaceState()
		r.ifaces[iface] = st
	}
	return st
}

// setSelected moves the selection of iface to idx. When deselect is set
// the previous application is told it lost the selection.
func (r *Router) setSelected(iface iso7816.Interface, st *interfaceState, idx int, reason string, deselect bool) {
	old := st.selected
	if old == idx {
		return
	}
	oldName := ""
	if old >= 0 {
		if deselect {
			r.apdu[old].Deselect()
		}
		oldName = apduAppName(r.apdu[old])
	}
	st.selected = idx
	newName := ""
	if idx >= 0 {
		newName = apduAppName(r.apdu[idx])
	}

	r.debugLog("selection changed", "interface", iface.String(), "from", oldName, "to", newName)
	r.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		Transport:  interfaceTransport(iface),
		DeviceUUID: r.deviceUUID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySelection,
			OldState: oldName,
			NewState: newName,
			Reason:   reason,
		},
	})
}

func (r *Router) logFrame(transport log.Transport, dir log.Direction, data []byte, code uint16) {
	r.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryFrame,
		Transport:  transport,
		DeviceUUID: r.deviceUUID,
		Frame:      log.NewFrameEvent(data, code),
	})
}

func (r *Router) logError(transport log.Transport, err error, context string) {
	r.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerTransport,
		Category:   log.CategoryError,
		Transport:  transport,
		DeviceUUID: r.deviceUUID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}

func (r *Router) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func interfaceTransport(iface iso7816.Interface) log.Transport {
	if iface == iso7816.Contactless {
		return log.TransportContactless
	}
	return log.TransportContact
}
