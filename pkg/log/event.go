package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the simulator link (UUID). Empty for
	// in-process dispatch.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Transport is the token interface the frame arrived on.
	Transport Transport `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address for simulator links.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceUUID is the token's unique identifier in hex.
	DeviceUUID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Link and transport layers
	Command     *CommandEvent     `cbor:"11,keyasint,omitempty"` // Application layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Selection and link state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a frame received by the token.
	DirectionIn Direction = 0
	// DirectionOut indicates a frame sent by the token.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerLink is the simulator socket framing layer.
	LayerLink Layer = 0
	// LayerTransport is the APDU / CTAPHID frame layer.
	LayerTransport Layer = 1
	// LayerApp is the application command layer.
	LayerApp Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "LINK"
	case LayerTransport:
		return "TRANSPORT"
	case LayerApp:
		return "APP"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a raw frame.
	CategoryFrame Category = 0
	// CategoryCommand indicates a decoded application command.
	CategoryCommand Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryCommand:
		return "COMMAND"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Transport identifies the token interface.
type Transport uint8

const (
	// TransportUnknown is used for link-level events.
	TransportUnknown Transport = 0
	// TransportContact is ISO 7816 over the contact interface.
	TransportContact Transport = 1
	// TransportContactless is ISO 7816 over NFC.
	TransportContactless Transport = 2
	// TransportCTAPHID is the USB HID vendor channel.
	TransportCTAPHID Transport = 3
)

// String returns the transport name.
func (t Transport) String() string {
	switch t {
	case TransportContact:
		return "CONTACT"
	case TransportContactless:
		return "CONTACTLESS"
	case TransportCTAPHID:
		return "CTAPHID"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Code is the instruction byte of an inbound APDU, the status word of an
	// outbound APDU, or the CTAPHID command byte.
	Code uint16 `cbor:"4,keyasint,omitempty"`
}

// CommandEvent captures a command handled by an application.
type CommandEvent struct {
	// App names the application that handled the command.
	App string `cbor:"1,keyasint"`

	// Command is the decoded command name.
	Command string `cbor:"2,keyasint"`

	// Status is the failure status; empty on success.
	Status string `cbor:"3,keyasint,omitempty"`

	// DataLen is the payload length of the request.
	DataLen int `cbor:"4,keyasint"`

	// ResponseLen is the payload length of the response.
	ResponseLen int `cbor:"5,keyasint"`

	// ProcessingTime is the time spent in the application, in nanoseconds.
	ProcessingTime *time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures selection and link lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a simulator link state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySelection indicates the selected application changed.
	StateEntitySelection StateEntity = 1
	// StateEntityBuffer indicates the provisioner's target buffer changed.
	StateEntityBuffer StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySelection:
		return "SELECTION"
	case StateEntityBuffer:
		return "BUFFER"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// MaxFrameData is the maximum frame data size to include in events.
const MaxFrameData = 4096

// NewFrameEvent builds a FrameEvent for data, truncating the captured bytes
// to MaxFrameData.
func NewFrameEvent(data []byte, code uint16) *FrameEvent {
	ev := &FrameEvent{Size: len(data), Code: code}
	if len(data) > MaxFrameData {
		ev.Data = append([]byte(nil), data[:MaxFrameData]...)
		ev.Truncated = true
	} else {
		ev.Data = append([]byte(nil), data...)
	}
	return ev
}
