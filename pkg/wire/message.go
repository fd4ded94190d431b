package wire

import (
	"errors"
	"fmt"
)

// CBOR map keys for message encoding.
const (
	KeyMessageID    = 1
	KeyKindOrStatus = 2 // Kind (request) or Status (response)
	KeyInterface    = 3 // Request: ISO 7816 interface; Response: payload
	KeyCommand      = 4
	KeyPayload      = 5
	KeyControlType  = 6
	KeySequence     = 7
)

// ControlMessageID is reserved to mark control messages.
const ControlMessageID uint32 = 0

// MaxInterface is the highest ISO 7816 interface number.
const MaxInterface = 1

// Validation errors.
var (
	ErrReservedMessageID = errors.New("messageId 0 is reserved for control messages")
	ErrInvalidKind       = errors.New("invalid request kind")
	ErrInvalidInterface  = errors.New("invalid interface")
	ErrMissingPayload    = errors.New("payload is required")
)

// Request is a message from the host to the simulated token.
//
// CBOR encoding:
//
//	{
//	  1: messageId,    // uint32, non-zero
//	  2: kind,         // uint8: 1=APDU, 2=CTAPHID, 3=Reset, 4=Info
//	  3: interface,    // uint8: 0=contact, 1=contactless (APDU only)
//	  4: command,      // uint8: CTAPHID command (CTAPHID only)
//	  5: payload       // bytes: APDU frame or CTAPHID message data
//	}
type Request struct {
	MessageID uint32 `cbor:"1,keyasint"`
	Kind      Kind   `cbor:"2,keyasint"`
	Interface uint8  `cbor:"3,keyasint,omitempty"`
	Command   uint8  `cbor:"4,keyasint,omitempty"`
	Payload   []byte `cbor:"5,keyasint,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.MessageID == ControlMessageID {
		return ErrReservedMessageID
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, r.Kind)
	}
	if r.Kind == KindAPDU {
		if r.Interface > MaxInterface {
			return fmt.Errorf("%w: %d", ErrInvalidInterface, r.Interface)
		}
		if len(r.Payload) == 0 {
			return fmt.Errorf("APDU %w", ErrMissingPayload)
		}
	}
	return nil
}

// Response is the token's answer to a Request.
//
// CBOR encoding:
//
//	{
//	  1: messageId,    // uint32: matches request
//	  2: status,       // uint8: 0=success, or link error
//	  3: payload,      // bytes: response APDU, CTAPHID data or DeviceInfo
//	  4: hidError,     // uint8: CTAPHID error code (status 2)
//	  5: message       // string: diagnostic text for link errors
//	}
type Response struct {
	MessageID uint32 `cbor:"1,keyasint"`
	Status    Status `cbor:"2,keyasint"`
	Payload   []byte `cbor:"3,keyasint,omitempty"`
	HIDError  uint8  `cbor:"4,keyasint,omitempty"`
	Message   string `cbor:"5,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// DeviceInfo describes a simulated token. It is the payload of a KindInfo
// response.
type DeviceInfo struct {
	UUID        []byte   `cbor:"1,keyasint"`
	Version     string   `cbor:"2,keyasint,omitempty"`
	APDUApps    []string `cbor:"3,keyasint,omitempty"` // AIDs in hex, routing order
	HIDCommands []uint8  `cbor:"4,keyasint,omitempty"`
	NFCPowered  bool     `cbor:"5,keyasint,omitempty"`
}

// ControlMessage represents a link-level control message.
// These are separate from the request/response model.
type ControlMessage struct {
	Type     ControlMessageType
	Sequence uint32
}

// controlWire is the encoded form of ControlMessage.
type controlWire struct {
	MessageID uint32             `cbor:"1,keyasint"`
	Type      ControlMessageType `cbor:"6,keyasint"`
	Sequence  uint32             `cbor:"7,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlMessageType = 3
)

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}

// IsValid returns true if t is a known control message type.
func (t ControlMessageType) IsValid() bool {
	return t >= ControlPing && t <= ControlClose
}
