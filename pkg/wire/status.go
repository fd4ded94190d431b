package wire

// Status is the link-level outcome of a Request. Token-level failures are
// not link failures: an APDU that fails still answers StatusSuccess with the
// error in its status word.
type Status uint8

const (
	// StatusSuccess indicates the request was delivered and answered.
	StatusSuccess Status = 0

	// StatusInvalidRequest indicates a malformed or unknown request.
	StatusInvalidRequest Status = 1

	// StatusHIDError indicates a CTAPHID error; Response.HIDError holds the code.
	StatusHIDError Status = 2

	// StatusBusy indicates the token is processing another frame.
	StatusBusy Status = 3

	// StatusInternal indicates a failure inside the simulator.
	StatusInternal Status = 4
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusInvalidRequest:
		return "INVALID_REQUEST"
	case StatusHIDError:
		return "HID_ERROR"
	case StatusBusy:
		return "BUSY"
	case StatusInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusSuccess
}
