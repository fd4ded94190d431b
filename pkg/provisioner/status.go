package provisioner

import (
	"errors"
	"fmt"
)

// Status is the closed set of interpreter failures. Every failed command
// returns exactly one Status.
type Status uint8

const (
	// NotFound means a selector, record or path is absent.
	NotFound Status = iota + 1
	// WrongLength means stored or supplied data has an unexpected size.
	WrongLength
	// NotEnoughMemory means a store write or format failed.
	NotEnoughMemory
	// IncorrectDataParameter means a precondition on the arguments failed.
	IncorrectDataParameter
)

// ErrUnsupportedCommand is returned by Handle for an operation outside the
// command vocabulary. Adapters reject unknown wire codes before this point.
var ErrUnsupportedCommand = errors.New("provisioner: unsupported command")

// String returns the status name.
func (s Status) String() string {
	switch s {
	case NotFound:
		return "NotFound"
	case WrongLength:
		return "WrongLength"
	case NotEnoughMemory:
		return "NotEnoughMemory"
	case IncorrectDataParameter:
		return "IncorrectDataParameter"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Error implements error.
func (s Status) Error() string {
	return "provisioner: " + s.String()
}

// AsStatus extracts the Status from err.
func AsStatus(err error) (Status, bool) {
	var s Status
	if errors.As(err, &s) {
		return s, true
	}
	return 0, false
}
