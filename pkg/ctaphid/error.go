package ctaphid

import "fmt"

// Error is a CTAPHID error code, sent to the host in an ERROR response.
type Error byte

// CTAPHID error codes.
const (
	ErrInvalidCommand   Error = 0x01
	ErrInvalidParameter Error = 0x02
	ErrInvalidLength    Error = 0x03
	ErrInvalidSeq       Error = 0x04
	ErrTimeout          Error = 0x05
	ErrChannelBusy      Error = 0x06
	ErrLockRequired     Error = 0x0A
	ErrInvalidChannel   Error = 0x0B
	ErrOther            Error = 0x7F
)

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("ctaphid error %#02x (%s)", byte(e), e.String())
}

// String returns the error name.
func (e Error) String() string {
	switch e {
	case ErrInvalidCommand:
		return "INVALID_COMMAND"
	case ErrInvalidParameter:
		return "INVALID_PARAMETER"
	case ErrInvalidLength:
		return "INVALID_LENGTH"
	case ErrInvalidSeq:
		return "INVALID_SEQ"
	case ErrTimeout:
		return "TIMEOUT"
	case ErrChannelBusy:
		return "CHANNEL_BUSY"
	case ErrLockRequired:
		return "LOCK_REQUIRED"
	case ErrInvalidChannel:
		return "INVALID_CHANNEL"
	case ErrOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}
