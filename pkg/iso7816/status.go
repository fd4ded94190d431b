package iso7816

import "fmt"

// Status is an ISO 7816 status word (SW1 SW2).
type Status uint16

const (
	// StatusSuccess indicates normal processing (90 00).
	StatusSuccess Status = 0x9000

	// StatusBytesRemaining indicates more response data is available (61 xx).
	// The low byte carries the number of remaining bytes (00 means 256 or more).
	StatusBytesRemaining Status = 0x6100

	// StatusWrongLength indicates a wrong Lc/Le or malformed frame (67 00).
	StatusWrongLength Status = 0x6700

	// StatusLastCommandOfChainExpected indicates a broken command chain (68 83).
	StatusLastCommandOfChainExpected Status = 0x6883

	// StatusSecurityStatusNotSatisfied (69 82).
	StatusSecurityStatusNotSatisfied Status = 0x6982

	// StatusConditionsOfUseNotSatisfied (69 85).
	StatusConditionsOfUseNotSatisfied Status = 0x6985

	// StatusCommandNotAllowed indicates there is no current application (69 86).
	StatusCommandNotAllowed Status = 0x6986

	// StatusIncorrectDataParameter indicates bad command data (6A 80).
	StatusIncorrectDataParameter Status = 0x6A80

	// StatusFunctionNotSupported (6A 81).
	StatusFunctionNotSupported Status = 0x6A81

	// StatusNotFound indicates an application or file was not found (6A 82).
	StatusNotFound Status = 0x6A82

	// StatusNotEnoughMemory (6A 84).
	StatusNotEnoughMemory Status = 0x6A84

	// StatusIncorrectP1P2 (6A 86).
	StatusIncorrectP1P2 Status = 0x6A86

	// StatusInstructionNotSupported (6D 00).
	StatusInstructionNotSupported Status = 0x6D00

	// StatusClassNotSupported (6E 00).
	StatusClassNotSupported Status = 0x6E00

	// StatusUnspecifiedCheckingError (6F 00).
	StatusUnspecifiedCheckingError Status = 0x6F00
)

// NewStatus builds a status word from its two bytes.
func NewStatus(sw1, sw2 byte) Status {
	return Status(uint16(sw1)<<8 | uint16(sw2))
}

// BytesRemaining returns the 61xx status for n remaining response bytes.
func BytesRemaining(n int) Status {
	if n >= 256 {
		return StatusBytesRemaining
	}
	return StatusBytesRemaining | Status(n)
}

// SW1 returns the first status byte.
func (s Status) SW1() byte { return byte(s >> 8) }

// SW2 returns the second status byte.
func (s Status) SW2() byte { return byte(s) }

// IsSuccess returns true for 90 00 and 61 xx.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess || s.SW1() == 0x61
}

// Error implements the error interface.
func (s Status) Error() string {
	return fmt.Sprintf("status %04X (%s)", uint16(s), s.String())
}

// String returns the status name.
func (s Status) String() string {
	if s.SW1() == 0x61 {
		return "BYTES_REMAINING"
	}
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusWrongLength:
		return "WRONG_LENGTH"
	case StatusLastCommandOfChainExpected:
		return "LAST_COMMAND_OF_CHAIN_EXPECTED"
	case StatusSecurityStatusNotSatisfied:
		return "SECURITY_STATUS_NOT_SATISFIED"
	case StatusConditionsOfUseNotSatisfied:
		return "CONDITIONS_OF_USE_NOT_SATISFIED"
	case StatusCommandNotAllowed:
		return "COMMAND_NOT_ALLOWED"
	case StatusIncorrectDataParameter:
		return "INCORRECT_DATA_PARAMETER"
	case StatusFunctionNotSupported:
		return "FUNCTION_NOT_SUPPORTED"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusNotEnoughMemory:
		return "NOT_ENOUGH_MEMORY"
	case StatusIncorrectP1P2:
		return "INCORRECT_P1_P2"
	case StatusInstructionNotSupported:
		return "INSTRUCTION_NOT_SUPPORTED"
	case StatusClassNotSupported:
		return "CLASS_NOT_SUPPORTED"
	case StatusUnspecifiedCheckingError:
		return "UNSPECIFIED_CHECKING_ERROR"
	default:
		return "UNKNOWN"
	}
}
