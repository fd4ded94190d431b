package iso7816

import "fmt"

// Instruction is the INS byte of a command APDU.
type Instruction byte

// Interindustry instructions used by the dispatcher and its applications.
const (
	InsVerify       Instruction = 0x20
	InsSelect       Instruction = 0xA4
	InsReadBinary   Instruction = 0xB0
	InsGetResponse  Instruction = 0xC0
	InsGetData      Instruction = 0xCA
	InsWriteBinary  Instruction = 0xD0
	InsUpdateBinary Instruction = 0xD6
	InsPutData      Instruction = 0xDB
)

// Select P1 values.
const (
	// SelectByName selects an application by its DF name (AID).
	SelectByName byte = 0x04
)

// String returns the instruction name.
func (i Instruction) String() string {
	switch i {
	case InsVerify:
		return "VERIFY"
	case InsSelect:
		return "SELECT"
	case InsReadBinary:
		return "READ_BINARY"
	case InsGetResponse:
		return "GET_RESPONSE"
	case InsGetData:
		return "GET_DATA"
	case InsWriteBinary:
		return "WRITE_BINARY"
	case InsUpdateBinary:
		return "UPDATE_BINARY"
	case InsPutData:
		return "PUT_DATA"
	default:
		return fmt.Sprintf("INS_%02X", byte(i))
	}
}
