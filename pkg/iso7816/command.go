package iso7816

import (
	"errors"
	"fmt"

	"github.com/skythen/apdu"
)

// Class byte bits.
const (
	// ClassChained marks a command that is not the last of a chain (ISO/IEC 7816-4 5.1.1).
	ClassChained byte = 0x10
)

// Short APDU limits.
const (
	// MaxShortData is the largest data field of a short command APDU.
	MaxShortData = 0xFF

	// MaxShortResponse is the largest data field of a short response APDU.
	MaxShortResponse = 256
)

// ErrMalformedCommand indicates bytes that do not form a command APDU.
var ErrMalformedCommand = errors.New("malformed command APDU")

// Command is a decoded command APDU.
type Command struct {
	Class       byte
	Instruction Instruction
	P1          byte
	P2          byte
	Data        []byte

	// Extended is set when the frame used extended length encoding.
	Extended bool
}

// NewCommand creates a command with class 00.
func NewCommand(ins Instruction, p1, p2 byte, data []byte) Command {
	return Command{Instruction: ins, P1: p1, P2: p2, Data: data}
}

// ParseCommand decodes a command APDU frame.
func ParseCommand(frame []byte) (Command, error) {
	c, err := apdu.ParseCapdu(frame)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return Command{
		Class:       c.Cla,
		Instruction: Instruction(c.Ins),
		P1:          c.P1,
		P2:          c.P2,
		Data:        c.Data,
		Extended:    isExtended(frame),
	}, nil
}

// isExtended reports whether a frame uses extended Lc/Le encoding:
// the byte after the header is 00 and more bytes follow.
func isExtended(frame []byte) bool {
	return len(frame) >= 7 && frame[4] == 0x00
}

// Bytes encodes the command as a single APDU frame.
func (c Command) Bytes() ([]byte, error) {
	capdu := apdu.Capdu{Cla: c.Class, Ins: byte(c.Instruction), P1: c.P1, P2: c.P2, Data: c.Data}
	return capdu.Bytes()
}

// IsChained reports whether more commands of the same chain follow.
func (c Command) IsChained() bool {
	return c.Class&ClassChained != 0
}

// IsSelectByName reports whether this is a SELECT by DF name.
func (c Command) IsSelectByName() bool {
	return c.Instruction == InsSelect && c.P1 == SelectByName
}

// Chain splits the command into short APDUs, marking all but the last
// as chained when the data exceeds a short APDU.
func (c Command) Chain() []Command {
	data := c.Data
	var cmds []Command
	for len(data) > MaxShortData {
		part := c
		part.Class = c.Class | ClassChained
		part.Data = data[:MaxShortData]
		part.Extended = false
		cmds = append(cmds, part)
		data = data[MaxShortData:]
	}
	last := c
	last.Data = data
	last.Extended = false
	return append(cmds, last)
}

// String returns a short human readable form.
func (c Command) String() string {
	return fmt.Sprintf("%02X %s P1=%02X P2=%02X Lc=%d", c.Class, c.Instruction, c.P1, c.P2, len(c.Data))
}
