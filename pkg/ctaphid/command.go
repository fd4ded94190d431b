package ctaphid

import "fmt"

// Transport limits.
const (
	// ReportSize is the size of a full-speed HID report.
	ReportSize = 64

	// MaxMessageSize is the largest CTAPHID message: one init packet and
	// 128 continuation packets (57 + 128*59).
	MaxMessageSize = 7609
)

// Command is a CTAPHID command code with the init-packet bit cleared.
type Command byte

// Standard commands.
const (
	CmdPing      Command = 0x01
	CmdMsg       Command = 0x03
	CmdLock      Command = 0x04
	CmdInit      Command = 0x06
	CmdWink      Command = 0x08
	CmdCbor      Command = 0x10
	CmdCancel    Command = 0x11
	CmdKeepalive Command = 0x3B
	CmdError     Command = 0x3F
)

// Vendor command range.
const (
	VendorFirst Command = 0x40
	VendorLast  Command = 0x7F
)

// Vendor returns the vendor command with the given code.
// It panics if code is outside 0x40..0x7F.
func Vendor(code byte) Command {
	c := Command(code)
	if !c.IsVendor() {
		panic(fmt.Sprintf("ctaphid: vendor command %#02x out of range", code))
	}
	return c
}

// IsVendor reports whether the command lies in the vendor range.
func (c Command) IsVendor() bool {
	return c >= VendorFirst && c <= VendorLast
}

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdPing:
		return "PING"
	case CmdMsg:
		return "MSG"
	case CmdLock:
		return "LOCK"
	case CmdInit:
		return "INIT"
	case CmdWink:
		return "WINK"
	case CmdCbor:
		return "CBOR"
	case CmdCancel:
		return "CANCEL"
	case CmdKeepalive:
		return "KEEPALIVE"
	case CmdError:
		return "ERROR"
	}
	if c.IsVendor() {
		return fmt.Sprintf("VENDOR_%02X", byte(c))
	}
	return fmt.Sprintf("UNKNOWN_%02X", byte(c))
}
