package wire

// Kind selects what a Request carries.
type Kind uint8

const (
	// KindAPDU carries a command APDU for one ISO 7816 interface.
	KindAPDU Kind = 1

	// KindCTAPHID carries one reassembled CTAPHID message.
	KindCTAPHID Kind = 2

	// KindReset power-cycles the token: every selection is dropped.
	KindReset Kind = 3

	// KindInfo asks for the token's DeviceInfo.
	KindInfo Kind = 4
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAPDU:
		return "APDU"
	case KindCTAPHID:
		return "CTAPHID"
	case KindReset:
		return "Reset"
	case KindInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// IsValid returns true if k is a known request kind.
func (k Kind) IsValid() bool {
	return k >= KindAPDU && k <= KindInfo
}
