package iso7816

// Interface is the physical interface an APDU arrived on. Selection state is
// tracked separately for each.
type Interface uint8

const (
	Contact Interface = iota
	Contactless
)

// Interfaces lists every interface in order.
var Interfaces = []Interface{Contact, Contactless}

// String returns the interface name.
func (i Interface) String() string {
	switch i {
	case Contact:
		return "contact"
	case Contactless:
		return "contactless"
	default:
		return "unknown"
	}
}
