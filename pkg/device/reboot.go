package device

import "github.com/attn-provisioner/provisioner-go/pkg/provisioner"

// RebootSignal is the panic value Rebooter uses to unwind the frame that
// rebooted the token.
type RebootSignal struct{}

// Rebooter reboots a simulated token by unwinding to the Device, which
// power-cycles the router and the applications.
type Rebooter struct{}

// Reboot does not return.
func (Rebooter) Reboot() {
	panic(RebootSignal{})
}

var _ provisioner.Rebooter = Rebooter{}
