package dispatch

import (
	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
)

// APDUApp is an application reachable over ISO 7816.
//
// Errors returned by Select and Call should be iso7816.Status values; any
// other error is answered with 6F00.
type APDUApp interface {
	// AID returns the application identifier matched by SELECT.
	AID() iso7816.AID

	// Select is called when a SELECT by name matches the AID. The returned
	// data is the select response.
	Select(iface iso7816.Interface, cmd iso7816.Command) ([]byte, error)

	// Deselect is called when another application is selected on the same
	// interface.
	Deselect()

	// Call handles every other command while the application is selected,
	// including SELECT commands that are not by name.
	Call(iface iso7816.Interface, cmd iso7816.Command) ([]byte, error)
}

// HIDApp is an application reachable over CTAPHID.
type HIDApp interface {
	// Commands returns the command codes the application handles.
	Commands() []ctaphid.Command

	// Call handles one message. Errors should wrap a ctaphid.Error.
	Call(cmd ctaphid.Command, data []byte) ([]byte, error)
}

// Named is implemented by applications that report a name for logging.
type Named interface {
	Name() string
}

func apduAppName(app APDUApp) string {
	if n, ok := app.(Named); ok {
		return n.Name()
	}
	return app.AID().String()
}

func hidAppName(app HIDApp) string {
	if n, ok := app.(Named); ok {
		return n.Name()
	}
	return "app"
}
