package provisioner

// UUIDSize is the length of the device's unique identifier.
const UUIDSize = 16

// Flash erases raw flash pages outside the filesystem.
type Flash interface {
	ErasePage(page int) error
}

// Rebooter resets the device. Reboot must not return.
type Rebooter interface {
	Reboot()
}

// Platform is the hardware the provisioner needs beyond the store and the
// crypto engine.
type Platform interface {
	Flash
	Rebooter

	// UUID returns the device's fixed unique identifier.
	UUID() [UUIDSize]byte
}
