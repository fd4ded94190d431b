// Package provisioner implements the token's provisioning application: a
// command interpreter that injects files, generates attestation key pairs,
// stores attestation certificates and the T1 intermediate public key, and
// exercises the attestation keys end to end.
//
// The interpreter is reached through two thin adapters that decode transport
// frames into the shared Command vocabulary:
//
//   - APDUApp for ISO 7816 (contact and contactless)
//   - HIDApp for CTAPHID vendor commands
//
// Multi-frame writes go through two bounded scratch buffers. A path is
// written into the Filename buffer, content into the File buffer, and
// WriteFile commits the pair to the store:
//
//	SELECT E1 01        target the Filename buffer
//	WRITE BINARY "/fido/x5c/00"
//	SELECT E1 02        target the File buffer
//	WRITE BINARY <chunk> ...
//	WRITE FILE
//
// Build with the "selftest" tag to expose TestAttestation on the APDU
// adapter.
package provisioner
