//go:build selftest

package provisioner

// SelfTestEnabled reports whether TestAttestation is reachable through the
// transport adapters.
const SelfTestEnabled = true
