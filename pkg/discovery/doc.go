// Package discovery implements mDNS/DNS-SD discovery for simulated tokens.
//
// A running simulator advertises one instance of the _attnprov._tcp service.
// The instance name is "attn-" followed by the first 8 hex digits of the
// device UUID; collisions are harmless since clients match on the full UUID.
//
// TXT records:
//   - UU: device UUID (32 hex digits, required)
//   - VR: firmware version ("major.minor.patch", optional)
//   - NF: "1" when the token runs from the NFC field only (optional)
//   - TP: supported transports, comma separated ("apdu,ctaphid")
package discovery
