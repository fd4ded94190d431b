// Package wire defines the CBOR messages of the simulator link.
//
// A host tool talks to a simulated token over a length-prefixed stream (see
// package transport). Every frame carries one CBOR map with integer keys.
//
// # Message Types
//
//   - Request: host to token. Carries one APDU or one CTAPHID message, or a
//     link-level action (power cycle, info query).
//   - Response: token to host, matched to its request by MessageID.
//   - ControlMessage: ping/pong/close, identified by MessageID 0.
//
// # CBOR Integer Keys
//
// Request and Response share keys 1 (messageId) and 2 (kind or status).
// Control messages use messageId 0 and keys 6 and 7, so a decoder can tell
// them apart by peeking at key 1.
package wire
