// Package transport carries simulator link messages between a host tool and
// a simulated token.
//
// The transport layer handles:
//   - Length-prefixed message framing
//   - A request/response server that hands each request to a Handler
//   - A client connection that matches responses to requests by message ID
//   - Keep-alive ping/pong for long-lived client sessions
//   - Dial retries with jittered exponential backoff
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   CBOR Messages (pkg/wire)     │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// The link is meant for localhost and lab networks and carries no
// encryption of its own.
//
// # Keep-Alive
//
// Clients may enable keep-alive; the server answers pings:
//   - Ping interval: 15 seconds
//   - Pong timeout: 5 seconds
//   - Max missed pongs: 3
package transport
