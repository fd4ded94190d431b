package transport

import (
	"context"
	"net"

	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/wire"
)

// TokenLink is the host side of a simulator link.
// Implemented by ClientConn.
type TokenLink interface {
	// Do sends a request and waits for its response.
	Do(ctx context.Context, req *wire.Request) (*wire.Response, error)

	// APDU exchanges one command APDU on an ISO 7816 interface.
	APDU(ctx context.Context, iface uint8, frame []byte) ([]byte, error)

	// HID sends one CTAPHID message.
	HID(ctx context.Context, cmd ctaphid.Command, data []byte) ([]byte, error)

	// Reset deselects all applications on the token.
	Reset(ctx context.Context) error

	// Info fetches the token description.
	Info(ctx context.Context) (*wire.DeviceInfo, error)

	// Close closes the link.
	Close() error
}

// TransportServer represents a simulator link server.
// Implemented by Server.
type TransportServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop gracefully stops the server.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ TokenLink       = (*ClientConn)(nil)
	_ TransportServer = (*Server)(nil)
	_ FrameReadWriter = (*Framer)(nil)
	_ Handler         = HandlerFunc(nil)
)
