package transport_test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/transport"
	"github.com/attn-provisioner/provisioner-go/pkg/wire"
)

// echoHandler answers APDU requests with the payload followed by 9000 and
// HID requests with a CTAPHID error of the command byte.
func echoHandler() transport.Handler {
	return transport.HandlerFunc(func(_ context.Context, req *wire.Request) *wire.Response {
		switch req.Kind {
		case wire.KindAPDU:
			return &wire.Response{Payload: append(append([]byte(nil), req.Payload...), 0x90, 0x00)}
		case wire.KindCTAPHID:
			return &wire.Response{Status: wire.StatusHIDError, HIDError: req.Command}
		case wire.KindInfo:
			info, _ := wire.EncodeDeviceInfo(&wire.DeviceInfo{UUID: []byte{0x01, 0x02}, Version: "test"})
			return &wire.Response{Payload: info}
		default:
			return &wire.Response{}
		}
	})
}

func startServer(t *testing.T, config transport.ServerConfig) *transport.Server {
	t.Helper()
	if config.Address == "" {
		config.Address = "127.0.0.1:0"
	}
	if config.Handler == nil {
		config.Handler = echoHandler()
	}
	server, err := transport.NewServer(config)
	require.NoError(t, err)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { server.Stop() })
	return server
}

// rawConn is a framed TCP connection with no client-side logic.
func rawConn(t *testing.T, server *transport.Server) *transport.Framer {
	t.Helper()
	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return transport.NewFramer(conn)
}

func TestNewServerRequiresHandler(t *testing.T) {
	_, err := transport.NewServer(transport.ServerConfig{})
	assert.ErrorIs(t, err, transport.ErrNoHandler)
}

func TestServerStartTwice(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	assert.ErrorIs(t, server.Start(context.Background()), transport.ErrServerRunning)
}

func TestServerAnswersRequests(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	framer := rawConn(t, server)

	data, err := wire.EncodeRequest(&wire.Request{MessageID: 7, Kind: wire.KindAPDU, Payload: []byte{0x00, 0xA4}})
	require.NoError(t, err)
	require.NoError(t, framer.WriteFrame(data))

	frame, err := framer.ReadFrame()
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(frame)
	require.NoError(t, err)

	assert.Equal(t, uint32(7), resp.MessageID)
	assert.Equal(t, wire.StatusSuccess, resp.Status)
	assert.Equal(t, []byte{0x00, 0xA4, 0x90, 0x00}, resp.Payload)
}

func TestServerRejectsInvalidRequest(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	framer := rawConn(t, server)

	// APDU without a payload fails validation but still carries an ID.
	data, err := wire.Marshal(&wire.Request{MessageID: 3, Kind: wire.KindAPDU})
	require.NoError(t, err)
	require.NoError(t, framer.WriteFrame(data))

	frame, err := framer.ReadFrame()
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(frame)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), resp.MessageID)
	assert.Equal(t, wire.StatusInvalidRequest, resp.Status)
	assert.Contains(t, resp.Message, "payload")
}

func TestServerNilHandlerResponse(t *testing.T) {
	server := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(context.Context, *wire.Request) *wire.Response { return nil }),
	})
	framer := rawConn(t, server)

	data, err := wire.EncodeRequest(&wire.Request{MessageID: 9, Kind: wire.KindReset})
	require.NoError(t, err)
	require.NoError(t, framer.WriteFrame(data))

	frame, err := framer.ReadFrame()
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), resp.MessageID)
	assert.Equal(t, wire.StatusInternal, resp.Status)
}

func TestServerPingPong(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	framer := rawConn(t, server)

	ping, err := transport.EncodePing(42)
	require.NoError(t, err)
	require.NoError(t, framer.WriteFrame(ping))

	frame, err := framer.ReadFrame()
	require.NoError(t, err)
	msg, err := wire.DecodeControlMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, wire.ControlPong, msg.Type)
	assert.Equal(t, uint32(42), msg.Sequence)
}

func TestServerCloseControl(t *testing.T) {
	var disconnected atomic.Bool
	server := startServer(t, transport.ServerConfig{
		OnDisconnect: func(*transport.ServerConn) { disconnected.Store(true) },
	})
	framer := rawConn(t, server)

	closeMsg, err := transport.EncodeClose()
	require.NoError(t, err)
	require.NoError(t, framer.WriteFrame(closeMsg))

	frame, err := framer.ReadFrame()
	require.NoError(t, err)
	msg, err := wire.DecodeControlMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, wire.ControlClose, msg.Type)

	assert.Eventually(t, disconnected.Load, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return server.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServerIdleTimeout(t *testing.T) {
	server := startServer(t, transport.ServerConfig{IdleTimeout: 50 * time.Millisecond})
	framer := rawConn(t, server)

	_, err := framer.ReadFrame()
	assert.Error(t, err)
}

func TestServerMaxConnections(t *testing.T) {
	server := startServer(t, transport.ServerConfig{MaxConnections: 1})

	first := rawConn(t, server)
	require.Eventually(t, func() bool { return server.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	second := rawConn(t, server)
	_, err := second.ReadFrame()
	assert.Error(t, err, "second connection should be closed")

	ping, _ := transport.EncodePing(1)
	require.NoError(t, first.WriteFrame(ping))
	_, err = first.ReadFrame()
	assert.NoError(t, err)
}

func TestServerLogsConnectionState(t *testing.T) {
	rec := &log.Recorder{}
	var connected atomic.Value
	server := startServer(t, transport.ServerConfig{
		ProtocolLogger: rec,
		OnConnect:      func(c *transport.ServerConn) { connected.Store(c.ConnID()) },
	})
	framer := rawConn(t, server)

	closeMsg, _ := transport.EncodeClose()
	require.NoError(t, framer.WriteFrame(closeMsg))
	_, _ = framer.ReadFrame()

	require.Eventually(t, func() bool { return server.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)

	var states []string
	for _, e := range rec.Events() {
		if e.StateChange != nil && e.StateChange.Entity == log.StateEntityConnection {
			assert.Equal(t, connected.Load(), e.ConnectionID)
			states = append(states, e.StateChange.NewState)
		}
	}
	assert.Equal(t, []string{"CONNECTED", "DISCONNECTED"}, states)
}

func TestServerStopClosesConnections(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	framer := rawConn(t, server)
	require.Eventually(t, func() bool { return server.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, server.Stop())
	require.NoError(t, server.Stop())

	_, err := framer.ReadFrame()
	assert.Error(t, err)
}
