package transport_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/transport"
	"github.com/attn-provisioner/provisioner-go/pkg/wire"
)

func dial(t *testing.T, server *transport.Server, config transport.ClientConfig) *transport.ClientConn {
	t.Helper()
	conn, err := transport.NewClient(config).Connect(context.Background(), server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientAPDU(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	conn := dial(t, server, transport.ClientConfig{})

	resp, err := conn.APDU(context.Background(), 1, []byte{0x00, 0xB0, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xB0, 0x00, 0x00, 0x90, 0x00}, resp)
}

func TestClientHIDError(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	conn := dial(t, server, transport.ClientConfig{})

	_, err := conn.HID(context.Background(), ctaphid.Command(ctaphid.ErrInvalidLength), []byte{0x01})
	var hidErr ctaphid.Error
	require.True(t, errors.As(err, &hidErr))
	assert.Equal(t, ctaphid.ErrInvalidLength, hidErr)
}

func TestClientInfoAndReset(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	conn := dial(t, server, transport.ClientConfig{})

	info, err := conn.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, info.UUID)
	assert.Equal(t, "test", info.Version)

	assert.NoError(t, conn.Reset(context.Background()))
}

func TestClientLinkError(t *testing.T) {
	server := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(context.Context, *wire.Request) *wire.Response {
			return &wire.Response{Status: wire.StatusBusy, Message: "frame in progress"}
		}),
	})
	conn := dial(t, server, transport.ClientConfig{})

	_, err := conn.APDU(context.Background(), 0, []byte{0x00, 0xA4, 0x04, 0x00})
	var linkErr *transport.LinkError
	require.True(t, errors.As(err, &linkErr))
	assert.Equal(t, wire.StatusBusy, linkErr.Status)
	assert.Contains(t, err.Error(), "frame in progress")
}

func TestClientInvalidRequestNotSent(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	conn := dial(t, server, transport.ClientConfig{})

	_, err := conn.Do(context.Background(), &wire.Request{Kind: wire.KindAPDU, Interface: 2, Payload: []byte{0x00}})
	assert.ErrorIs(t, err, wire.ErrInvalidInterface)
}

func TestClientConcurrentRequests(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	conn := dial(t, server, transport.ClientConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			resp, err := conn.APDU(context.Background(), 0, []byte{0x00, b})
			if assert.NoError(t, err) {
				assert.Equal(t, []byte{0x00, b, 0x90, 0x00}, resp)
			}
		}(byte(i))
	}
	wg.Wait()
}

func TestClientContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := startServer(t, transport.ServerConfig{
		Handler: transport.HandlerFunc(func(context.Context, *wire.Request) *wire.Response {
			<-release
			return &wire.Response{}
		}),
	})
	defer close(release)
	conn := dial(t, server, transport.ClientConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := conn.Reset(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientServerStop(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	conn := dial(t, server, transport.ClientConfig{})

	require.NoError(t, server.Stop())

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not closed after server stop")
	}
	assert.ErrorIs(t, conn.Err(), transport.ErrConnectionClosed)

	_, err := conn.APDU(context.Background(), 0, []byte{0x00})
	assert.Error(t, err)
}

func TestClientKeepAlive(t *testing.T) {
	server := startServer(t, transport.ServerConfig{})
	conn := dial(t, server, transport.ClientConfig{
		KeepAlive: &transport.KeepAliveConfig{
			PingInterval:   10 * time.Millisecond,
			PongTimeout:    5 * time.Millisecond,
			MaxMissedPongs: 2,
		},
	})

	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, conn.Err(), "answered pings should keep the link open")
}

func TestClientKeepAliveTimeout(t *testing.T) {
	// A listener that accepts and never answers.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		c, err := listener.Accept()
		if err == nil {
			defer c.Close()
			time.Sleep(time.Second)
		}
	}()

	conn, err := transport.NewClient(transport.ClientConfig{
		KeepAlive: &transport.KeepAliveConfig{
			PingInterval:   10 * time.Millisecond,
			PongTimeout:    5 * time.Millisecond,
			MaxMissedPongs: 2,
		},
	}).Connect(context.Background(), listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("keep-alive did not close the silent link")
	}
	assert.ErrorIs(t, conn.Err(), transport.ErrKeepAliveTimeout)
}

func TestDialUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = transport.Dial(context.Background(), addr)
	assert.Error(t, err)
}

func TestConnectRetriesUntilServerListens(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	server, err := transport.NewServer(transport.ServerConfig{Address: addr, Handler: echoHandler()})
	require.NoError(t, err)
	started := make(chan error, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		started <- server.Start(context.Background())
	}()
	t.Cleanup(func() { server.Stop() })

	client := transport.NewClient(transport.ClientConfig{
		Retry: transport.RetryConfig{Attempts: 20, Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, <-started)

	resp, err := conn.APDU(ctx, 1, []byte{0x00, 0xB0, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp[len(resp)-2:])
}

func TestConnectRetryHonoursContext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	client := transport.NewClient(transport.ClientConfig{
		Retry: transport.RetryConfig{Attempts: 1000, Initial: time.Second},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Connect(ctx, addr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
