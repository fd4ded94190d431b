package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/wire"
)

// DefaultConnectTimeout is the default timeout for establishing a connection.
const DefaultConnectTimeout = 10 * time.Second

// Client errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")
)

// LinkError is a non-success link status returned by the simulator.
type LinkError struct {
	Status  wire.Status
	Message string
}

func (e *LinkError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("link status %s", e.Status)
	}
	return fmt.Sprintf("link status %s: %s", e.Status, e.Message)
}

// ClientConfig configures a simulator link client.
type ClientConfig struct {
	// MaxMessageSize is the maximum message size (default: 32KB).
	MaxMessageSize uint32

	// ConnectTimeout bounds the TCP dial (default: 10s).
	ConnectTimeout time.Duration

	// Retry re-dials a refused connection with backoff.
	Retry RetryConfig

	// KeepAlive enables ping/pong liveness checks when non-nil.
	KeepAlive *KeepAliveConfig

	// Logger receives operational messages. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger records frames (optional).
	ProtocolLogger log.Logger
}

// Client dials simulator link servers.
type Client struct {
	config ClientConfig
}

// NewClient creates a new simulator link client.
func NewClient(config ClientConfig) *Client {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.ProtocolLogger == nil {
		config.ProtocolLogger = log.NoopLogger{}
	}
	return &Client{config: config}
}

// Connect dials address and starts the response reader.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	conn, err := c.dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(conn, c.config.MaxMessageSize)
	framer.SetLogger(c.config.ProtocolLogger, connID, conn.RemoteAddr().String())

	cc := &ClientConn{
		conn:    conn,
		framer:  framer,
		connID:  connID,
		logger:  c.config.Logger,
		pending: make(map[uint32]chan *wire.Response),
		closeCh: make(chan struct{}),
	}

	if c.config.KeepAlive != nil {
		cc.keepAlive = NewKeepAlive(*c.config.KeepAlive, cc.SendPing, func() {
			cc.shutdown(ErrKeepAliveTimeout)
		})
		cc.keepAlive.Start(context.Background())
	}

	go cc.readLoop()

	if cc.logger != nil {
		cc.logger.Debug("connected", "conn", connID, "remote", address)
	}
	return cc, nil
}

func (c *Client) dial(ctx context.Context, address string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}
	var retry *backoff

	for attempt := 1; ; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			return conn, nil
		}
		if attempt >= c.config.Retry.Attempts || ctx.Err() != nil {
			return nil, err
		}

		if retry == nil {
			retry = newBackoff(c.config.Retry)
		}
		delay := retry.next()
		if c.config.Logger != nil {
			c.config.Logger.Debug("dial failed, retrying", "remote", address, "attempt", attempt, "delay", delay, "error", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Dial connects to address with the default client configuration.
func Dial(ctx context.Context, address string) (*ClientConn, error) {
	return NewClient(ClientConfig{}).Connect(ctx, address)
}

// ClientConn is a client connection to a simulated token. Requests may be
// issued concurrently; responses are matched by message ID.
type ClientConn struct {
	conn      net.Conn
	framer    *Framer
	connID    string
	logger    *slog.Logger
	keepAlive *KeepAlive

	nextID  atomic.Uint32
	mu      sync.Mutex
	pending map[uint32]chan *wire.Response

	closeCh   chan struct{}
	closeOnce sync.Once
	err       error
}

// ConnID returns the unique connection identifier.
func (c *ClientConn) ConnID() string {
	return c.connID
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Done is closed when the connection ends.
func (c *ClientConn) Done() <-chan struct{} {
	return c.closeCh
}

// Err returns why the connection ended, or nil while it is open.
func (c *ClientConn) Err() error {
	select {
	case <-c.closeCh:
		return c.err
	default:
		return nil
	}
}

// Do sends req and waits for its response. A zero MessageID is replaced
// with the next free one.
func (c *ClientConn) Do(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	if req.MessageID == wire.ControlMessageID {
		req.MessageID = c.allocateID()
	}
	data, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan *wire.Response, 1)
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.pending[req.MessageID] = ch
	c.mu.Unlock()
	defer c.forget(req.MessageID)

	if err := c.framer.WriteFrame(data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.closeCh:
		return nil, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// APDU exchanges one command APDU on the given ISO 7816 interface and
// returns the response APDU including its status word.
func (c *ClientConn) APDU(ctx context.Context, iface uint8, frame []byte) ([]byte, error) {
	resp, err := c.Do(ctx, &wire.Request{Kind: wire.KindAPDU, Interface: iface, Payload: frame})
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// HID sends one CTAPHID message. A CTAPHID error from the token is returned
// as a ctaphid.Error.
func (c *ClientConn) HID(ctx context.Context, cmd ctaphid.Command, data []byte) ([]byte, error) {
	resp, err := c.Do(ctx, &wire.Request{Kind: wire.KindCTAPHID, Command: uint8(cmd), Payload: data})
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Reset deselects all applications on the token.
func (c *ClientConn) Reset(ctx context.Context) error {
	resp, err := c.Do(ctx, &wire.Request{Kind: wire.KindReset})
	if err != nil {
		return err
	}
	return responseError(resp)
}

// Info fetches the token description.
func (c *ClientConn) Info(ctx context.Context) (*wire.DeviceInfo, error) {
	resp, err := c.Do(ctx, &wire.Request{Kind: wire.KindInfo})
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return wire.DecodeDeviceInfo(resp.Payload)
}

// SendPing sends a ping control message with the given sequence number.
func (c *ClientConn) SendPing(seq uint32) error {
	data, err := EncodePing(seq)
	if err != nil {
		return err
	}
	return c.framer.WriteFrame(data)
}

// Close sends a close control message and closes the connection.
func (c *ClientConn) Close() error {
	if data, err := EncodeClose(); err == nil {
		c.framer.WriteFrame(data)
	}
	c.shutdown(ErrConnectionClosed)
	return nil
}

func (c *ClientConn) allocateID() uint32 {
	for {
		if id := c.nextID.Add(1); id != wire.ControlMessageID {
			return id
		}
	}
}

func (c *ClientConn) forget(id uint32) {
	c.mu.Lock()
	if c.pending != nil {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *ClientConn) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = reason
		c.pending = nil
		c.mu.Unlock()

		if c.keepAlive != nil {
			c.keepAlive.Stop()
		}
		close(c.closeCh)
		c.conn.Close()

		if c.logger != nil {
			c.logger.Debug("disconnected", "conn", c.connID, "reason", reason)
		}
	})
}

func (c *ClientConn) readLoop() {
	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			return
		}

		msgType, err := wire.PeekMessageType(data)
		if err != nil {
			continue
		}
		if msgType == wire.MessageTypeControl {
			msg, err := wire.DecodeControlMessage(data)
			if err != nil {
				continue
			}
			switch msg.Type {
			case wire.ControlPong:
				if c.keepAlive != nil {
					c.keepAlive.PongReceived(msg.Sequence)
				}
			case wire.ControlPing:
				if pong, err := EncodePong(msg.Sequence); err == nil {
					c.framer.WriteFrame(pong)
				}
			case wire.ControlClose:
				c.shutdown(ErrConnectionClosed)
				return
			}
			continue
		}

		resp, err := wire.DecodeResponse(data)
		if err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.MessageID]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

// responseError converts a non-success link status to an error.
func responseError(resp *wire.Response) error {
	switch resp.Status {
	case wire.StatusSuccess:
		return nil
	case wire.StatusHIDError:
		return ctaphid.Error(resp.HIDError)
	default:
		return &LinkError{Status: resp.Status, Message: resp.Message}
	}
}
