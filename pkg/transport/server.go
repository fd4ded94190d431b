package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/wire"
)

// DefaultPort is the default simulator link port.
const DefaultPort = 8469

// Server errors.
var (
	ErrNoHandler      = errors.New("handler is required")
	ErrServerRunning  = errors.New("server already running")
	ErrTooManyClients = errors.New("too many connections")
)

// Handler answers simulator link requests. Requests on one connection are
// handed over one at a time, in arrival order.
type Handler interface {
	HandleRequest(ctx context.Context, req *wire.Request) *wire.Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *wire.Request) *wire.Response

// HandleRequest calls f(ctx, req).
func (f HandlerFunc) HandleRequest(ctx context.Context, req *wire.Request) *wire.Response {
	return f(ctx, req)
}

// ServerConfig configures a simulator link server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8469" or "127.0.0.1:8469").
	Address string

	// Handler answers requests. Required.
	Handler Handler

	// MaxMessageSize is the maximum message size (default: 32KB).
	MaxMessageSize uint32

	// MaxConnections limits concurrent clients. Zero means no limit.
	MaxConnections int

	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables the timeout.
	IdleTimeout time.Duration

	// Logger receives operational messages. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger records frames and connection state (optional).
	ProtocolLogger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)
}

// Server accepts simulator link connections and dispatches their requests.
type Server struct {
	config   ServerConfig
	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new simulator link server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ProtocolLogger == nil {
		config.ProtocolLogger = log.NoopLogger{}
	}

	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.debugLog("server listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	s.debugLog("server stopped")
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				s.logError("", "", fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		if max := s.config.MaxConnections; max > 0 && s.ConnectionCount() >= max {
			s.logError("", conn.RemoteAddr().String(), ErrTooManyClients)
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	remote := conn.RemoteAddr().String()

	framer := NewFramerWithMaxSize(conn, s.config.MaxMessageSize)
	framer.SetLogger(s.config.ProtocolLogger, connID, remote)

	sconn := &ServerConn{
		conn:       conn,
		framer:     framer,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	s.logState(connID, remote, "", "CONNECTED")
	s.debugLog("client connected", "conn", connID, "remote", remote)
	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()
	sconn.Close()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logState(connID, remote, "CONNECTED", "DISCONNECTED")
	s.debugLog("client disconnected", "conn", connID)
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) logState(connID, remote, oldState, newState string) {
	s.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerLink,
		Category:     log.CategoryState,
		RemoteAddr:   remote,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func (s *Server) logError(connID, remote string, err error) {
	s.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerLink,
		Category:     log.CategoryError,
		RemoteAddr:   remote,
		Error: &log.ErrorEventData{
			Layer:   log.LayerLink,
			Message: err.Error(),
		},
	})
	if s.config.Logger != nil {
		s.config.Logger.Warn("link error", "conn", connID, "remote", remote, "error", err)
	}
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

// ServerConn is one client connection to the server.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Send sends a raw message to the client.
func (c *ServerConn) Send(data []byte) error {
	return c.framer.WriteFrame(data)
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *ServerConn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *ServerConn) readLoop() {
	for {
		if c.closed() || c.server.ctx.Err() != nil {
			return
		}

		if timeout := c.server.config.IdleTimeout; timeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(timeout))
		}

		data, err := c.framer.ReadFrame()
		if err != nil {
			if !c.closed() && c.server.running.Load() && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				c.server.logError(c.connID, c.remoteAddr.String(), err)
			}
			return
		}

		// Control messages and requests share key 1; messageId 0 marks
		// control traffic.
		msgType, err := wire.PeekMessageType(data)
		if err != nil {
			c.server.logError(c.connID, c.remoteAddr.String(), err)
			continue
		}
		if msgType == wire.MessageTypeControl {
			msg, err := wire.DecodeControlMessage(data)
			if err != nil {
				c.server.logError(c.connID, c.remoteAddr.String(), err)
				continue
			}
			if !c.handleControlMessage(msg) {
				return
			}
			continue
		}

		c.handleRequest(data)
	}
}

// handleControlMessage answers a control message and reports whether the
// connection stays open.
func (c *ServerConn) handleControlMessage(msg *wire.ControlMessage) bool {
	switch msg.Type {
	case wire.ControlPing:
		pong, _ := EncodePong(msg.Sequence)
		c.Send(pong)
	case wire.ControlClose:
		ack, _ := EncodeClose()
		c.Send(ack)
		return false
	}
	return true
}

func (c *ServerConn) handleRequest(data []byte) {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		c.server.logError(c.connID, c.remoteAddr.String(), err)
		// Without a message ID there is nobody to answer.
		if req == nil || req.MessageID == wire.ControlMessageID {
			return
		}
		c.reply(&wire.Response{
			MessageID: req.MessageID,
			Status:    wire.StatusInvalidRequest,
			Message:   err.Error(),
		})
		return
	}

	resp := c.server.config.Handler.HandleRequest(c.server.ctx, req)
	if resp == nil {
		resp = &wire.Response{Status: wire.StatusInternal, Message: "no response"}
	}
	resp.MessageID = req.MessageID
	c.reply(resp)
}

func (c *ServerConn) reply(resp *wire.Response) {
	data, err := wire.EncodeResponse(resp)
	if err != nil {
		c.server.logError(c.connID, c.remoteAddr.String(), err)
		return
	}
	if err := c.Send(data); err != nil && !c.closed() {
		c.server.logError(c.connID, c.remoteAddr.String(), err)
	}
}

// EncodePing encodes a ping control message.
func EncodePing(seq uint32) ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{Type: wire.ControlPing, Sequence: seq})
}

// EncodePong encodes a pong control message.
func EncodePong(seq uint32) ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{Type: wire.ControlPong, Sequence: seq})
}

// EncodeClose encodes a close control message.
func EncodeClose() ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{Type: wire.ControlClose})
}
