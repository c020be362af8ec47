package ws

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"

	"github.com/supermancell/chatprobe/internal/common"
	"github.com/supermancell/chatprobe/internal/config"
)

// ErrClientUsed is returned when Run is called on a client that already ran
var ErrClientUsed = errors.New("websocket client already used")

const (
	stateIdle int32 = iota
	stateConnected
	stateClosed
)

const defaultCloseGrace = 5 * time.Second

// Client runs a single authenticated WebSocket session against the chat service.
// It is one-shot: once the connection terminates it cannot be reused.
type Client struct {
	cfg         config.ChatConfig
	handler     common.EventHandler
	logger      *zap.Logger
	sessionID   string
	started     atomic.Bool
	state       atomic.Int32
	onHandshake func(time.Duration)
}

// NewClient creates a new WebSocket client
func NewClient(cfg config.ChatConfig, handler common.EventHandler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:       cfg,
		handler:   handler,
		logger:    logger,
		sessionID: uuid.NewString(),
	}
}

// SetHandshakeObserver registers fn to receive the duration of a successful dial
func (c *Client) SetHandshakeObserver(fn func(time.Duration)) {
	c.onHandshake = fn
}

// SessionID identifies this run in events, logs and stored records
func (c *Client) SessionID() string {
	return c.sessionID
}

// Connected reports whether the socket is currently open
func (c *Client) Connected() bool {
	return c.state.Load() == stateConnected
}

// dialer builds the gorilla dialer for the configured TLS and proxy policy
func (c *Client) dialer() *websocket.Dialer {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.cfg.HandshakeTimeout
	dialer.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: c.cfg.InsecureSkipVerify, //nolint:gosec // opt-in via CHAT_INSECURE_SKIP_VERIFY
	}

	// Configure SOCKS5 proxy if enabled
	if c.cfg.UseProxy && c.cfg.ProxyAddr != "" {
		c.logger.Info("using SOCKS5 proxy", zap.String("proxy", c.cfg.ProxyAddr))
		dialer.Proxy = nil
		dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			proxyDialer, err := proxy.SOCKS5("tcp", c.cfg.ProxyAddr, nil, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
			}
			if cd, ok := proxyDialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return proxyDialer.Dial(network, addr)
		}
	}

	return &dialer
}

// Run dials the chat service, sends the authentication frame and delivers every
// event to the handler on the calling goroutine until the connection closes.
// Cancelling ctx starts a normal closing handshake.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrClientUsed
	}

	if c.cfg.InsecureSkipVerify {
		c.logger.Warn("TLS certificate and hostname verification is disabled",
			zap.String("url", c.cfg.WSURL))
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)

	start := time.Now()
	conn, resp, err := c.dialer().DialContext(ctx, c.cfg.WSURL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		err = fmt.Errorf("failed to connect to %s: %w", c.cfg.WSURL, err)
		c.state.Store(stateClosed)
		c.emit(common.Event{Kind: common.EventError, Err: err})
		return err
	}
	defer conn.Close()

	if c.onHandshake != nil {
		c.onHandshake(time.Since(start))
	}
	c.state.Store(stateConnected)
	defer c.state.Store(stateClosed)

	c.logger.Info("websocket connected",
		zap.String("url", c.cfg.WSURL),
		zap.String("session_id", c.sessionID))
	c.emit(common.Event{Kind: common.EventOpened})

	if err := c.authenticate(conn); err != nil {
		c.emit(common.Event{Kind: common.EventError, Err: err})
		c.emit(common.Event{Kind: common.EventClosed, Code: websocket.CloseAbnormalClosure})
		return err
	}

	stop := make(chan struct{})
	defer close(stop)

	go c.watchContext(ctx, conn, stop)
	if c.cfg.PingInterval > 0 {
		go c.startPingPong(conn, stop)
	}

	return c.readMessages(ctx, conn)
}

// authenticate sends the authentication frame. No acknowledgement is awaited.
func (c *Client) authenticate(conn *websocket.Conn) error {
	data, err := json.Marshal(common.NewAuthMessage(c.cfg.Token))
	if err != nil {
		return fmt.Errorf("failed to marshal authenticate message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send authenticate message: %w", err)
	}

	c.logger.Debug("authenticate message sent", zap.String("session_id", c.sessionID))
	return nil
}

// readMessages reads frames until the connection terminates
func (c *Client) readMessages(ctx context.Context, conn *websocket.Conn) error {
	for {
		messageType, message, err := conn.ReadMessage()
		if err == nil {
			c.emit(common.Event{Kind: common.EventMessage, MessageType: messageType, Data: message})
			continue
		}

		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
			c.emit(common.Event{Kind: common.EventClosed, Code: closeErr.Code, Reason: closeErr.Text})
			return nil
		}

		if ctx.Err() != nil {
			// We initiated the close and the peer did not answer in time.
			c.emit(common.Event{Kind: common.EventClosed, Code: websocket.CloseNormalClosure})
			return nil
		}

		err = fmt.Errorf("error reading message: %w", err)
		c.emit(common.Event{Kind: common.EventError, Err: err})
		c.emit(common.Event{Kind: common.EventClosed, Code: websocket.CloseAbnormalClosure})
		return err
	}
}

// watchContext starts the closing handshake when ctx is cancelled
func (c *Client) watchContext(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case <-ctx.Done():
	}

	grace := c.cfg.CloseGrace
	if grace <= 0 {
		grace = defaultCloseGrace
	}
	deadline := time.Now().Add(grace)

	c.logger.Info("closing websocket", zap.String("session_id", c.sessionID))
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.logger.Warn("error sending close message", zap.Error(err))
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		c.logger.Warn("error setting read deadline", zap.Error(err))
	}
}

// startPingPong sends periodic ping messages to keep the connection alive
func (c *Client) startPingPong(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Warn("failed to send ping", zap.Error(err))
				return
			}
			c.logger.Debug("ping sent", zap.String("session_id", c.sessionID))
		}
	}
}

func (c *Client) emit(evt common.Event) {
	evt.SessionID = c.sessionID
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	if c.handler != nil {
		c.handler(evt)
	}
}
