package ws

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supermancell/chatprobe/internal/common"
	"github.com/supermancell/chatprobe/internal/config"
	"github.com/supermancell/chatprobe/internal/handler"
)

const testToken = "test-token-123"

type eventLog struct {
	mu     sync.Mutex
	events []common.Event
}

func (l *eventLog) handle(evt common.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
}

func (l *eventLog) ofKind(kind common.EventKind) []common.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []common.Event
	for _, evt := range l.events {
		if evt.Kind == kind {
			out = append(out, evt)
		}
	}
	return out
}

// startChatServer runs a mock chat service; serve owns the upgraded connection.
func startChatServer(t *testing.T, useTLS bool, serve func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn, r)
	})

	var srv *httptest.Server
	if useTLS {
		srv = httptest.NewTLSServer(h)
	} else {
		srv = httptest.NewServer(h)
	}
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// closeWith sends a close frame and drains until the client answers
func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func testConfig(url string) config.ChatConfig {
	return config.ChatConfig{
		WSURL:            url,
		Token:            testToken,
		HandshakeTimeout: 2 * time.Second,
		CloseGrace:       time.Second,
	}
}

func runClient(t *testing.T, client *Client) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Run(ctx)
}

func TestRunSendsSingleAuthenticationFrame(t *testing.T) {
	authHeader := make(chan string, 1)
	frames := make(chan string, 4)

	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		authHeader <- r.Header.Get("Authorization")

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frames <- string(msg)

		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(frames)
				return
			}
			frames <- string(msg)
		}
	})

	events := &eventLog{}
	client := NewClient(testConfig(url), events.handle, nil)
	require.NoError(t, runClient(t, client))

	assert.Equal(t, "Bearer "+testToken, <-authHeader)

	var received []string
	for f := range frames {
		received = append(received, f)
	}
	require.Len(t, received, 1)
	assert.Equal(t, `{"event":"authenticate","token":"test-token-123"}`, received[0])
}

func TestRunPrintsInboundFramesVerbatim(t *testing.T) {
	inbound := []string{
		"hello",
		`{"event":"new_message","data":{"chatId":215,"content":"olá"}}`,
		"  spaced  payload  ",
	}

	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, frame := range inbound {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		closeWith(conn, websocket.CloseNormalClosure, "bye")
	})

	var out bytes.Buffer
	client := NewClient(testConfig(url), handler.NewConsoleHandler(&out), nil)
	require.NoError(t, runClient(t, client))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, len(inbound)+1)
	for i, frame := range inbound {
		assert.Equal(t, frame, lines[i])
	}
	assert.Equal(t, "### closed ### 1000 bye", lines[len(inbound)])
}

func TestRunReportsServerClose(t *testing.T) {
	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		closeWith(conn, websocket.CloseNormalClosure, "bye")
	})

	events := &eventLog{}
	client := NewClient(testConfig(url), events.handle, nil)
	require.NoError(t, runClient(t, client))

	closed := events.ofKind(common.EventClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, websocket.CloseNormalClosure, closed[0].Code)
	assert.Equal(t, "bye", closed[0].Reason)
	assert.Equal(t, client.SessionID(), closed[0].SessionID)
	assert.Empty(t, events.ofKind(common.EventError))
	assert.Len(t, events.ofKind(common.EventOpened), 1)
	assert.False(t, client.Connected())
}

func TestRunPassesThroughAbnormalCloseCode(t *testing.T) {
	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		closeWith(conn, websocket.ClosePolicyViolation, "invalid token")
	})

	events := &eventLog{}
	client := NewClient(testConfig(url), events.handle, nil)
	require.NoError(t, runClient(t, client))

	closed := events.ofKind(common.EventClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, websocket.ClosePolicyViolation, closed[0].Code)
	assert.Equal(t, "invalid token", closed[0].Reason)
}

func TestRunRefusedConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	events := &eventLog{}
	client := NewClient(testConfig("ws://"+addr+"/chat"), events.handle, nil)
	err = runClient(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")

	errs := events.ofKind(common.EventError)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Err, err)
	assert.Empty(t, events.ofKind(common.EventOpened))
	assert.Empty(t, events.ofKind(common.EventMessage))
	assert.Empty(t, events.ofKind(common.EventClosed))
	assert.False(t, client.Connected())
}

func TestRunInsecureSkipVerifyAcceptsSelfSignedCertificate(t *testing.T) {
	frames := make(chan string, 1)
	url := startChatServer(t, true, func(conn *websocket.Conn, r *http.Request) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frames <- string(msg)
		closeWith(conn, websocket.CloseNormalClosure, "")
	})
	require.True(t, strings.HasPrefix(url, "wss://"))

	cfg := testConfig(url)
	cfg.InsecureSkipVerify = true

	events := &eventLog{}
	client := NewClient(cfg, events.handle, nil)
	require.NoError(t, runClient(t, client))

	assert.Len(t, events.ofKind(common.EventOpened), 1)
	assert.Empty(t, events.ofKind(common.EventError))
	assert.Equal(t, `{"event":"authenticate","token":"test-token-123"}`, <-frames)
}

func TestRunVerifiesCertificateByDefault(t *testing.T) {
	url := startChatServer(t, true, func(conn *websocket.Conn, r *http.Request) {
		closeWith(conn, websocket.CloseNormalClosure, "")
	})

	events := &eventLog{}
	client := NewClient(testConfig(url), events.handle, nil)
	err := runClient(t, client)
	require.Error(t, err)

	var certErr *tls.CertificateVerificationError
	assert.True(t, errors.As(err, &certErr))
	assert.Len(t, events.ofKind(common.EventError), 1)
	assert.Empty(t, events.ofKind(common.EventOpened))
}

func TestRunTwiceReturnsErrClientUsed(t *testing.T) {
	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		closeWith(conn, websocket.CloseNormalClosure, "")
	})

	client := NewClient(testConfig(url), nil, nil)
	require.NoError(t, runClient(t, client))
	assert.ErrorIs(t, runClient(t, client), ErrClientUsed)
}

func TestRunContextCancelClosesNormally(t *testing.T) {
	serverClose := make(chan int, 1)
	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte("ready")); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					serverClose <- closeErr.Code
				}
				return
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := &eventLog{}
	client := NewClient(testConfig(url), func(evt common.Event) {
		events.handle(evt)
		if evt.Kind == common.EventMessage {
			cancel()
		}
	}, nil)
	require.NoError(t, client.Run(ctx))

	assert.Equal(t, websocket.CloseNormalClosure, <-serverClose)
	closed := events.ofKind(common.EventClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, websocket.CloseNormalClosure, closed[0].Code)
	assert.Empty(t, events.ofKind(common.EventError))
}

func TestRunDroppedConnectionReportsErrorAndClose(t *testing.T) {
	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.UnderlyingConn().Close()
	})

	events := &eventLog{}
	client := NewClient(testConfig(url), events.handle, nil)
	err := runClient(t, client)
	require.Error(t, err)

	assert.Len(t, events.ofKind(common.EventError), 1)
	closed := events.ofKind(common.EventClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, websocket.CloseAbnormalClosure, closed[0].Code)
}

func TestRunSendsPings(t *testing.T) {
	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		var once sync.Once
		conn.SetPingHandler(func(string) error {
			once.Do(func() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "pinged"),
					time.Now().Add(time.Second))
			})
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	cfg := testConfig(url)
	cfg.PingInterval = 20 * time.Millisecond

	events := &eventLog{}
	client := NewClient(cfg, events.handle, nil)
	require.NoError(t, runClient(t, client))

	closed := events.ofKind(common.EventClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, "pinged", closed[0].Reason)
}

func TestHandshakeObserver(t *testing.T) {
	url := startChatServer(t, false, func(conn *websocket.Conn, r *http.Request) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		closeWith(conn, websocket.CloseNormalClosure, "")
	})

	var observed time.Duration
	client := NewClient(testConfig(url), nil, nil)
	client.SetHandshakeObserver(func(d time.Duration) { observed = d })
	require.NoError(t, runClient(t, client))
	assert.Greater(t, observed, time.Duration(0))
}
