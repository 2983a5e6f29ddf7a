// Package transport owns the raw WebSocket connection for one game. It has
// no business knowledge: it dials, sends, closes, and reports lifecycle as
// a tagged event stream so the layers above never touch socket callbacks.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Event is the transport lifecycle union. Closed fires exactly once per
// connection and is the only trigger for reconnection logic upstream.
type Event interface{ isTransportEvent() }

type Opened struct{}

type Frame struct {
	Data []byte
}

type Closed struct {
	Err error
}

func (Opened) isTransportEvent() {}
func (Frame) isTransportEvent()  {}
func (Closed) isTransportEvent() {}

// Conn is one live socket. Events() delivers Opened, then Frames, then a
// single Closed, after which the channel is closed.
type Conn interface {
	Send(ctx context.Context, data []byte) error
	Close() error
	Events() <-chan Event
}

// Dialer abstracts socket creation so the supervisor is testable with a
// fake transport.
type Dialer interface {
	Dial(ctx context.Context, socketURL string) (Conn, error)
}

// SocketURL derives the WebSocket endpoint for a game from the API base
// URL, matching the origin scheme (http -> ws, https -> wss). Reconnects
// must reuse the identical derivation.
func SocketURL(base, gameToken string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/mpg/" + gameToken
	return u.String(), nil
}

// WebSocketDialer dials real sockets.
type WebSocketDialer struct {
	log *zap.Logger
}

func NewWebSocketDialer(log *zap.Logger) *WebSocketDialer {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketDialer{log: log.Named("transport")}
}

func (d *WebSocketDialer) Dial(ctx context.Context, socketURL string) (Conn, error) {
	ws, _, err := websocket.Dial(ctx, socketURL, nil)
	if err != nil {
		return nil, err
	}
	c := &wsConn{
		ws:     ws,
		events: make(chan Event, 16),
		log:    d.log,
	}
	c.events <- Opened{}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	ws        *websocket.Conn
	events    chan Event
	log       *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Events() <-chan Event { return c.events }

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close(websocket.StatusNormalClosure, "bye")
	})
	return c.closeErr
}

// readLoop pumps frames until the socket dies, then emits the one Closed
// event and closes the stream.
func (c *wsConn) readLoop() {
	for {
		_, data, err := c.ws.Read(context.Background())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				err = nil
			}
			c.events <- Closed{Err: err}
			close(c.events)
			return
		}
		c.events <- Frame{Data: data}
	}
}
