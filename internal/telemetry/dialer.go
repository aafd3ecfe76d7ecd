package telemetry

import (
	"context"
	"time"

	"golang.org/x/net/websocket"
)

// Conn is a receive-only frame source.
type Conn interface {
	// Receive blocks until the next frame. A clean remote close returns io.EOF.
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens a stream to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Clock schedules delayed callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// WebSocketDialer dials with golang.org/x/net/websocket.
type WebSocketDialer struct {
	// Origin is sent in the handshake. Defaults to http://localhost/.
	Origin string
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		origin = "http://localhost/"
	}
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, err
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	return wsConn{ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c wsConn) Receive() ([]byte, error) {
	var frame []byte
	if err := websocket.Message.Receive(c.ws, &frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func (c wsConn) Close() error {
	return c.ws.Close()
}
