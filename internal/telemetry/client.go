// Package telemetry consumes the per-interface bitrate stream of one host.
//
// A Client is a small state machine:
//
//	idle -> connecting -> open -> {error, closed} -> connecting (after backoff) -> ...
//
// Any dial failure, read error or remote close schedules exactly one
// reconnect after a fixed backoff. A single retrying flag guards scheduling so
// overlapping failures never queue a second reconnect. Stop is terminal.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"hostwatch/internal/addrutil"
	"hostwatch/internal/logger"
	"hostwatch/internal/model"
)

const DefaultBackoff = time.Second

var (
	// ErrStream marks a socket-level failure.
	ErrStream = errors.New("websocket connection error")
	// ErrParse marks a frame that is not a telemetry sample.
	ErrParse = errors.New("failed to parse network data")
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Backoff time.Duration
	Dialer  Dialer
	Clock   Clock
	Log     logger.Logger
	// OnChange is called after every state or sample change.
	OnChange func(Snapshot)
	// OnSample is called with every successfully decoded frame.
	OnSample func(model.TelemetrySample)
}

// Snapshot is a point-in-time copy of the client state.
type Snapshot struct {
	State      model.ConnectionState `json:"state"`
	Connected  bool                  `json:"connected"`
	Sample     model.TelemetrySample `json:"sample"`
	Error      string                `json:"error,omitempty"`
	Reconnects int                   `json:"reconnects"`
	UpdatedAt  time.Time             `json:"updated_at"`

	Err error `json:"-"`
}

// Client maintains one reconnecting stream.
type Client struct {
	url  string
	opts Options

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopped    bool
	state      model.ConnectionState
	connected  bool
	sample     model.TelemetrySample
	lastErr    error
	reconnects int
	updatedAt  time.Time
	conn       Conn
	gen        uint64
	retrying   bool
	timer      Timer
}

// New creates a client for ws://{hostname}/api/network/ws.
func New(hostname string, opts Options) *Client {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Log == nil {
		opts.Log = logger.Noop()
	}
	return &Client{
		url:   addrutil.WSURL(hostname, addrutil.StreamPath),
		opts:  opts,
		state: model.StateIdle,
	}
}

// URL is the stream endpoint.
func (c *Client) URL() string { return c.url }

// Start begins connecting in the background. It is a no-op after the first
// call or after Stop.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	go c.connect()
}

// Stop tears the client down for good: the pending retry is cancelled, an
// open connection is closed and no further reconnect is scheduled.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.retrying = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.state = model.StateClosed
	c.connected = false
	c.updatedAt = time.Now()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.changed()
}

// Snapshot returns the current state. The sample is a copy.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:      c.state,
		Connected:  c.connected,
		Sample:     c.sample.Clone(),
		Reconnects: c.reconnects,
		UpdatedAt:  c.updatedAt,
		Err:        c.lastErr,
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	return s
}

func (c *Client) connect() {
	c.mu.Lock()
	if c.stopped || c.retrying {
		c.mu.Unlock()
		return
	}
	c.state = model.StateConnecting
	c.updatedAt = time.Now()
	ctx := c.ctx
	c.mu.Unlock()
	c.changed()

	conn, err := c.opts.Dialer.Dial(ctx, c.url)
	if err != nil {
		c.fail(0, model.StateError, fmt.Errorf("%w: %v", ErrStream, err))
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	c.state = model.StateOpen
	c.connected = true
	c.lastErr = nil
	c.updatedAt = time.Now()
	c.mu.Unlock()

	c.opts.Log.Debug("stream open %s", c.url)
	c.changed()
	c.read(gen, conn)
}

func (c *Client) read(gen uint64, conn Conn) {
	for {
		frame, err := conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.fail(gen, model.StateClosed, nil)
			} else {
				c.fail(gen, model.StateError, fmt.Errorf("%w: %v", ErrStream, err))
			}
			return
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame []byte) {
	var sample model.TelemetrySample
	err := json.Unmarshal(frame, &sample)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.updatedAt = time.Now()
	if err != nil {
		c.lastErr = fmt.Errorf("%w: %v", ErrParse, err)
		c.mu.Unlock()
		c.opts.Log.Warn("%s: %v", c.url, err)
		c.changed()
		return
	}
	if sample == nil {
		sample = model.TelemetrySample{}
	}
	c.sample = sample
	if errors.Is(c.lastErr, ErrParse) {
		c.lastErr = nil
	}
	c.mu.Unlock()

	if c.opts.OnSample != nil {
		c.opts.OnSample(sample.Clone())
	}
	c.changed()
}

// fail moves to state and schedules a reconnect. gen identifies the
// connection that failed; 0 means the dial itself failed. Failures of a
// superseded connection are ignored.
func (c *Client) fail(gen uint64, state model.ConnectionState, err error) {
	c.mu.Lock()
	if c.stopped || (gen != 0 && gen != c.gen) {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.connected = false
	if err != nil {
		c.lastErr = err
	}
	c.conn = nil
	c.updatedAt = time.Now()
	scheduled := c.scheduleRetryLocked()
	c.mu.Unlock()

	if err != nil {
		c.opts.Log.Warn("%s: %v", c.url, err)
	} else {
		c.opts.Log.Debug("stream closed %s", c.url)
	}
	if scheduled {
		c.opts.Log.Debug("reconnecting %s in %s", c.url, c.opts.Backoff)
	}
	c.changed()
}

func (c *Client) scheduleRetryLocked() bool {
	if c.retrying {
		return false
	}
	c.retrying = true
	c.timer = c.opts.Clock.AfterFunc(c.opts.Backoff, c.retry)
	return true
}

func (c *Client) retry() {
	c.mu.Lock()
	c.retrying = false
	c.timer = nil
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.reconnects++
	c.mu.Unlock()

	c.connect()
}

func (c *Client) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.Snapshot())
	}
}
