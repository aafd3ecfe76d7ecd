package telemetry

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostwatch/internal/model"
)

const waitFor = 2 * time.Second

// fakeClock records AfterFunc calls; Fire runs them on demand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Pending counts timers that are neither stopped nor fired.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Fire runs every pending timer in its own goroutine, as time.AfterFunc does.
func (c *fakeClock) Fire() int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		go t.f()
	}
	return len(due)
}

type fakeConn struct {
	frames chan []byte
	done   chan error
	once   sync.Once
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 8), done: make(chan error, 1), closed: make(chan struct{})}
}

func (c *fakeConn) Receive() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.done:
		return nil, err
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	err   error
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitFor):
		t.Fatal("no connection dialed")
		return nil
	}
}

func newTestClient(d Dialer, clock Clock) *Client {
	return New("enc-1:8080", Options{Dialer: d, Clock: clock})
}

func waitState(t *testing.T, c *Client, state model.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Snapshot().State == state }, waitFor, 5*time.Millisecond,
		"want state %s, have %s", state, c.Snapshot().State)
}

func TestClient_URL(t *testing.T) {
	t.Parallel()

	c := New("enc-1:8080", Options{})
	assert.Equal(t, "ws://enc-1:8080/api/network/ws", c.URL())
	assert.Equal(t, model.StateIdle, c.Snapshot().State)
}

func TestClient_FramesReplaceSample(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	c := newTestClient(d, &fakeClock{})
	c.Start(context.Background())
	defer c.Stop()

	conn := d.next(t)
	waitState(t, c, model.StateOpen)
	assert.True(t, c.Snapshot().Connected)

	conn.frames <- []byte(`{"a":{"in_kbps":1,"out_kbps":2}}`)
	want := model.TelemetrySample{"a": {InKbps: 1, OutKbps: 2}}
	require.Eventually(t, func() bool { return assert.ObjectsAreEqual(want, c.Snapshot().Sample) }, waitFor, 5*time.Millisecond)

	conn.frames <- []byte(`{"b":{"in_kbps":3,"out_kbps":4}}`)
	want = model.TelemetrySample{"b": {InKbps: 3, OutKbps: 4}}
	require.Eventually(t, func() bool { return assert.ObjectsAreEqual(want, c.Snapshot().Sample) }, waitFor, 5*time.Millisecond)
}

func TestClient_ParseErrorStaysOpen(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	clock := &fakeClock{}
	c := newTestClient(d, clock)
	c.Start(context.Background())
	defer c.Stop()

	conn := d.next(t)
	waitState(t, c, model.StateOpen)
	conn.frames <- []byte(`{"a":{"in_kbps":1,"out_kbps":2}}`)
	conn.frames <- []byte(`not json`)

	require.Eventually(t, func() bool { return errors.Is(c.Snapshot().Err, ErrParse) }, waitFor, 5*time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, model.StateOpen, snap.State)
	assert.True(t, snap.Connected)
	assert.Equal(t, model.TelemetrySample{"a": {InKbps: 1, OutKbps: 2}}, snap.Sample)
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 1, d.Dials())

	conn.frames <- []byte(`{"b":{"in_kbps":3,"out_kbps":4}}`)
	require.Eventually(t, func() bool { return c.Snapshot().Err == nil }, waitFor, 5*time.Millisecond)
}

func TestClient_CloseSchedulesSingleReconnect(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	d.setErr(errors.New("connection refused"))
	clock := &fakeClock{}
	c := newTestClient(d, clock)
	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, waitFor, 5*time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, model.StateError, snap.State)
	assert.False(t, snap.Connected)
	assert.ErrorIs(t, snap.Err, ErrStream)

	// Two more failure events before the reconnect fires.
	c.fail(0, model.StateClosed, nil)
	c.fail(0, model.StateError, ErrStream)
	assert.Equal(t, 1, clock.Pending())
	clock.mu.Lock()
	for _, tm := range clock.timers {
		assert.Equal(t, DefaultBackoff, tm.d)
	}
	clock.mu.Unlock()

	require.Equal(t, 1, clock.Fire())
	require.Eventually(t, func() bool { return d.Dials() == 2 && clock.Pending() == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, c.Snapshot().Reconnects)
}

func TestClient_RemoteCloseReconnectsAndKeepsStaleSample(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	clock := &fakeClock{}
	c := newTestClient(d, clock)
	c.Start(context.Background())
	defer c.Stop()

	conn := d.next(t)
	conn.frames <- []byte(`{"eth0":{"in_kbps":10,"out_kbps":20}}`)
	require.Eventually(t, func() bool { return len(c.Snapshot().Sample) == 1 }, waitFor, 5*time.Millisecond)

	conn.done <- io.EOF
	waitState(t, c, model.StateClosed)
	snap := c.Snapshot()
	assert.False(t, snap.Connected)
	assert.Nil(t, snap.Err)
	assert.Equal(t, model.TelemetrySample{"eth0": {InKbps: 10, OutKbps: 20}}, snap.Sample)
	assert.Equal(t, 1, clock.Pending())

	clock.Fire()
	d.next(t)
	waitState(t, c, model.StateOpen)
	assert.Equal(t, 2, d.Dials())
}

func TestClient_ReadErrorMarksError(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	clock := &fakeClock{}
	c := newTestClient(d, clock)
	c.Start(context.Background())
	defer c.Stop()

	conn := d.next(t)
	waitState(t, c, model.StateOpen)
	conn.done <- errors.New("connection reset by peer")

	waitState(t, c, model.StateError)
	assert.ErrorIs(t, c.Snapshot().Err, ErrStream)
	assert.Equal(t, 1, clock.Pending())
}

func TestClient_StopCancelsPendingRetry(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	d.setErr(errors.New("connection refused"))
	clock := &fakeClock{}
	c := newTestClient(d, clock)
	c.Start(context.Background())

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, waitFor, 5*time.Millisecond)
	c.Stop()

	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 0, clock.Fire())
	assert.Equal(t, model.StateClosed, c.Snapshot().State)
	assert.Equal(t, 1, d.Dials())

	c.fail(0, model.StateError, ErrStream)
	assert.Equal(t, 0, clock.Pending())
}

func TestClient_StopClosesOpenConnWithoutRetry(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	clock := &fakeClock{}
	c := newTestClient(d, clock)
	c.Start(context.Background())

	conn := d.next(t)
	waitState(t, c, model.StateOpen)
	c.Stop()

	assert.True(t, conn.isClosed())
	// The read loop sees EOF from the close; give it a moment to run.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, model.StateClosed, c.Snapshot().State)
}

func TestClient_NoRetryAfterStopWithRealClock(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	d.setErr(errors.New("connection refused"))
	c := New("enc-1", Options{Dialer: d, Backoff: 20 * time.Millisecond})
	c.Start(context.Background())

	require.Eventually(t, func() bool { return c.Snapshot().State == model.StateError }, waitFor, time.Millisecond)
	c.Stop()
	dials := d.Dials()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, dials, d.Dials())
}

func TestClient_OnChangeAndOnSample(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	var mu sync.Mutex
	var states []model.ConnectionState
	samples := make(chan model.TelemetrySample, 1)
	c := New("enc-1", Options{
		Dialer: d,
		Clock:  &fakeClock{},
		OnChange: func(s Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, s.State)
		},
		OnSample: func(s model.TelemetrySample) { samples <- s },
	})
	c.Start(context.Background())
	defer c.Stop()

	conn := d.next(t)
	conn.frames <- []byte(`{"wlan0":{"in_kbps":5,"out_kbps":6}}`)
	select {
	case s := <-samples:
		assert.Equal(t, model.TelemetrySample{"wlan0": {InKbps: 5, OutKbps: 6}}, s)
	case <-time.After(waitFor):
		t.Fatal("no sample")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(states), 2)
	assert.Equal(t, model.StateConnecting, states[0])
	assert.Equal(t, model.StateOpen, states[1])
}
