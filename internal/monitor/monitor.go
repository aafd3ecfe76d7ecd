// Package monitor runs the status poller and the telemetry stream of every
// visible host.
//
// The monitor follows the view: a host entering the visible list gets a
// fresh poller and stream client, a host leaving it has both cancelled.
// Hosts that stay visible keep their clients untouched.
package monitor

import (
	"context"
	"sync"
	"time"

	"hostwatch/internal/logger"
	"hostwatch/internal/metrics"
	"hostwatch/internal/model"
	"hostwatch/internal/poller"
	"hostwatch/internal/telemetry"
)

// HostState is everything known about one visible host.
type HostState struct {
	Record    model.HostRecord   `json:"record"`
	Status    poller.Snapshot    `json:"status"`
	Telemetry telemetry.Snapshot `json:"telemetry"`
}

// Visible is the view surface the monitor follows.
type Visible interface {
	Visible() []model.HostRecord
	Subscribe(func([]model.HostRecord)) (unsubscribe func())
}

// Options configures a Monitor.
type Options struct {
	Prober poller.Prober
	// Sink receives status write-backs, normally the registry.
	Sink poller.Sink

	PollInterval   time.Duration
	RetryDelay     time.Duration
	ReconnectDelay time.Duration
	Dialer         telemetry.Dialer
	Clock          telemetry.Clock

	// TelemetryLogPath, when set, receives every decoded frame as CSV rows.
	TelemetryLogPath string

	Log logger.Logger
	// OnChange is called with a fresh snapshot after any host changes.
	OnChange func([]HostState)
}

type hostEntry struct {
	cancel context.CancelFunc
	poller *poller.Poller
	stream *telemetry.Client
}

// Monitor owns the per-host clients.
type Monitor struct {
	src  Visible
	opts Options
	ctx  context.Context
	stop context.CancelFunc

	reconcileMu sync.Mutex
	unsubscribe func()

	mu      sync.Mutex
	closed  bool
	order   []model.HostRecord
	entries map[string]*hostEntry
	reaping sync.WaitGroup

	logMu sync.Mutex
}

// New starts monitoring the hosts currently visible in src and follows its
// changes until Close.
func New(ctx context.Context, src Visible, opts Options) *Monitor {
	if opts.Log == nil {
		opts.Log = logger.Noop()
	}
	m := &Monitor{
		src:     src,
		opts:    opts,
		entries: map[string]*hostEntry{},
	}
	m.ctx, m.stop = context.WithCancel(ctx)

	m.unsubscribe = src.Subscribe(m.reconcile)
	m.reconcile(src.Visible())
	return m
}

// Hostnames returns the hosts with running clients, in view order.
func (m *Monitor) Hostnames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.order))
	for _, rec := range m.order {
		out = append(out, rec.Hostname)
	}
	return out
}

// Snapshot returns the state of every visible host in view order.
func (m *Monitor) Snapshot() []HostState {
	m.mu.Lock()
	order := append([]model.HostRecord(nil), m.order...)
	entries := make([]*hostEntry, len(order))
	for i, rec := range order {
		entries[i] = m.entries[rec.Hostname]
	}
	m.mu.Unlock()

	out := make([]HostState, 0, len(order))
	for i, rec := range order {
		st := HostState{Record: rec}
		if e := entries[i]; e != nil {
			st.Status = e.poller.Snapshot()
			st.Telemetry = e.stream.Snapshot()
		}
		out = append(out, st)
	}
	return out
}

// Close stops every host and waits for the pollers to exit.
func (m *Monitor) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}

	m.reconcileMu.Lock()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.reconcileMu.Unlock()
		return
	}
	m.closed = true
	entries := m.entries
	m.entries = map[string]*hostEntry{}
	m.order = nil
	m.mu.Unlock()
	m.reconcileMu.Unlock()

	m.stop()
	for _, e := range entries {
		e.cancel()
		e.stream.Stop()
	}
	for _, e := range entries {
		e.poller.Stop()
	}
	m.reaping.Wait()
}

// reconcile diffs the visible list against the running hosts. It may run
// inside a poller's write-back, so pollers of removed hosts are cancelled
// here and reaped in the background.
func (m *Monitor) reconcile(visible []model.HostRecord) {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	keep := make(map[string]bool, len(visible))
	for _, rec := range visible {
		keep[rec.Hostname] = true
	}
	var removed []*hostEntry
	for name, e := range m.entries {
		if !keep[name] {
			removed = append(removed, e)
			delete(m.entries, name)
			m.opts.Log.Debug("stop %s", name)
		}
	}
	var added []*hostEntry
	for _, rec := range visible {
		if _, ok := m.entries[rec.Hostname]; ok {
			continue
		}
		e := m.newEntry(rec.Hostname)
		m.entries[rec.Hostname] = e
		added = append(added, e)
		m.opts.Log.Debug("start %s", rec.Hostname)
	}
	m.order = append([]model.HostRecord(nil), visible...)
	m.mu.Unlock()

	for _, e := range removed {
		e.cancel()
		e.stream.Stop()
		m.reaping.Add(1)
		go func(p *poller.Poller) {
			defer m.reaping.Done()
			p.Stop()
		}(e.poller)
	}
	for _, e := range added {
		ctx, cancel := context.WithCancel(m.ctx)
		e.cancel = cancel
		e.poller.Start(ctx)
		e.stream.Start(ctx)
	}
	m.changed()
}

func (m *Monitor) newEntry(hostname string) *hostEntry {
	e := &hostEntry{cancel: func() {}}
	e.poller = poller.New(hostname, m.opts.Prober, m.opts.Sink, poller.Options{
		Interval:   m.opts.PollInterval,
		RetryDelay: m.opts.RetryDelay,
		Log:        m.opts.Log,
		OnChange:   func(poller.Snapshot) { m.changed() },
	})
	e.stream = telemetry.New(hostname, telemetry.Options{
		Backoff:  m.opts.ReconnectDelay,
		Dialer:   m.opts.Dialer,
		Clock:    m.opts.Clock,
		Log:      m.opts.Log,
		OnChange: func(telemetry.Snapshot) { m.changed() },
		OnSample: func(s model.TelemetrySample) { m.logSample(hostname, s) },
	})
	return e
}

func (m *Monitor) logSample(hostname string, sample model.TelemetrySample) {
	if m.opts.TelemetryLogPath == "" || len(sample) == 0 {
		return
	}
	m.logMu.Lock()
	defer m.logMu.Unlock()
	rows := metrics.Samples(time.Now().UTC(), hostname, sample)
	if err := metrics.AppendCSV(m.opts.TelemetryLogPath, rows); err != nil {
		m.opts.Log.Error("append telemetry log: %v", err)
	}
}

func (m *Monitor) changed() {
	if m.opts.OnChange == nil {
		return
	}
	m.opts.OnChange(m.Snapshot())
}
