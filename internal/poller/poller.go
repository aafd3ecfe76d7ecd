// Package poller keeps the health and status of one host fresh.
//
// Health and status are polled independently. Each poll cycle fires
// immediately and then every Interval. A cycle that fails retries every
// RetryDelay until it succeeds or the poller stops; ticks arriving while a
// cycle is still in flight are skipped, so each probe has at most one
// request outstanding.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hostwatch/internal/logger"
	"hostwatch/internal/model"
)

const (
	DefaultInterval   = 5 * time.Second
	DefaultRetryDelay = time.Second
)

// Prober performs the two network probes of a host.
type Prober interface {
	Health(ctx context.Context, hostname string) (bool, error)
	Status(ctx context.Context, hostname string) (model.HostRecord, error)
}

// Sink receives every fresh status result.
type Sink interface {
	UpdateFromStatus(hostname string, rec model.HostRecord) error
}

// Options configures a Poller. Zero values select the defaults.
type Options struct {
	Interval   time.Duration
	RetryDelay time.Duration
	Log        logger.Logger
	// OnChange is called after every snapshot change.
	OnChange func(Snapshot)
}

// Snapshot is the last known state of a host. While no status has arrived,
// Status holds the placeholder record.
type Snapshot struct {
	Hostname      string           `json:"hostname"`
	Healthy       bool             `json:"healthy"`
	HealthLoading bool             `json:"health_loading"`
	HealthError   string           `json:"health_error,omitempty"`
	Status        model.HostRecord `json:"status"`
	StatusLoading bool             `json:"status_loading"`
	StatusError   string           `json:"status_error,omitempty"`
	CheckedAt     time.Time        `json:"checked_at"`

	HealthErr error `json:"-"`
	StatusErr error `json:"-"`
}

// Poller polls one host until Stop.
type Poller struct {
	hostname string
	prober   Prober
	sink     Sink
	opts     Options

	mu        sync.Mutex
	snap      Snapshot
	hasHealth bool
	hasStatus bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a poller. sink may be nil.
func New(hostname string, prober Prober, sink Sink, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Log == nil {
		opts.Log = logger.Noop()
	}
	return &Poller{
		hostname: hostname,
		prober:   prober,
		sink:     sink,
		opts:     opts,
		snap: Snapshot{
			Hostname:      hostname,
			Status:        model.Placeholder(hostname),
			HealthLoading: true,
			StatusLoading: true,
		},
	}
}

// Start launches both poll loops. Calling Start twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(2)
	go p.loop(ctx, p.pollHealth)
	go p.loop(ctx, p.pollStatus)
}

// Stop cancels every pending poll and retry and waits for them to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *Poller) loop(ctx context.Context, attempt func(context.Context) error) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	var inFlight atomic.Bool
	for {
		if inFlight.CompareAndSwap(false, true) {
			p.wg.Add(1)
			go func() {
				defer inFlight.Store(false)
				p.cycle(ctx, attempt)
			}()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle runs attempt until it succeeds, waiting RetryDelay between failures.
func (p *Poller) cycle(ctx context.Context, attempt func(context.Context) error) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		if err := attempt(ctx); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.opts.RetryDelay):
		}
	}
}

func (p *Poller) pollHealth(ctx context.Context) error {
	ok, err := p.prober.Health(ctx, p.hostname)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.mu.Lock()
	p.snap.CheckedAt = time.Now()
	if err != nil {
		p.snap.HealthErr = err
		p.snap.HealthError = err.Error()
		p.snap.HealthLoading = !p.hasHealth
	} else {
		p.hasHealth = true
		p.snap.Healthy = ok
		p.snap.HealthErr = nil
		p.snap.HealthError = ""
		p.snap.HealthLoading = false
	}
	snap := p.snap
	p.mu.Unlock()

	if err != nil {
		p.opts.Log.Warn("%s: %v", p.hostname, err)
	}
	p.changed(snap)
	return err
}

func (p *Poller) pollStatus(ctx context.Context) error {
	rec, err := p.prober.Status(ctx, p.hostname)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		rec.Hostname = p.hostname
	}

	p.mu.Lock()
	p.snap.CheckedAt = time.Now()
	if err != nil {
		p.snap.StatusErr = err
		p.snap.StatusError = err.Error()
		p.snap.StatusLoading = !p.hasStatus
	} else {
		p.hasStatus = true
		p.snap.Status = rec
		p.snap.StatusErr = nil
		p.snap.StatusError = ""
		p.snap.StatusLoading = false
	}
	snap := p.snap
	p.mu.Unlock()

	if err != nil {
		p.opts.Log.Warn("%s: %v", p.hostname, err)
	} else if p.sink != nil {
		if serr := p.sink.UpdateFromStatus(p.hostname, rec); serr != nil {
			p.opts.Log.Error("%s: store status: %v", p.hostname, serr)
		}
	}
	p.changed(snap)
	return err
}

func (p *Poller) changed(s Snapshot) {
	if p.opts.OnChange != nil {
		p.opts.OnChange(s)
	}
}
