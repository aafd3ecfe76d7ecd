// Package registry owns the ordered, deduplicated list of tracked hosts.
//
// Every mutation goes through Dispatch, which applies one Action to the list
// currently in local storage, writes the result back in the same storage
// update and then publishes the new list to subscribers. Storage is the
// source of truth: other processes sharing it see each other's changes, and
// Reload or Follow bring changes made elsewhere into this process.
// Subscribers always receive the latest committed list, in commit order, and
// must not call Dispatch from inside their callback.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"hostwatch/internal/logger"
	"hostwatch/internal/model"
	"hostwatch/internal/store"
)

// ActionKind selects the mutation applied by Dispatch.
type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionRemove
	ActionUpdate
)

func (k ActionKind) String() string {
	switch k {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionUpdate:
		return "update"
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is a tagged registry mutation. Record is used by ActionUpdate only.
type Action struct {
	Kind     ActionKind
	Hostname string
	Record   model.HostRecord
}

type subscriber struct {
	id uuid.UUID
	fn func([]model.HostRecord)
}

// Registry is the single source of truth for tracked hosts.
type Registry struct {
	storage  store.Storage
	notifier Notifier

	mu    sync.Mutex
	hosts []model.HostRecord
	subs  []subscriber

	// publishMu serializes deliveries so subscribers observe commits in order.
	publishMu sync.Mutex
}

// New loads the persisted host list verbatim. A nil notifier discards
// notifications.
func New(storage store.Storage, notifier Notifier) (*Registry, error) {
	var hosts []model.HostRecord
	if _, err := store.GetJSON(storage, store.KeyHostnames, &hosts); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = discard{}
	}
	return &Registry{
		storage:  storage,
		notifier: notifier,
		hosts:    hosts,
	}, nil
}

// Add appends hostname with empty status fields.
func (r *Registry) Add(hostname string) error {
	return r.Dispatch(Action{Kind: ActionAdd, Hostname: hostname})
}

// Remove deletes hostname, preserving the order of the others.
func (r *Registry) Remove(hostname string) error {
	return r.Dispatch(Action{Kind: ActionRemove, Hostname: hostname})
}

// UpdateFromStatus replaces the stored record of hostname with a fresher
// status result. Unknown hosts and identical records are ignored.
func (r *Registry) UpdateFromStatus(hostname string, rec model.HostRecord) error {
	return r.Dispatch(Action{Kind: ActionUpdate, Hostname: hostname, Record: rec})
}

// errUnchanged aborts a storage update whose action left the list as is.
var errUnchanged = errors.New("unchanged")

// Dispatch applies a single action. Rejections return *DuplicateHostError or
// *HostNotFoundError and leave storage untouched.
func (r *Registry) Dispatch(a Action) error {
	r.mu.Lock()
	var (
		current []model.HostRecord
		next    []model.HostRecord
		msg     string
	)
	err := r.storage.Update(store.KeyHostnames, func(old []byte, ok bool) ([]byte, error) {
		current = nil
		if ok {
			if err := json.Unmarshal(old, &current); err != nil {
				return nil, fmt.Errorf("decode %s: %w", store.KeyHostnames, err)
			}
		}
		var (
			changed bool
			err     error
		)
		next, changed, msg, err = reduce(current, a)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, errUnchanged
		}
		return json.Marshal(next)
	})

	rejected := IsRejection(err) || errors.Is(err, ErrEmptyHostname)
	if err != nil && !rejected && !errors.Is(err, errUnchanged) {
		r.mu.Unlock()
		return fmt.Errorf("persist hosts: %w", err)
	}
	var refreshed bool
	if err == nil {
		refreshed = r.adoptLocked(next)
	} else {
		// The stored list may hold changes made by another process.
		refreshed = r.adoptLocked(current)
	}
	r.mu.Unlock()

	if err == nil && msg != "" {
		r.notifier.Success(msg)
	}
	if IsRejection(err) {
		r.notifier.Warning(err.Error())
	}
	if refreshed {
		r.publish()
	}
	if rejected {
		return err
	}
	return nil
}

// Reload re-reads the stored list and publishes it when it differs from the
// one this registry last saw.
func (r *Registry) Reload() error {
	r.mu.Lock()
	var hosts []model.HostRecord
	if _, err := store.GetJSON(r.storage, store.KeyHostnames, &hosts); err != nil {
		r.mu.Unlock()
		return err
	}
	refreshed := r.adoptLocked(hosts)
	r.mu.Unlock()
	if refreshed {
		r.publish()
	}
	return nil
}

// Follow calls Reload every interval until ctx is done.
func (r *Registry) Follow(ctx context.Context, interval time.Duration, log logger.Logger) {
	if log == nil {
		log = logger.Noop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reload(); err != nil {
				log.Warn("reload hosts: %v", err)
			}
		}
	}
}

// adoptLocked replaces the cached list with hosts and reports whether it
// changed.
func (r *Registry) adoptLocked(hosts []model.HostRecord) bool {
	if slices.Equal(r.hosts, hosts) {
		return false
	}
	r.hosts = hosts
	return true
}

// reduce computes the next host list without touching the input.
func reduce(hosts []model.HostRecord, a Action) (next []model.HostRecord, changed bool, msg string, err error) {
	idx := indexOf(hosts, a.Hostname)
	switch a.Kind {
	case ActionAdd:
		if a.Hostname == "" {
			return hosts, false, "", ErrEmptyHostname
		}
		if idx >= 0 {
			return hosts, false, "", &DuplicateHostError{Hostname: a.Hostname}
		}
		next = make([]model.HostRecord, 0, len(hosts)+1)
		next = append(next, hosts...)
		next = append(next, model.Placeholder(a.Hostname))
		return next, true, fmt.Sprintf("Hostname %q added", a.Hostname), nil

	case ActionRemove:
		if idx < 0 {
			return hosts, false, "", &HostNotFoundError{Hostname: a.Hostname}
		}
		next = make([]model.HostRecord, 0, len(hosts)-1)
		next = append(next, hosts[:idx]...)
		next = append(next, hosts[idx+1:]...)
		return next, true, fmt.Sprintf("Hostname %q removed", a.Hostname), nil

	case ActionUpdate:
		if idx < 0 {
			return hosts, false, "", nil
		}
		rec := a.Record
		rec.Hostname = a.Hostname
		if hosts[idx] == rec {
			return hosts, false, "", nil
		}
		next = make([]model.HostRecord, len(hosts))
		copy(next, hosts)
		next[idx] = rec
		return next, true, "", nil
	}
	return hosts, false, "", fmt.Errorf("unknown action %s", a.Kind)
}

func indexOf(hosts []model.HostRecord, hostname string) int {
	for i := range hosts {
		if hosts[i].Hostname == hostname {
			return i
		}
	}
	return -1
}

// Hosts returns a copy of the current ordered list.
func (r *Registry) Hosts() []model.HostRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.HostRecord(nil), r.hosts...)
}

// Get returns the record for hostname.
func (r *Registry) Get(hostname string) (model.HostRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := indexOf(r.hosts, hostname); i >= 0 {
		return r.hosts[i], true
	}
	return model.HostRecord{}, false
}

// Subscribe registers fn for every committed change. The returned function
// removes the subscription.
func (r *Registry) Subscribe(fn func([]model.HostRecord)) (unsubscribe func()) {
	id := uuid.New()
	r.mu.Lock()
	r.subs = append(r.subs, subscriber{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

func (r *Registry) publish() {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	r.mu.Lock()
	hosts := append([]model.HostRecord(nil), r.hosts...)
	subs := append([]subscriber(nil), r.subs...)
	r.mu.Unlock()

	for _, s := range subs {
		s.fn(append([]model.HostRecord(nil), hosts...))
	}
}

type discard struct{}

func (discard) Success(string) {}
func (discard) Warning(string) {}
