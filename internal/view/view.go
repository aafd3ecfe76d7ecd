// Package view derives the visible host list from the registry and the
// current filter.
package view

import (
	"sync"

	"github.com/google/uuid"

	"hostwatch/internal/model"
)

// Apply returns the hosts matching state in their original order. The input
// is never modified and the result never aliases it.
func Apply(hosts []model.HostRecord, state model.FilterState) []model.HostRecord {
	out := make([]model.HostRecord, 0, len(hosts))
	for _, h := range hosts {
		switch state {
		case model.FilterOnline:
			if !h.Online() {
				continue
			}
		case model.FilterOffline:
			if h.Online() {
				continue
			}
		}
		out = append(out, h)
	}
	return out
}

// Source is the registry surface the view observes.
type Source interface {
	Hosts() []model.HostRecord
	Subscribe(func([]model.HostRecord)) (unsubscribe func())
}

type subscriber struct {
	id uuid.UUID
	fn func([]model.HostRecord)
}

// View holds the process-wide filter and recomputes the visible hosts
// whenever the filter or the registry changes.
type View struct {
	src         Source
	unsubscribe func()

	mu      sync.Mutex
	filter  model.FilterState
	hosts   []model.HostRecord
	visible []model.HostRecord
	subs    []subscriber

	publishMu sync.Mutex
}

// New starts observing src with filter all.
func New(src Source) *View {
	v := &View{src: src, filter: model.FilterAll}
	v.hosts = src.Hosts()
	v.visible = Apply(v.hosts, v.filter)
	v.unsubscribe = src.Subscribe(v.onHosts)
	return v
}

// Close stops observing the source.
func (v *View) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}

// Filter returns the current filter.
func (v *View) Filter() model.FilterState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// SetFilter changes the filter and republishes when it differs.
func (v *View) SetFilter(state model.FilterState) {
	v.mu.Lock()
	if v.filter == state {
		v.mu.Unlock()
		return
	}
	v.filter = state
	v.visible = Apply(v.hosts, state)
	v.mu.Unlock()
	v.publish()
}

// Visible returns a copy of the current derived list.
func (v *View) Visible() []model.HostRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.HostRecord(nil), v.visible...)
}

// Subscribe registers fn for every recomputation.
func (v *View) Subscribe(fn func([]model.HostRecord)) (unsubscribe func()) {
	id := uuid.New()
	v.mu.Lock()
	v.subs = append(v.subs, subscriber{id: id, fn: fn})
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, s := range v.subs {
			if s.id == id {
				v.subs = append(v.subs[:i:i], v.subs[i+1:]...)
				return
			}
		}
	}
}

func (v *View) onHosts(hosts []model.HostRecord) {
	v.mu.Lock()
	v.hosts = hosts
	v.visible = Apply(hosts, v.filter)
	v.mu.Unlock()
	v.publish()
}

func (v *View) publish() {
	v.publishMu.Lock()
	defer v.publishMu.Unlock()

	v.mu.Lock()
	visible := v.visible
	subs := append([]subscriber(nil), v.subs...)
	v.mu.Unlock()

	for _, s := range subs {
		s.fn(append([]model.HostRecord(nil), visible...))
	}
}
