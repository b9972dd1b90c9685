// Package registry holds the in-session collection of data sources and the
// active-selection pointer.
//
// The active pointer, when set, always names a source present in the registry.
// Every mutation re-establishes that before releasing the lock, so neither
// readers nor subscribers can observe a dangling selection.
package registry

import (
	"iter"
	"slices"
	"sync"

	"go.uber.org/zap"

	"financial_extractor/pkg/models"
)

// EventKind names a registry mutation.
type EventKind string

const (
	EventAdded    EventKind = "added"
	EventRemoved  EventKind = "removed"
	EventSelected EventKind = "selected"
	EventReplaced EventKind = "replaced"
)

// Event is delivered to subscribers after a mutation. ActiveID is the active
// source after the mutation ("" when none).
type Event struct {
	Kind     EventKind
	SourceID string
	ActiveID string
}

// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sources     []*models.DataSource
	activeID    string
	subscribers []func(Event)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add appends src and makes it the active source.
func (r *Registry) Add(src *models.DataSource) {
	r.mu.Lock()
	r.sources = append(r.sources, src)
	r.activeID = src.ID
	ev := Event{Kind: EventAdded, SourceID: src.ID, ActiveID: r.activeID}
	subs := r.subscribers
	r.mu.Unlock()

	zap.L().Debug("data source added",
		zap.String("id", src.ID),
		zap.String("name", src.Name),
		zap.String("data_type", string(src.DataType)),
		zap.Int("records", src.Len()),
	)
	notify(subs, ev)
}

// Remove deletes the source with id. When it was active, the last remaining
// source becomes active (none if the registry is now empty). It reports
// whether anything was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	r.sources = slices.Delete(r.sources, idx, idx+1)
	if r.activeID == id {
		r.activeID = ""
		if n := len(r.sources); n > 0 {
			r.activeID = r.sources[n-1].ID
		}
	}
	ev := Event{Kind: EventRemoved, SourceID: id, ActiveID: r.activeID}
	subs := r.subscribers
	r.mu.Unlock()

	zap.L().Debug("data source removed", zap.String("id", id), zap.String("active", ev.ActiveID))
	notify(subs, ev)
	return true
}

// Select makes id the active source. Unknown ids are a no-op; it reports
// whether the selection changed hands to id.
func (r *Registry) Select(id string) bool {
	r.mu.Lock()
	if r.indexOf(id) < 0 {
		r.mu.Unlock()
		return false
	}
	r.activeID = id
	ev := Event{Kind: EventSelected, SourceID: id, ActiveID: id}
	subs := r.subscribers
	r.mu.Unlock()

	notify(subs, ev)
	return true
}

// Get returns the source with id.
func (r *Registry) Get(id string) (*models.DataSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := r.indexOf(id); idx >= 0 {
		return r.sources[idx], true
	}
	return nil, false
}

// Active returns the active source, if any.
func (r *Registry) Active() (*models.DataSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := r.indexOf(r.activeID); idx >= 0 {
		return r.sources[idx], true
	}
	return nil, false
}

// ActiveID returns the active source id, or "" when none.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// List yields the sources in insertion order. Each iteration walks the
// registry as it is when the iteration starts, so the sequence can be ranged
// over any number of times.
func (r *Registry) List() iter.Seq[*models.DataSource] {
	return func(yield func(*models.DataSource) bool) {
		for _, src := range r.Snapshot() {
			if !yield(src) {
				return
			}
		}
	}
}

// Snapshot returns the sources in insertion order.
func (r *Registry) Snapshot() []*models.DataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sources)
}

// Replace swaps the whole content, e.g. when a saved session is loaded.
// activeID is kept when it names one of the new sources; otherwise the last
// source becomes active.
func (r *Registry) Replace(sources []*models.DataSource, activeID string) {
	r.mu.Lock()
	r.sources = slices.Clone(sources)
	r.activeID = ""
	if r.indexOf(activeID) >= 0 {
		r.activeID = activeID
	} else if n := len(r.sources); n > 0 {
		r.activeID = r.sources[n-1].ID
	}
	ev := Event{Kind: EventReplaced, ActiveID: r.activeID}
	subs := r.subscribers
	r.mu.Unlock()

	zap.L().Debug("registry replaced", zap.Int("sources", len(sources)), zap.String("active", ev.ActiveID))
	notify(subs, ev)
}

// Subscribe registers fn to be called after every mutation. Callbacks run on
// the mutating goroutine after the lock is released.
func (r *Registry) Subscribe(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(slices.Clip(r.subscribers), fn)
}

func (r *Registry) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(r.sources, func(s *models.DataSource) bool { return s.ID == id })
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
