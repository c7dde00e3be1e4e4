package session

import "sync"

// Kind identifies a session type in the registry. The values are the stable
// registry metakeys for the built-in kinds; third-party session types supply
// their own.
type Kind string

// Registry metakeys for the built-in session kinds.
const (
	KindTraffic Kind = "bf7886ea-c61d-40df-8c7b-4241ebed0544"
	KindMessage Kind = "a577c742-6dce-49ae-9b1f-dce6477fa646"
)

// Entry is implemented by every session type the registry can hold.
type Entry interface {
	RegistryKind() Kind
}

// Registry is a table mapping (kind, owner) to at most one live session.
// Owners are explicit caller-chosen identities (one per application thread
// of control), so unrelated code paths can each retrieve "their" session
// without being handed a reference. All access is guarded by one mutex;
// individual sessions remain single-caller.
type Registry struct {
	mu      sync.Mutex
	entries map[Kind]map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Kind]map[string]Entry)}
}

// defaultRegistry backs sessions constructed without an explicit registry.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when a Config does
// not name one.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Bind records e as the current session for (kind, owner), replacing any
// prior entry for the same key. Called by session construction.
func (r *Registry) Bind(owner string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind := e.RegistryKind()
	if r.entries[kind] == nil {
		r.entries[kind] = make(map[string]Entry)
	}
	r.entries[kind][owner] = e
}

// Current returns the session bound for (kind, owner), or nil if none.
func (r *Registry) Current(kind Kind, owner string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[kind][owner]
}

// CloseCurrent removes and returns the entry for (kind, owner). If the kind
// has no entries left afterwards its bucket is dropped entirely. Returns nil
// if there was nothing bound; double close is tolerated.
func (r *Registry) CloseCurrent(kind Kind, owner string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.entries[kind]
	if bucket == nil {
		return nil
	}
	closed := bucket[owner]
	delete(bucket, owner)
	if len(bucket) == 0 {
		delete(r.entries, kind)
	}
	return closed
}

// Current looks up the Traffic Management session bound for owner in the
// default registry.
func Current(owner string) *Session {
	if s, ok := defaultRegistry.Current(KindTraffic, owner).(*Session); ok {
		return s
	}
	return nil
}
