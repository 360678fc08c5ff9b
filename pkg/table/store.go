package table

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// Listener is notified after entries change. remote is true when the change
// came from a network peer rather than a local Put.
type Listener func(entries []Entry, remote bool)

// Store is an in-memory, concurrency-safe table.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Value

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:   make(map[string]Value),
		listeners: make(map[int]Listener),
	}
}

// Key normalises a table path: leading slash, no trailing slash, no doubled separators.
func Key(parts ...string) string {
	return path.Clean("/" + strings.Join(parts, "/"))
}

// Get returns the value at key.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[Key(key)]
	return v, ok
}

// GetBoolean implements Table.
func (s *Store) GetBoolean(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok || v.Type != TypeBoolean {
		return def
	}
	return v.Bool
}

// Put implements Table. All entries become visible together.
func (s *Store) Put(entries ...Entry) {
	s.apply(entries, false)
}

// Apply writes entries received from a network peer.
func (s *Store) Apply(entries []Entry) {
	s.apply(entries, true)
}

func (s *Store) apply(entries []Entry, remote bool) {
	if len(entries) == 0 {
		return
	}
	normalised := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Value.Valid() {
			continue
		}
		normalised = append(normalised, Entry{Key: Key(e.Key), Value: e.Value})
	}
	if len(normalised) == 0 {
		return
	}

	s.mu.Lock()
	for _, e := range normalised {
		s.entries[e.Key] = e.Value
	}
	s.mu.Unlock()

	s.lmu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.RUnlock()

	for _, l := range listeners {
		l(normalised, remote)
	}
}

// Snapshot returns every entry sorted by key.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for k, v := range s.entries {
		out = append(out, Entry{Key: k, Value: v})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// Sub returns a view of the sub-table called name.
func (s *Store) Sub(name string) *View {
	return &View{store: s, prefix: Key(name)}
}

// View is a Store scoped to one sub-table.
type View struct {
	store  *Store
	prefix string
}

// Prefix returns the sub-table path.
func (v *View) Prefix() string { return v.prefix }

// Path returns the absolute key for a key in this view.
func (v *View) Path(key string) string { return Key(v.prefix, key) }

// GetBoolean implements Table.
func (v *View) GetBoolean(key string, def bool) bool {
	return v.store.GetBoolean(v.Path(key), def)
}

// Get returns the value at key within the view.
func (v *View) Get(key string) (Value, bool) {
	return v.store.Get(v.Path(key))
}

// Put implements Table.
func (v *View) Put(entries ...Entry) {
	scoped := make([]Entry, len(entries))
	for i, e := range entries {
		scoped[i] = Entry{Key: v.Path(e.Key), Value: e.Value}
	}
	v.store.Put(scoped...)
}
