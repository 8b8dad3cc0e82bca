// Package memory provides an in-process storage.Medium shared by several
// contexts, the way browser tabs share localStorage.
package memory

import (
	"context"
	"sync"

	"github.com/mcdev12/pasapalabra/go/internal/storage"
)

type watcher struct {
	key string
	fn  func([]byte)
}

type notification struct {
	fns   []func([]byte)
	value []byte
}

// Medium is the shared backing map. Use Handle to obtain one view per context.
//
// Notifications are queued in write order under mu and delivered by one
// writer at a time, so every watcher sees the values in the order they were
// stored. A write made while another goroutine is delivering returns once
// queued; that goroutine delivers it.
type Medium struct {
	mu       sync.RWMutex
	values   map[string][]byte
	watchers map[int]watcher
	nextID   int
	pending  []notification
	draining bool
}

// New creates an empty shared medium.
func New() *Medium {
	return &Medium{
		values:   make(map[string][]byte),
		watchers: make(map[int]watcher),
	}
}

// Handle returns a view of the medium for one context. Closing the view
// stops only the watches registered through it.
func (m *Medium) Handle() storage.Medium {
	return &handle{backing: m, stops: make(map[int]func())}
}

func (m *Medium) get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(v), nil
}

func (m *Medium) set(key string, value []byte) {
	m.mu.Lock()
	if value == nil {
		delete(m.values, key)
	} else {
		m.values[key] = clone(value)
	}
	if fns := m.watchersFor(key); len(fns) > 0 {
		m.pending = append(m.pending, notification{fns: fns, value: clone(value)})
	}
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	m.mu.Unlock()

	m.drain()
}

// drain delivers queued notifications until the queue is empty. Watchers
// are called outside the lock so they may read or write the medium.
func (m *Medium) drain() {
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			m.draining = false
			m.mu.Unlock()
			panic(r)
		}
	}()

	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		n := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		for _, fn := range n.fns {
			fn(clone(n.value))
		}
	}
}

func (m *Medium) watchersFor(key string) []func([]byte) {
	var fns []func([]byte)
	for id := 0; id < m.nextID; id++ {
		if w, ok := m.watchers[id]; ok && w.key == key {
			fns = append(fns, w.fn)
		}
	}
	return fns
}

func (m *Medium) watch(key string, fn func([]byte)) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.watchers[id] = watcher{key: key, fn: fn}
	return id
}

func (m *Medium) unwatch(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watchers, id)
}

// Len reports how many keys hold a value.
func (m *Medium) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

type handle struct {
	backing *Medium

	mu     sync.Mutex
	stops  map[int]func()
	closed bool
}

func (h *handle) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.backing.get(key)
}

func (h *handle) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	h.backing.set(key, value)
	return nil
}

func (h *handle) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.backing.set(key, nil)
	return nil
}

func (h *handle) Watch(ctx context.Context, key string, fn func([]byte)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, context.Canceled
	}

	id := h.backing.watch(key, fn)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			h.backing.unwatch(id)
			h.mu.Lock()
			delete(h.stops, id)
			h.mu.Unlock()
		})
	}
	h.stops[id] = stop
	return stop, nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	stops := make([]func(), 0, len(h.stops))
	for _, stop := range h.stops {
		stops = append(stops, stop)
	}
	h.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
