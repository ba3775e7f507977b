package store

import (
	"context"
	"sync"
)

// Memory is an in-process backend. It notifies its own listeners on every
// write, which makes it a Feed for single-node deployments and tests.
type Memory struct {
	mu        sync.RWMutex
	values    map[Key][]byte
	listeners map[int]func(Change)
	nextID    int
	// failWrites simulates a full or disabled store.
	failWrites error
}

func NewMemory() *Memory {
	return &Memory{
		values:    make(map[Key][]byte),
		listeners: make(map[int]func(Change)),
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	m.mu.Lock()
	if m.failWrites != nil {
		err := m.failWrites
		m.mu.Unlock()
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.values[key] = v
	m.mu.Unlock()
	m.publish(Change{Key: key})
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	if m.failWrites != nil {
		err := m.failWrites
		m.mu.Unlock()
		return err
	}
	delete(m.values, key)
	m.mu.Unlock()
	m.publish(Change{Key: key})
	return nil
}

// SetFailure makes subsequent writes return err; nil restores normal writes.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	m.failWrites = err
	m.mu.Unlock()
}

// Listen registers fn until ctx is done.
func (m *Memory) Listen(ctx context.Context, fn func(Change)) error {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	delete(m.listeners, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) publish(change Change) {
	m.mu.RLock()
	fns := make([]func(Change), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(change)
	}
}
