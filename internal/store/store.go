package store

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"pawn-pos/internal/domain"
)

// LoadStatus describes the outcome of a read. Reads never fail outright.
type LoadStatus int

const (
	LoadOK LoadStatus = iota
	LoadAbsent
	LoadCorrupt
	LoadFailed
)

func (s LoadStatus) String() string {
	switch s {
	case LoadOK:
		return "ok"
	case LoadAbsent:
		return "absent"
	case LoadCorrupt:
		return "corrupt"
	case LoadFailed:
		return "failed"
	}
	return "unknown"
}

// Store is the persistent adapter for one session's cart snapshot.
type Store struct {
	backend  Backend
	session  string
	notifier Notifier
	logger   *zap.Logger
}

type Option func(*Store)

// WithNotifier publishes every successful write through n in addition to
// whatever the backend announces on its own.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

func New(backend Backend, session string, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend: backend,
		session: session,
		logger:  logger.With(zap.String("session", session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) Key {
	return Key{Session: s.session, Name: name}
}

// LoadItems reads the persisted cart items.
func (s *Store) LoadItems(ctx context.Context) ([]domain.CartLineItem, LoadStatus) {
	var items []domain.CartLineItem
	status := load(ctx, s, KeyCartItems, &items)
	if status != LoadOK {
		return nil, status
	}
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return items, LoadOK
}

// LoadCustomer reads the persisted customer selection. A JSON null reads as absent.
func (s *Store) LoadCustomer(ctx context.Context) (*domain.CustomerRef, LoadStatus) {
	var customer *domain.CustomerRef
	status := load(ctx, s, KeySelectedCustomer, &customer)
	if status != LoadOK {
		return nil, status
	}
	if customer == nil {
		return nil, LoadAbsent
	}
	return customer, LoadOK
}

// SaveItems always writes, including an empty list.
func (s *Store) SaveItems(ctx context.Context, items []domain.CartLineItem) error {
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return save(ctx, s, KeyCartItems, items)
}

// SaveCustomer writes a selected customer and deletes the key when c is nil,
// so "no customer" leaves no stale record.
func (s *Store) SaveCustomer(ctx context.Context, c *domain.CustomerRef) error {
	if c == nil {
		key := s.key(KeySelectedCustomer)
		if err := s.backend.Delete(ctx, key); err != nil {
			s.logger.Warn("session store: delete failed", zap.String("key", key.Name), zap.Error(err))
			return &WriteError{Key: key, Err: err}
		}
		s.notify(ctx, key)
		return nil
	}
	return save(ctx, s, KeySelectedCustomer, c)
}

func load[T any](ctx context.Context, s *Store, name string, dest *T) LoadStatus {
	key := s.key(name)
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("session store: read failed", zap.String("key", name), zap.Error(err))
		return LoadFailed
	}
	if !ok {
		return LoadAbsent
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("session store: parse failed", zap.String("key", name), zap.Error(err))
		return LoadCorrupt
	}
	return LoadOK
}

func save[T any](ctx context.Context, s *Store, name string, value T) error {
	key := s.key(name)
	raw, err := json.Marshal(value)
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		s.logger.Warn("session store: write failed", zap.String("key", name), zap.Error(err))
		return &WriteError{Key: key, Err: err}
	}
	s.notify(ctx, key)
	return nil
}

func (s *Store) notify(ctx context.Context, key Key) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, Change{Key: key}); err != nil {
		s.logger.Warn("session store: notify failed", zap.String("key", key.Name), zap.Error(err))
	}
}
