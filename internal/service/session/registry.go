package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pawn-pos/internal/pricing"
	"pawn-pos/internal/service/cart"
	"pawn-pos/internal/service/cartsync"
	"pawn-pos/internal/store"
)

const maxIDLength = 128

var (
	ErrClosed          = errors.New("session registry closed")
	ErrTooManySessions = errors.New("too many open sessions")
)

// Session is one cart context in this process together with the loop that
// keeps it in line with the shared store.
type Session struct {
	ID   string
	Cart *cart.Service

	loop        *cartsync.Loop
	unsubscribe func()
	lastSeen    time.Time
}

type Options struct {
	Backend      store.Backend
	Notifier     store.Notifier
	Hub          *cartsync.Hub
	Engine       *pricing.Engine
	SyncInterval time.Duration
	IdleTTL      time.Duration
	// MaxSessions caps the sessions open at once; zero means no cap.
	MaxSessions int
	Logger      *zap.Logger
}

// Registry owns the open sessions of this process. Sessions are opened lazily
// on first use and evicted after IdleTTL without access.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	opts   Options
	now    func() time.Time
	base   context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Hub == nil {
		opts.Hub = cartsync.NewHub(opts.Logger)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts,
		now:      time.Now,
		base:     base,
		cancel:   cancel,
		logger:   opts.Logger,
	}
}

// Create opens a session under a fresh id.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	return r.Get(ctx, uuid.NewString())
}

// Get returns the open session for id, hydrating it from the store when this
// process has not seen it yet.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	id, err := validateID(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		r.touch(s)
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if s, ok := r.sessions[id]; ok {
		s.lastSeen = r.now()
		return s, nil
	}
	if r.opts.MaxSessions > 0 && len(r.sessions) >= r.opts.MaxSessions {
		r.logger.Warn("session cap reached", zap.Int("max", r.opts.MaxSessions))
		return nil, ErrTooManySessions
	}
	s = r.open(ctx, id)
	r.sessions[id] = s
	return s, nil
}

// Lookup returns an already open session without opening one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		r.touch(s)
	}
	return s, ok
}

// View returns the cart of id without opening a session for it. Sessions not
// open in this process are read straight from the store.
func (r *Registry) View(ctx context.Context, id string) (cart.State, error) {
	id, err := validateID(id)
	if err != nil {
		return cart.State{}, err
	}
	if s, ok := r.Lookup(id); ok {
		return s.Cart.Snapshot(), nil
	}
	st := store.New(r.opts.Backend, id, r.logger)
	return cart.New(st, r.opts.Engine, r.logger).Load(ctx), nil
}

func validateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("session id required")
	}
	if len(id) > maxIDLength {
		return "", errors.New("session id too long")
	}
	return id, nil
}

func (r *Registry) open(ctx context.Context, id string) *Session {
	logger := r.logger.With(zap.String("session", id))

	var opts []store.Option
	if r.opts.Notifier != nil {
		opts = append(opts, store.WithNotifier(r.opts.Notifier))
	}
	st := store.New(r.opts.Backend, id, r.logger, opts...)
	c := cart.New(st, r.opts.Engine, logger)
	c.Load(ctx)

	feed, unsubscribe := r.opts.Hub.Subscribe(id)
	loop := cartsync.NewLoop(
		cartsync.NewReconciler(c, st, logger),
		logger,
		cartsync.IntervalSource{Period: r.opts.SyncInterval},
		feed,
	)
	loop.Start(r.base)

	logger.Debug("session opened")
	return &Session{
		ID:          id,
		Cart:        c,
		loop:        loop,
		unsubscribe: unsubscribe,
		lastSeen:    r.now(),
	}
}

func (r *Registry) touch(s *Session) {
	r.mu.Lock()
	s.lastSeen = r.now()
	r.mu.Unlock()
}

// Sweep stops and forgets sessions idle for longer than IdleTTL. The persisted
// cart is untouched; a later Get reopens it.
func (r *Registry) Sweep() int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.opts.IdleTTL)

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.stop()
	}
	if len(idle) > 0 {
		r.logger.Info("sessions evicted", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close stops every session loop. Further Get calls fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
	r.cancel()
}

func (s *Session) stop() {
	s.loop.Stop()
	s.unsubscribe()
}
