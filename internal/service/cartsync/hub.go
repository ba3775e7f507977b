package cartsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pawn-pos/internal/store"
)

// Hub listens to one process-wide store feed and routes changes to the
// sessions subscribed in this process.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Signal
	nextID int
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[string]map[int]chan Signal), logger: logger}
}

// Subscribe returns a source for session and a func that removes it.
func (h *Hub) Subscribe(session string) (ChannelSource, func()) {
	ch := make(chan Signal, 1)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[session] == nil {
		h.subs[session] = make(map[int]chan Signal)
	}
	h.subs[session][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ChannelSource{C: ch}, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[session], id)
			if len(h.subs[session]) == 0 {
				delete(h.subs, session)
			}
			h.mu.Unlock()
		})
	}
}

// Dispatch delivers change without blocking. A subscriber with a pending
// signal already has a reconciliation queued, so extra signals are dropped.
func (h *Hub) Dispatch(change store.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[change.Key.Session] {
		select {
		case ch <- Signal{Key: change.Key.Name}:
		default:
		}
	}
}

// Run keeps feed attached to the hub, resubscribing after failures, until ctx
// is done.
func (h *Hub) Run(ctx context.Context, feed store.Feed, retry time.Duration) error {
	if retry <= 0 {
		retry = time.Second
	}
	for {
		err := feed.Listen(ctx, h.Dispatch)
		if ctx.Err() != nil {
			return nil
		}
		h.logger.Warn("sync hub: feed stopped, retrying", zap.Error(err), zap.Duration("retry", retry))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retry):
		}
	}
}
