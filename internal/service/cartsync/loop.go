package cartsync

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Loop feeds every change source into one reconciliation goroutine. Triggers
// that arrive while a reconciliation is pending are coalesced.
type Loop struct {
	reconciler *Reconciler
	sources    []ChangeSource
	logger     *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	pending chan struct{}
}

func NewLoop(r *Reconciler, logger *zap.Logger, sources ...ChangeSource) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		reconciler: r,
		sources:    sources,
		logger:     logger,
		pending:    make(chan struct{}, 1),
	}
}

// Start launches the loop. Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range l.sources {
		src := src
		g.Go(func() error {
			if err := src.Run(gctx, l.trigger); err != nil {
				// A dead source leaves the others running.
				l.logger.Warn("cart sync: change source stopped", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		l.reconcileLoop(gctx)
		return nil
	})

	done := l.done
	go func() {
		_ = g.Wait()
		close(done)
	}()
}

// Stop cancels every source and waits until no goroutine of the loop remains.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Loop) trigger(sig Signal) {
	if !Relevant(sig) {
		return
	}
	select {
	case l.pending <- struct{}{}:
	default:
	}
}

func (l *Loop) reconcileLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.pending:
			l.reconcileOnce(ctx)
		}
	}
}

func (l *Loop) reconcileOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("cart sync: reconcile panicked", zap.Any("panic", rec))
		}
	}()
	if l.reconciler.Reconcile(ctx) {
		l.logger.Debug("cart sync: applied external change")
	}
}
