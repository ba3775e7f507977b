package session

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/pricing"
	"pawn-pos/internal/service/cartsync"
	"pawn-pos/internal/store"
)

func newRegistry(t *testing.T, backend *store.Memory) *Registry {
	t.Helper()
	hub := cartsync.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx, backend, 10*time.Millisecond)

	r := NewRegistry(Options{
		Backend:      backend,
		Hub:          hub,
		Engine:       pricing.NewEngine(pricing.DefaultMarketFactors(), nil),
		SyncInterval: 20 * time.Millisecond,
		IdleTTL:      time.Minute,
	})
	t.Cleanup(func() {
		r.Close()
		cancel()
	})
	return r
}

func lineItem(id string) domain.CartLineItem {
	return domain.CartLineItem{
		ID:       domain.ItemID(id),
		Quantity: 1,
		Pricing:  domain.FlatPrice{Amount: decimal.NewFromInt(25)},
	}
}

func TestRegistryGetReturnsSameSession(t *testing.T) {
	r := newRegistry(t, store.NewMemory())
	ctx := context.Background()

	s, err := r.Create(ctx)
	require.NoError(t, err)
	again, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestRegistryRejectsBadIDs(t *testing.T) {
	r := newRegistry(t, store.NewMemory())

	_, err := r.Get(context.Background(), "  ")
	assert.EqualError(t, err, "session id required")

	long := make([]byte, maxIDLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = r.Get(context.Background(), string(long))
	assert.EqualError(t, err, "session id too long")
}

func TestRegistriesConvergeThroughSharedBackend(t *testing.T) {
	backend := store.NewMemory()
	a := newRegistry(t, backend)
	b := newRegistry(t, backend)
	ctx := context.Background()

	sa, err := a.Get(ctx, "register-1")
	require.NoError(t, err)
	sb, err := b.Get(ctx, "register-1")
	require.NoError(t, err)

	_, err = sa.Cart.AddItem(ctx, lineItem("7"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sb.Cart.Snapshot().Items) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRegistryHydratesFromStore(t *testing.T) {
	backend := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.New(backend, "s-9", nil).SaveItems(ctx, []domain.CartLineItem{lineItem("1")}))

	r := newRegistry(t, backend)
	s, err := r.Get(ctx, "s-9")
	require.NoError(t, err)
	assert.Len(t, s.Cart.Snapshot().Items, 1)
}

func TestRegistrySweepEvictsIdle(t *testing.T) {
	r := newRegistry(t, store.NewMemory())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.Get(ctx, "old")
	require.NoError(t, err)
	now = now.Add(45 * time.Second)
	_, err = r.Get(ctx, "fresh")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, r.Sweep())
	_, ok := r.Lookup("old")
	assert.False(t, ok)
	_, ok = r.Lookup("fresh")
	assert.True(t, ok)
}

func TestRegistryClose(t *testing.T) {
	r := newRegistry(t, store.NewMemory())
	ctx := context.Background()
	s, err := r.Create(ctx)
	require.NoError(t, err)

	r.Close()
	r.Close()
	_, ok := r.Lookup(s.ID)
	assert.False(t, ok)
	_, err = r.Get(ctx, "any")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRegistryViewDoesNotOpen(t *testing.T) {
	backend := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.New(backend, "peek", nil).SaveItems(ctx, []domain.CartLineItem{lineItem("1")}))

	r := newRegistry(t, backend)
	st, err := r.View(ctx, "peek")
	require.NoError(t, err)
	assert.Len(t, st.Items, 1)
	assert.True(t, st.Total.Equal(decimal.NewFromInt(25)))

	_, ok := r.Lookup("peek")
	assert.False(t, ok, "view must not open a session")

	st, err = r.View(ctx, "never-used")
	require.NoError(t, err)
	assert.Empty(t, st.Items)
}

func TestRegistryCapsOpenSessions(t *testing.T) {
	r := newRegistry(t, store.NewMemory())
	r.opts.MaxSessions = 1
	ctx := context.Background()

	first, err := r.Get(ctx, "a")
	require.NoError(t, err)
	_, err = r.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrTooManySessions)

	again, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, first, again)
}
