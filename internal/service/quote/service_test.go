package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/pricing"
	"pawn-pos/internal/service/cart"
	"pawn-pos/internal/store"
)

type stubRates struct {
	spot  pricing.SpotPrices
	table pricing.PercentageTable
	err   error
	calls int
}

func (r *stubRates) SpotPrices(context.Context) (pricing.SpotPrices, error) {
	r.calls++
	return r.spot, r.err
}

func (r *stubRates) Percentages(context.Context) (pricing.PercentageTable, error) {
	return r.table, r.err
}

func goldQuote(mode domain.SpotMode) domain.Quote {
	return domain.Quote{
		ID:       "q-1",
		SpotMode: mode,
		Items: []domain.QuoteItem{{
			ID:          "ring-1",
			Metal:       domain.MetalGold,
			MetalTypeID: 3,
			Purity:      decimal.RequireFromString("0.75"),
			Weight:      decimal.NewFromInt(10),
			Estimates: map[domain.TransactionType]decimal.Decimal{
				domain.TransactionPawn: decimal.NewFromInt(100),
			},
		}},
	}
}

func newRates() *stubRates {
	table := pricing.PercentageTable{}
	table.Set(3, domain.TransactionPawn, decimal.NewFromInt(50))
	table.Set(3, domain.TransactionBuy, decimal.NewFromInt(60))
	table.Set(3, domain.TransactionRetail, decimal.NewFromInt(120))
	return &stubRates{
		spot:  pricing.SpotPrices{domain.MetalGold: decimal.NewFromInt(2000)},
		table: table,
	}
}

func newService(rates Rates) *Service {
	return NewService(rates, pricing.NewEngine(pricing.DefaultMarketFactors(), nil), nil)
}

func TestRepriceLiveUsesSpotBasis(t *testing.T) {
	svc := newService(newRates())

	got, err := svc.Reprice(context.Background(), goldQuote(domain.SpotLive))
	if err != nil {
		t.Fatalf("Reprice: %v", err)
	}
	pawn := got.Items[0].Estimates[domain.TransactionPawn]
	if !pawn.Equal(decimal.RequireFromString("5250.00")) {
		t.Fatalf("expected pawn 5250.00, got %s", pawn)
	}
}

func TestRepriceLockedSkipsRates(t *testing.T) {
	rates := newRates()
	svc := newService(rates)

	got, err := svc.Reprice(context.Background(), goldQuote(domain.SpotLocked))
	if err != nil {
		t.Fatalf("Reprice: %v", err)
	}
	if rates.calls != 0 {
		t.Fatalf("locked quote should not load rates")
	}
	if !got.Items[0].Estimates[domain.TransactionPawn].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected captured estimate, got %v", got.Items[0].Estimates)
	}
}

func TestRepriceRejectsExpired(t *testing.T) {
	svc := newService(newRates())
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	q := goldQuote(domain.SpotLive)
	expires := now.Add(-time.Minute)
	q.ExpiresAt = &expires

	if _, err := svc.Reprice(context.Background(), q); !errors.Is(err, ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired, got %v", err)
	}
}

func TestRepriceWrapsRateErrors(t *testing.T) {
	rates := newRates()
	rates.err = errors.New("db down")
	svc := newService(rates)

	if _, err := svc.Reprice(context.Background(), goldQuote(domain.SpotLive)); !errors.Is(err, rates.err) {
		t.Fatalf("expected wrapped rates error, got %v", err)
	}
}

func TestToCartAddsRepricedItems(t *testing.T) {
	svc := newService(newRates())
	engine := pricing.NewEngine(pricing.DefaultMarketFactors(), nil)
	c := cart.New(store.New(store.NewMemory(), "s1", nil), engine, nil)

	st, err := svc.ToCart(context.Background(), c, goldQuote(domain.SpotLive))
	if err != nil {
		t.Fatalf("ToCart: %v", err)
	}
	if len(st.Items) != 1 || st.Items[0].Attributes["quoteId"] != "q-1" {
		t.Fatalf("unexpected cart items %+v", st.Items)
	}
	if !st.Total.Equal(decimal.RequireFromString("5250")) {
		t.Fatalf("expected total 5250, got %s", st.Total)
	}
}

func TestToCartKeepsGoingOnWriteFailure(t *testing.T) {
	svc := newService(newRates())
	backend := store.NewMemory()
	backend.SetFailure(errors.New("quota exceeded"))
	c := cart.New(store.New(backend, "s1", nil), pricing.NewEngine(pricing.DefaultMarketFactors(), nil), nil)

	q := goldQuote(domain.SpotLocked)
	q.Items = append(q.Items, q.Items[0])
	q.Items[1].ID = "ring-2"

	st, err := svc.ToCart(context.Background(), c, q)
	if !errors.Is(err, store.ErrStorageWrite) {
		t.Fatalf("expected storage write error, got %v", err)
	}
	if len(st.Items) != 2 {
		t.Fatalf("expected both items in memory, got %d", len(st.Items))
	}
}

func TestToCartRejectsInvalidQuoteWithoutPartialAdds(t *testing.T) {
	svc := newService(newRates())
	st := store.New(store.NewMemory(), "s1", nil)
	c := cart.New(st, pricing.NewEngine(pricing.DefaultMarketFactors(), nil), nil)

	q := goldQuote(domain.SpotLocked)
	q.Items = append(q.Items, q.Items[0])
	q.Items[1].ID = ""

	got, err := svc.ToCart(context.Background(), c, q)
	if !errors.Is(err, ErrInvalidQuote) {
		t.Fatalf("expected ErrInvalidQuote, got %v", err)
	}
	if len(got.Items) != 0 || len(c.Snapshot().Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", c.Snapshot().Items)
	}
	if _, status := st.LoadItems(context.Background()); status != store.LoadAbsent {
		t.Fatalf("expected nothing persisted, got %v", status)
	}
}

func TestToCartRejectsEmptyQuote(t *testing.T) {
	svc := newService(newRates())
	c := cart.New(store.New(store.NewMemory(), "s1", nil), pricing.NewEngine(pricing.DefaultMarketFactors(), nil), nil)

	q := goldQuote(domain.SpotLocked)
	q.Items = nil
	if _, err := svc.ToCart(context.Background(), c, q); !errors.Is(err, ErrInvalidQuote) {
		t.Fatalf("expected ErrInvalidQuote, got %v", err)
	}
}
