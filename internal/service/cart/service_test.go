package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/pricing"
	"pawn-pos/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Memory, *store.Store) {
	t.Helper()
	backend := store.NewMemory()
	st := store.New(backend, "sess-1", nil)
	svc := New(st, pricing.NewEngine(pricing.DefaultMarketFactors(), nil), nil)
	svc.Load(context.Background())
	return svc, backend, st
}

func estimatedItem(id string, qty int, tt domain.TransactionType, pawn, buy string) domain.CartLineItem {
	return domain.CartLineItem{
		ID:              domain.ItemID(id),
		Quantity:        qty,
		TransactionType: tt,
		Pricing: domain.EstimatedPrice{Estimates: map[domain.TransactionType]decimal.Decimal{
			domain.TransactionPawn: decimal.RequireFromString(pawn),
			domain.TransactionBuy:  decimal.RequireFromString(buy),
		}},
	}
}

func TestServiceTotalFollowsTransactionType(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, estimatedItem("1", 2, domain.TransactionPawn, "10", "15")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if got := svc.Total(); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected total 10, got %s", got)
	}

	if _, err := svc.SetTransactionType(ctx, "1", domain.TransactionBuy); err != nil {
		t.Fatalf("SetTransactionType: %v", err)
	}
	if got := svc.Total(); !got.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected total 15, got %s", got)
	}
}

func TestServiceAddDefaultsToPawnAndKeepsDuplicates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	item := estimatedItem("9", 1, "", "3", "4")
	svc.AddItem(ctx, item)
	st, err := svc.AddItem(ctx, item)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(st.Items) != 2 {
		t.Fatalf("expected duplicate rows, got %d", len(st.Items))
	}
	if st.Items[0].TransactionType != domain.TransactionPawn {
		t.Fatalf("expected pawn default, got %q", st.Items[0].TransactionType)
	}
	if !st.Total.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected total 6, got %s", st.Total)
	}
}

func TestServiceAddValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, domain.CartLineItem{ID: " ", Quantity: 1})
	if err == nil || err.Error() != "item id required" {
		t.Fatalf("expected id error, got %v", err)
	}
	_, err = svc.AddItem(ctx, domain.CartLineItem{ID: "1", Quantity: 0})
	if err == nil || err.Error() != "quantity must be positive" {
		t.Fatalf("expected quantity error, got %v", err)
	}
	if n := len(svc.Snapshot().Items); n != 0 {
		t.Fatalf("expected empty cart, got %d items", n)
	}
}

func TestServiceRemoveIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.AddItem(ctx, estimatedItem("1", 1, domain.TransactionPawn, "1", "1"))
	svc.AddItem(ctx, estimatedItem("2", 1, domain.TransactionPawn, "1", "1"))
	svc.AddItem(ctx, estimatedItem("1", 1, domain.TransactionPawn, "1", "1"))

	before := svc.Snapshot().Items
	st, err := svc.RemoveItem(ctx, "missing")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if !domain.ItemsEqual(before, st.Items) {
		t.Fatalf("removing an absent id changed items")
	}

	st, _ = svc.RemoveItem(ctx, "1")
	if len(st.Items) != 1 || st.Items[0].ID != "2" {
		t.Fatalf("expected only item 2 left, got %+v", st.Items)
	}
}

func TestServiceUpdateQuantityFloor(t *testing.T) {
	cases := []struct {
		name      string
		requested int
		wantRows  int
		wantQty   int
	}{
		{name: "positive", requested: 5, wantRows: 1, wantQty: 5},
		{name: "zero removes", requested: 0, wantRows: 0},
		{name: "negative removes", requested: -5, wantRows: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			ctx := context.Background()
			svc.AddItem(ctx, estimatedItem("1", 2, domain.TransactionPawn, "10", "15"))

			st, err := svc.UpdateQuantity(ctx, "1", tc.requested)
			if err != nil {
				t.Fatalf("UpdateQuantity: %v", err)
			}
			if len(st.Items) != tc.wantRows {
				t.Fatalf("expected %d rows, got %d", tc.wantRows, len(st.Items))
			}
			if tc.wantRows == 1 && st.Items[0].Quantity != tc.wantQty {
				t.Fatalf("expected quantity %d, got %d", tc.wantQty, st.Items[0].Quantity)
			}
		})
	}
}

func TestServiceWritesThrough(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	svc.AddItem(ctx, estimatedItem("1", 1, domain.TransactionPawn, "10", "15"))
	svc.SetCustomer(ctx, domain.CustomerRef{ID: "c1", Name: "Ada"})

	items, status := st.LoadItems(ctx)
	if status != store.LoadOK || len(items) != 1 {
		t.Fatalf("expected persisted item, got %v %+v", status, items)
	}
	customer, status := st.LoadCustomer(ctx)
	if status != store.LoadOK || customer.ID != "c1" {
		t.Fatalf("expected persisted customer, got %v %+v", status, customer)
	}

	svc.ClearCustomer(ctx)
	if _, status := st.LoadCustomer(ctx); status != store.LoadAbsent {
		t.Fatalf("expected customer key removed, got %v", status)
	}
}

func TestServiceClearIsOneTransition(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	svc.AddItem(ctx, estimatedItem("1", 1, domain.TransactionPawn, "10", "15"))
	svc.SetCustomer(ctx, domain.CustomerRef{ID: "c1"})

	before := svc.Snapshot().Version
	got, err := svc.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(got.Items) != 0 || got.Customer != nil {
		t.Fatalf("expected empty cart, got %+v", got)
	}
	if got.Version != before+1 {
		t.Fatalf("expected one transition, version went %d -> %d", before, got.Version)
	}

	items, status := st.LoadItems(ctx)
	if status != store.LoadOK || len(items) != 0 {
		t.Fatalf("expected persisted empty list, got %v %+v", status, items)
	}
	if _, status := st.LoadCustomer(ctx); status != store.LoadAbsent {
		t.Fatalf("expected no persisted customer, got %v", status)
	}
}

func TestServiceWriteFailureIsNonFatal(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()
	backend.SetFailure(errors.New("quota exceeded"))

	st, err := svc.AddItem(ctx, estimatedItem("1", 1, domain.TransactionPawn, "10", "15"))
	if !errors.Is(err, store.ErrStorageWrite) {
		t.Fatalf("expected storage write error, got %v", err)
	}
	if len(st.Items) != 1 {
		t.Fatalf("expected in-memory add to stick, got %d items", len(st.Items))
	}
}

func TestServiceLoadHydratesFromStore(t *testing.T) {
	backend := store.NewMemory()
	ctx := context.Background()
	seed := store.New(backend, "sess-2", nil)
	seed.SaveItems(ctx, []domain.CartLineItem{estimatedItem("5", 1, domain.TransactionBuy, "1", "2")})
	seed.SaveCustomer(ctx, &domain.CustomerRef{ID: "c9"})

	svc := New(store.New(backend, "sess-2", nil), pricing.NewEngine(pricing.DefaultMarketFactors(), nil), nil)
	st := svc.Load(ctx)
	if len(st.Items) != 1 || st.Customer == nil || st.Customer.ID != "c9" {
		t.Fatalf("unexpected hydrated state %+v", st)
	}
	if !st.Total.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected total 2, got %s", st.Total)
	}
}

func TestServiceExchangeDoesNotWriteBack(t *testing.T) {
	svc, backend, st := newTestService(t)
	ctx := context.Background()
	svc.AddItem(ctx, estimatedItem("1", 1, domain.TransactionPawn, "10", "15"))

	backend.SetFailure(errors.New("read only"))
	next, changed := svc.Exchange(func(cur State) Replacement {
		return Replacement{Items: []domain.CartLineItem{}, ReplaceItems: true}
	})
	if !changed || len(next.Items) != 0 {
		t.Fatalf("expected replacement to apply, got %+v", next)
	}

	backend.SetFailure(nil)
	items, _ := st.LoadItems(ctx)
	if len(items) != 1 {
		t.Fatalf("expected store untouched, got %+v", items)
	}
}
