package cartsync

import (
	"context"

	"go.uber.org/zap"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/service/cart"
	"pawn-pos/internal/store"
)

type target interface {
	Exchange(fn func(current cart.State) cart.Replacement) (cart.State, bool)
}

type snapshotSource interface {
	LoadItems(ctx context.Context) ([]domain.CartLineItem, store.LoadStatus)
	LoadCustomer(ctx context.Context) (*domain.CustomerRef, store.LoadStatus)
}

// Reconciler brings an in-memory cart in line with the persisted snapshot.
// The persisted value wins wholesale; nothing is merged field by field.
type Reconciler struct {
	target target
	source snapshotSource
	logger *zap.Logger
}

func NewReconciler(t target, src snapshotSource, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{target: t, source: src, logger: logger}
}

// Relevant reports whether sig can affect the cart.
func Relevant(sig Signal) bool {
	switch sig.Key {
	case "", store.KeyCartItems, store.KeySelectedCustomer:
		return true
	}
	return false
}

// Reconcile reads the persisted snapshot and replaces whatever differs. It
// reports whether the in-memory cart changed.
func (r *Reconciler) Reconcile(ctx context.Context) bool {
	_, changed := r.target.Exchange(func(cur cart.State) cart.Replacement {
		var rep cart.Replacement

		items, status := r.source.LoadItems(ctx)
		switch status {
		case store.LoadOK:
			items = domain.NonEmpty(items)
			if !domain.ItemsEqual(items, cur.Items) {
				rep.Items, rep.ReplaceItems = items, true
			}
		case store.LoadAbsent, store.LoadCorrupt:
			// An unparsable value reads as no data, same as a missing key.
			if len(cur.Items) > 0 {
				r.logger.Info("cart sync: persisted items gone, clearing in-memory cart",
					zap.Stringer("status", status), zap.Int("dropped", len(cur.Items)))
				rep.Items, rep.ReplaceItems = []domain.CartLineItem{}, true
			}
		default:
			// Backend unreachable: keep the last known good items until it answers.
		}

		customer, status := r.source.LoadCustomer(ctx)
		switch status {
		case store.LoadOK, store.LoadAbsent, store.LoadCorrupt:
			if !domain.CustomerEqual(customer, cur.Customer) {
				rep.Customer, rep.ReplaceCustomer = customer, true
			}
		}
		return rep
	})
	return changed
}
