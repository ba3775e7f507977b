package cart

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/store"
)

// Service is the in-memory cart of one session inside this process. Every
// mutation is applied under a single lock and written through to the session
// store before the lock is released, so mutations are applied and persisted
// in call order.
type Service struct {
	mu       sync.Mutex
	items    []domain.CartLineItem
	customer *domain.CustomerRef
	version  uint64

	store  cartStore
	pricer pricer
	logger *zap.Logger
}

type cartStore interface {
	LoadItems(ctx context.Context) ([]domain.CartLineItem, store.LoadStatus)
	LoadCustomer(ctx context.Context) (*domain.CustomerRef, store.LoadStatus)
	SaveItems(ctx context.Context, items []domain.CartLineItem) error
	SaveCustomer(ctx context.Context, c *domain.CustomerRef) error
}

type pricer interface {
	Total(items []domain.CartLineItem) decimal.Decimal
}

// State is a consistent copy of the cart at one version.
type State struct {
	Items    []domain.CartLineItem
	Customer *domain.CustomerRef
	Total    decimal.Decimal
	Version  uint64
}

func New(st cartStore, pricer pricer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		items:  []domain.CartLineItem{},
		store:  st,
		pricer: pricer,
		logger: logger,
	}
}

// Load hydrates the cart from the session store. Unreadable values leave the
// cart empty.
func (s *Service) Load(ctx context.Context) State {
	s.mu.Lock()
	if items, status := s.store.LoadItems(ctx); status == store.LoadOK {
		s.items = domain.NonEmpty(items)
	}
	if customer, status := s.store.LoadCustomer(ctx); status == store.LoadOK {
		s.customer = customer
	}
	s.version++
	st := s.stateLocked()
	s.mu.Unlock()
	return st
}

// AddItem appends item. Repeated adds of the same id produce separate rows.
func (s *Service) AddItem(ctx context.Context, item domain.CartLineItem) (State, error) {
	if strings.TrimSpace(string(item.ID)) == "" {
		return s.Snapshot(), errors.New("item id required")
	}
	if item.Quantity <= 0 {
		return s.Snapshot(), errors.New("quantity must be positive")
	}
	item = item.Clone()
	item.TransactionType = item.EffectiveTransactionType()

	return s.mutateItems(ctx, func(items []domain.CartLineItem) []domain.CartLineItem {
		return append(items, item)
	})
}

// RemoveItem drops every row with id. Removing an absent id is a no-op write.
func (s *Service) RemoveItem(ctx context.Context, id domain.ItemID) (State, error) {
	return s.mutateItems(ctx, func(items []domain.CartLineItem) []domain.CartLineItem {
		out := items[:0]
		for _, item := range items {
			if item.ID != id {
				out = append(out, item)
			}
		}
		return out
	})
}

// UpdateQuantity stores max(0, quantity) on the matching rows; zero removes them.
func (s *Service) UpdateQuantity(ctx context.Context, id domain.ItemID, quantity int) (State, error) {
	if quantity < 0 {
		quantity = 0
	}
	return s.mutateItems(ctx, func(items []domain.CartLineItem) []domain.CartLineItem {
		out := items[:0]
		for _, item := range items {
			if item.ID == id {
				if quantity == 0 {
					continue
				}
				item.Quantity = quantity
			}
			out = append(out, item)
		}
		return out
	})
}

// SetTransactionType switches which estimate applies to the matching rows.
func (s *Service) SetTransactionType(ctx context.Context, id domain.ItemID, tt domain.TransactionType) (State, error) {
	tt = tt.OrDefault()
	if !tt.Valid() {
		return s.Snapshot(), errors.New("invalid transaction type")
	}
	return s.mutateItems(ctx, func(items []domain.CartLineItem) []domain.CartLineItem {
		for i := range items {
			if items[i].ID == id {
				items[i].TransactionType = tt
			}
		}
		return items
	})
}

// SetCustomer selects c for the cart.
func (s *Service) SetCustomer(ctx context.Context, c domain.CustomerRef) (State, error) {
	if strings.TrimSpace(c.ID) == "" {
		return s.Snapshot(), errors.New("customer id required")
	}
	return s.mutateCustomer(ctx, &c)
}

func (s *Service) ClearCustomer(ctx context.Context) (State, error) {
	return s.mutateCustomer(ctx, nil)
}

// Clear empties the items and the customer in one transition.
func (s *Service) Clear(ctx context.Context) (State, error) {
	s.mu.Lock()
	s.items = []domain.CartLineItem{}
	s.customer = nil
	s.version++
	err := errors.Join(
		s.store.SaveItems(ctx, s.items),
		s.store.SaveCustomer(ctx, nil),
	)
	st := s.stateLocked()
	s.mu.Unlock()
	return st, err
}

// Total resolves every item at its own transaction type.
func (s *Service) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pricer.Total(s.items)
}

func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Replacement is what a reconciliation decided to install.
type Replacement struct {
	Items           []domain.CartLineItem
	ReplaceItems    bool
	Customer        *domain.CustomerRef
	ReplaceCustomer bool
}

// Exchange runs fn under the mutation lock and installs its replacement
// without writing back to the store. It reports whether anything changed.
func (s *Service) Exchange(fn func(current State) Replacement) (State, bool) {
	s.mu.Lock()
	r := fn(s.stateLocked())
	changed := r.ReplaceItems || r.ReplaceCustomer
	if r.ReplaceItems {
		s.items = domain.NonEmpty(domain.CloneItems(r.Items))
	}
	if r.ReplaceCustomer {
		s.customer = cloneCustomer(r.Customer)
	}
	if changed {
		s.version++
	}
	st := s.stateLocked()
	s.mu.Unlock()
	return st, changed
}

func (s *Service) mutateItems(ctx context.Context, fn func([]domain.CartLineItem) []domain.CartLineItem) (State, error) {
	s.mu.Lock()
	next := fn(domain.CloneItems(s.items))
	if next == nil {
		next = []domain.CartLineItem{}
	}
	s.items = next
	s.version++
	err := s.store.SaveItems(ctx, s.items)
	st := s.stateLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("cart: items not persisted", zap.Error(err))
	}
	return st, err
}

func (s *Service) mutateCustomer(ctx context.Context, c *domain.CustomerRef) (State, error) {
	s.mu.Lock()
	s.customer = cloneCustomer(c)
	s.version++
	err := s.store.SaveCustomer(ctx, s.customer)
	st := s.stateLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("cart: customer not persisted", zap.Error(err))
	}
	return st, err
}

func (s *Service) stateLocked() State {
	items := domain.CloneItems(s.items)
	return State{
		Items:    items,
		Customer: cloneCustomer(s.customer),
		Total:    s.pricer.Total(items),
		Version:  s.version,
	}
}

func cloneCustomer(c *domain.CustomerRef) *domain.CustomerRef {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
