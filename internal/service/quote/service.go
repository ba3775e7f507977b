package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/pricing"
	"pawn-pos/internal/service/cart"
	"pawn-pos/internal/store"
)

var (
	ErrQuoteExpired = errors.New("quote expired")
	ErrInvalidQuote = errors.New("invalid quote")
)

// Rates supplies the live pricing inputs.
type Rates interface {
	SpotPrices(ctx context.Context) (pricing.SpotPrices, error)
	Percentages(ctx context.Context) (pricing.PercentageTable, error)
}

// CartAdder is the part of a cart the quote flow writes into.
type CartAdder interface {
	AddItem(ctx context.Context, item domain.CartLineItem) (cart.State, error)
	Snapshot() cart.State
}

type Service struct {
	rates  Rates
	engine *pricing.Engine
	now    func() time.Time
	logger *zap.Logger
}

func NewService(rates Rates, engine *pricing.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{rates: rates, engine: engine, now: time.Now, logger: logger}
}

// Reprice returns q with fresh estimates. Locked quotes keep the estimates they
// were created with and never touch the rates source.
func (s *Service) Reprice(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	if q.Expired(s.now()) {
		return domain.Quote{}, ErrQuoteExpired
	}
	if q.Mode() != domain.SpotLive {
		return s.engine.RepriceQuote(q, nil, nil), nil
	}
	if s.rates == nil {
		return domain.Quote{}, errors.New("live pricing unavailable")
	}

	spot, err := s.rates.SpotPrices(ctx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("load spot prices: %w", err)
	}
	table, err := s.rates.Percentages(ctx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("load percentages: %w", err)
	}
	return s.engine.RepriceQuote(q, spot, table), nil
}

// ToCart reprices q and adds each of its items to c. Every line is validated
// before the first add, so an invalid quote leaves the cart untouched. Storage
// write failures do not stop the remaining adds; they are returned joined with
// the final state.
func (s *Service) ToCart(ctx context.Context, c CartAdder, q domain.Quote) (cart.State, error) {
	priced, err := s.Reprice(ctx, q)
	if err != nil {
		return c.Snapshot(), err
	}
	items := priced.CartItems()
	if err := validateItems(items); err != nil {
		return c.Snapshot(), err
	}

	var writeErrs []error
	st := c.Snapshot()
	for _, item := range items {
		st, err = c.AddItem(ctx, item)
		if err != nil {
			if !errors.Is(err, store.ErrStorageWrite) {
				return st, err
			}
			writeErrs = append(writeErrs, err)
		}
	}
	if len(writeErrs) > 0 {
		s.logger.Warn("quote: items added but not persisted",
			zap.String("quote", q.ID), zap.Int("failures", len(writeErrs)))
	}
	return st, errors.Join(writeErrs...)
}

func validateItems(items []domain.CartLineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidQuote)
	}
	for i, item := range items {
		if strings.TrimSpace(string(item.ID)) == "" {
			return fmt.Errorf("%w: item %d: id required", ErrInvalidQuote, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %s: quantity must be positive", ErrInvalidQuote, item.ID)
		}
	}
	return nil
}
