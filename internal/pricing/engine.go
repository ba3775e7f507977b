// Package pricing resolves the effective unit price of cart and quote items.
//
// Cart items carry either a flat price or one estimate per transaction type.
// Quote items in live spot mode have their estimates recomputed from the
// current spot price before resolution:
//
//	base     = spot(metal) × purity × weight × marketFactor(metal)
//	estimate = round2(base × percentage(metalTypeID, transactionType) / 100)
//
// Intermediate products keep full precision; rounding happens only on the
// derived estimates. Resolution never fails: gaps resolve to zero and are
// reported as warnings.
package pricing

import (
	"go.uber.org/zap"

	"github.com/shopspring/decimal"

	"pawn-pos/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Engine is safe for concurrent use.
type Engine struct {
	factors MarketFactors
	logger  *zap.Logger
}

func NewEngine(factors MarketFactors, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{factors: factors, logger: logger}
}

// Resolve returns the effective unit price of item at its own transaction type.
func (e *Engine) Resolve(item domain.CartLineItem) decimal.Decimal {
	return e.ResolveAs(item, item.EffectiveTransactionType())
}

// ResolveAs returns the price item would have under transaction type tt.
func (e *Engine) ResolveAs(item domain.CartLineItem, tt domain.TransactionType) decimal.Decimal {
	tt = tt.OrDefault()
	switch p := item.Pricing.(type) {
	case domain.EstimatedPrice:
		v, ok := p.Estimates[tt]
		if !ok {
			e.logger.Warn("pricing: no estimate for transaction type",
				zap.String("item", string(item.ID)),
				zap.String("transaction_type", string(tt)))
			return decimal.Zero
		}
		return v
	case domain.FlatPrice:
		return p.Amount
	default:
		e.logger.Warn("pricing: item has no price", zap.String("item", string(item.ID)))
		return decimal.Zero
	}
}

// Total sums the resolved price of every item.
func (e *Engine) Total(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(e.Resolve(item))
	}
	return total
}

// BaseValue computes the unrounded spot-derived value of a quote item.
func (e *Engine) BaseValue(item domain.QuoteItem, spot SpotPrices) (decimal.Decimal, bool) {
	price, ok := spot[item.Metal]
	if !ok {
		e.logger.Warn("pricing: no spot price for metal",
			zap.String("item", string(item.ID)),
			zap.String("metal", string(item.Metal)))
		return decimal.Zero, false
	}
	return price.Mul(item.Purity).Mul(item.Weight).Mul(e.factors.For(item.Metal)), true
}

// Reprice returns the estimates a quote item should carry under mode. Locked
// items keep the estimates captured at quote creation.
func (e *Engine) Reprice(item domain.QuoteItem, mode domain.SpotMode, spot SpotPrices, table PercentageTable) map[domain.TransactionType]decimal.Decimal {
	if mode != domain.SpotLive {
		return copyEstimates(item.Estimates)
	}

	out := make(map[domain.TransactionType]decimal.Decimal, len(domain.EstimateTypes))
	base, ok := e.BaseValue(item, spot)
	for _, tt := range domain.EstimateTypes {
		if !ok {
			out[tt] = decimal.Zero
			continue
		}
		pct, found := table.Lookup(item.MetalTypeID, tt)
		if !found {
			e.logger.Warn("pricing: no percentage entry",
				zap.String("item", string(item.ID)),
				zap.Int("metal_type_id", item.MetalTypeID),
				zap.String("transaction_type", string(tt)))
			out[tt] = decimal.Zero
			continue
		}
		out[tt] = Round2(base.Mul(pct).Div(hundred))
	}
	return out
}

// RepriceQuote applies Reprice to every item of q and returns the updated copy.
func (e *Engine) RepriceQuote(q domain.Quote, spot SpotPrices, table PercentageTable) domain.Quote {
	out := q
	out.Items = make([]domain.QuoteItem, len(q.Items))
	for i, item := range q.Items {
		item.Estimates = e.Reprice(item, q.Mode(), spot, table)
		out.Items[i] = item
	}
	return out
}

// Round2 rounds to two fraction digits, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func copyEstimates(in map[domain.TransactionType]decimal.Decimal) map[domain.TransactionType]decimal.Decimal {
	out := make(map[domain.TransactionType]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
