package pricing

import (
	"github.com/shopspring/decimal"

	"pawn-pos/internal/domain"
)

// SpotPrices maps a metal to its current market price per unit of weight.
type SpotPrices map[domain.Metal]decimal.Decimal

// PercentageTable maps metal type id and transaction type to the percentage
// of the base value offered.
type PercentageTable map[int]map[domain.TransactionType]decimal.Decimal

func (t PercentageTable) Lookup(metalTypeID int, tt domain.TransactionType) (decimal.Decimal, bool) {
	row, ok := t[metalTypeID]
	if !ok {
		return decimal.Zero, false
	}
	pct, ok := row[tt]
	return pct, ok
}

func (t PercentageTable) Set(metalTypeID int, tt domain.TransactionType, pct decimal.Decimal) {
	row, ok := t[metalTypeID]
	if !ok {
		row = make(map[domain.TransactionType]decimal.Decimal)
		t[metalTypeID] = row
	}
	row[tt] = pct
}

// MarketFactors is the haircut applied to the spot basis, with optional
// per-metal overrides of the default.
type MarketFactors struct {
	Default  decimal.Decimal
	PerMetal map[domain.Metal]decimal.Decimal
}

// DefaultMarketFactor is applied to every metal unless overridden.
var DefaultMarketFactor = decimal.RequireFromString("0.7")

func DefaultMarketFactors() MarketFactors {
	return MarketFactors{Default: DefaultMarketFactor}
}

func (f MarketFactors) For(m domain.Metal) decimal.Decimal {
	if v, ok := f.PerMetal[m]; ok {
		return v
	}
	if f.Default.IsZero() {
		return DefaultMarketFactor
	}
	return f.Default
}
