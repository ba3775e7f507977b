package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/pricing"
)

type MetalType struct {
	ID    int
	Metal domain.Metal
	Name  string
}

type Repository interface {
	SpotPrices(ctx context.Context) (pricing.SpotPrices, error)
	Percentages(ctx context.Context) (pricing.PercentageTable, error)
	MetalTypes(ctx context.Context) ([]MetalType, error)
	UpsertSpotPrice(ctx context.Context, metal domain.Metal, price decimal.Decimal) error
	UpsertMetalType(ctx context.Context, mt MetalType) error
	UpsertPercentage(ctx context.Context, metalTypeID int, tt domain.TransactionType, pct decimal.Decimal) error
}
