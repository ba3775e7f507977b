package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"pawn-pos/internal/domain"
	pricingrepo "pawn-pos/internal/repository/pricing"
)

type Writer interface {
	UpsertSpotPrice(ctx context.Context, metal domain.Metal, price decimal.Decimal) error
	UpsertMetalType(ctx context.Context, mt pricingrepo.MetalType) error
	UpsertPercentage(ctx context.Context, metalTypeID int, tt domain.TransactionType, pct decimal.Decimal) error
}

type metalTypeSeed struct {
	pricingrepo.MetalType
	Pawn, Buy, Retail string
}

var spotPrices = map[domain.Metal]string{
	domain.MetalGold:      "2000",
	domain.MetalSilver:    "24.50",
	domain.MetalPlatinum:  "950",
	domain.MetalPalladium: "1000",
}

var metalTypes = []metalTypeSeed{
	{MetalType: pricingrepo.MetalType{ID: 1, Metal: domain.MetalGold, Name: "10K Gold"}, Pawn: "50", Buy: "60", Retail: "120"},
	{MetalType: pricingrepo.MetalType{ID: 2, Metal: domain.MetalGold, Name: "14K Gold"}, Pawn: "50", Buy: "60", Retail: "120"},
	{MetalType: pricingrepo.MetalType{ID: 3, Metal: domain.MetalGold, Name: "18K Gold"}, Pawn: "55", Buy: "65", Retail: "125"},
	{MetalType: pricingrepo.MetalType{ID: 4, Metal: domain.MetalSilver, Name: "Sterling Silver"}, Pawn: "40", Buy: "50", Retail: "150"},
	{MetalType: pricingrepo.MetalType{ID: 5, Metal: domain.MetalPlatinum, Name: "Platinum 950"}, Pawn: "45", Buy: "55", Retail: "120"},
	{MetalType: pricingrepo.MetalType{ID: 6, Metal: domain.MetalPalladium, Name: "Palladium 950"}, Pawn: "40", Buy: "50", Retail: "115"},
}

// Apply writes demo spot prices and the default percentage table for manual
// testing. It is idempotent via the repository upserts.
func Apply(ctx context.Context, w Writer) error {
	for _, m := range domain.Metals {
		if err := w.UpsertSpotPrice(ctx, m, decimal.RequireFromString(spotPrices[m])); err != nil {
			return fmt.Errorf("upsert spot price %s: %w", m, err)
		}
	}

	for _, mt := range metalTypes {
		if err := w.UpsertMetalType(ctx, mt.MetalType); err != nil {
			return fmt.Errorf("upsert metal type %s: %w", mt.Name, err)
		}
		pcts := map[domain.TransactionType]string{
			domain.TransactionPawn:   mt.Pawn,
			domain.TransactionBuy:    mt.Buy,
			domain.TransactionRetail: mt.Retail,
		}
		for _, tt := range domain.EstimateTypes {
			if err := w.UpsertPercentage(ctx, mt.ID, tt, decimal.RequireFromString(pcts[tt])); err != nil {
				return fmt.Errorf("upsert percentage %s/%s: %w", mt.Name, tt, err)
			}
		}
	}
	return nil
}
