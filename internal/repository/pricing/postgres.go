package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pawn-pos/internal/domain"
	"pawn-pos/internal/pricing"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) SpotPrices(ctx context.Context) (pricing.SpotPrices, error) {
	const q = `
SELECT metal, price::text
FROM spot_prices
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Warn("pricing repo: spot prices query failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := make(pricing.SpotPrices)
	for rows.Next() {
		var metal, price string
		if err := rows.Scan(&metal, &price); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("spot price %s: %w", metal, err)
		}
		out[domain.Metal(metal)] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) Percentages(ctx context.Context) (pricing.PercentageTable, error) {
	const q = `
SELECT metal_type_id, transaction_type, percentage::text
FROM price_estimate_percentages
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Warn("pricing repo: percentages query failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := make(pricing.PercentageTable)
	for rows.Next() {
		var (
			metalTypeID int
			tt, pct     string
		)
		if err := rows.Scan(&metalTypeID, &tt, &pct); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(pct)
		if err != nil {
			return nil, fmt.Errorf("percentage %d/%s: %w", metalTypeID, tt, err)
		}
		out.Set(metalTypeID, domain.TransactionType(tt), d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) MetalTypes(ctx context.Context) ([]MetalType, error) {
	const q = `
SELECT id, metal, name
FROM precious_metal_types
ORDER BY id
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MetalType
	for rows.Next() {
		var (
			mt    MetalType
			metal string
		)
		if err := rows.Scan(&mt.ID, &metal, &mt.Name); err != nil {
			return nil, err
		}
		mt.Metal = domain.Metal(metal)
		out = append(out, mt)
	}
	return out, rows.Err()
}

func (r *postgresRepo) UpsertSpotPrice(ctx context.Context, metal domain.Metal, price decimal.Decimal) error {
	const q = `
INSERT INTO spot_prices (metal, price, updated_at)
VALUES ($1, $2::numeric, now())
ON CONFLICT (metal) DO UPDATE
SET price = EXCLUDED.price,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.pool.Exec(ctx, q, string(metal), price.String())
	return err
}

func (r *postgresRepo) UpsertMetalType(ctx context.Context, mt MetalType) error {
	const q = `
INSERT INTO precious_metal_types (id, metal, name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET metal = EXCLUDED.metal,
    name = EXCLUDED.name
`
	_, err := r.pool.Exec(ctx, q, mt.ID, string(mt.Metal), mt.Name)
	return err
}

func (r *postgresRepo) UpsertPercentage(ctx context.Context, metalTypeID int, tt domain.TransactionType, pct decimal.Decimal) error {
	const q = `
INSERT INTO price_estimate_percentages (metal_type_id, transaction_type, percentage, updated_at)
VALUES ($1, $2, $3::numeric, now())
ON CONFLICT (metal_type_id, transaction_type) DO UPDATE
SET percentage = EXCLUDED.percentage,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.pool.Exec(ctx, q, metalTypeID, string(tt), pct.String())
	return err
}
