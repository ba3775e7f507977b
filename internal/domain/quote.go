package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpotMode decides whether a quote's price basis is frozen or follows the market.
type SpotMode string

const (
	SpotLocked SpotMode = "locked"
	SpotLive   SpotMode = "live"
)

// Metal names the precious metal whose spot price backs an estimate.
type Metal string

const (
	MetalGold      Metal = "gold"
	MetalSilver    Metal = "silver"
	MetalPlatinum  Metal = "platinum"
	MetalPalladium Metal = "palladium"
)

var Metals = []Metal{MetalGold, MetalSilver, MetalPlatinum, MetalPalladium}

// QuoteItem is a jewelry item priced against a spot basis.
type QuoteItem struct {
	ID              ItemID                              `json:"id"`
	Metal           Metal                               `json:"metal"`
	MetalTypeID     int                                 `json:"metalTypeId"`
	Purity          decimal.Decimal                     `json:"purity"`
	Weight          decimal.Decimal                     `json:"weight"`
	TransactionType TransactionType                     `json:"transactionType,omitempty"`
	Estimates       map[TransactionType]decimal.Decimal `json:"itemPriceEstimates"`
	Attributes      map[string]any                      `json:"attributes,omitempty"`
}

// Quote is a saved, time-limited price offer.
type Quote struct {
	ID        string      `json:"id"`
	SpotMode  SpotMode    `json:"spotMode"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	Items     []QuoteItem `json:"items"`
}

// Mode returns the quote's spot mode, locked when unset.
func (q Quote) Mode() SpotMode {
	if q.SpotMode == SpotLive {
		return SpotLive
	}
	return SpotLocked
}

func (q Quote) Expired(now time.Time) bool {
	return q.ExpiresAt != nil && !now.Before(*q.ExpiresAt)
}

// CartItems converts the quote into cart line items, one unit each.
func (q Quote) CartItems() []CartLineItem {
	items := make([]CartLineItem, 0, len(q.Items))
	for _, qi := range q.Items {
		attrs := make(map[string]any, len(qi.Attributes)+2)
		for k, v := range qi.Attributes {
			attrs[k] = v
		}
		attrs["quoteId"] = q.ID
		attrs["metal"] = string(qi.Metal)
		items = append(items, CartLineItem{
			ID:              qi.ID,
			Quantity:        1,
			TransactionType: qi.TransactionType.OrDefault(),
			Pricing:         EstimatedPrice{Estimates: cloneEstimates(qi.Estimates)},
			Attributes:      attrs,
		})
	}
	return items
}
