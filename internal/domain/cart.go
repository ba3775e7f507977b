package domain

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"
)

// ItemID is the inventory/product identifier of a line item. Incoming JSON may
// carry it as a string or a number; it is always written back as a string, so
// 42 and "42" name the same item.
type ItemID string

func (id *ItemID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("item id: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// PricingMode is either FlatPrice or EstimatedPrice.
type PricingMode interface {
	pricingMode()
}

// FlatPrice is a single price regardless of transaction type (hardgoods, plain products).
type FlatPrice struct {
	Amount decimal.Decimal
}

// EstimatedPrice holds one independently computed estimate per transaction type.
type EstimatedPrice struct {
	Estimates map[TransactionType]decimal.Decimal
}

func (FlatPrice) pricingMode()      {}
func (EstimatedPrice) pricingMode() {}

// CartLineItem is one inventory entry in the cart.
type CartLineItem struct {
	ID              ItemID
	Quantity        int
	TransactionType TransactionType
	Pricing         PricingMode
	// Attributes carries display fields (name, images, category...) untouched.
	Attributes map[string]any
}

// EffectiveTransactionType returns the item's transaction type, defaulting to pawn.
func (i CartLineItem) EffectiveTransactionType() TransactionType {
	return i.TransactionType.OrDefault()
}

// Clone returns a deep copy of the line item.
func (i CartLineItem) Clone() CartLineItem {
	out := i
	if est, ok := i.Pricing.(EstimatedPrice); ok {
		out.Pricing = EstimatedPrice{Estimates: cloneEstimates(est.Estimates)}
	}
	if i.Attributes != nil {
		out.Attributes = make(map[string]any, len(i.Attributes))
		for k, v := range i.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

var lineItemKeys = map[string]struct{}{
	"id":                 {},
	"quantity":           {},
	"transactionType":    {},
	"itemPriceEstimates": {},
	"price":              {},
}

type lineItemJSON struct {
	ID                 ItemID                              `json:"id"`
	Quantity           int                                 `json:"quantity"`
	TransactionType    TransactionType                     `json:"transactionType,omitempty"`
	ItemPriceEstimates map[TransactionType]decimal.Decimal `json:"itemPriceEstimates,omitempty"`
	Price              *decimal.Decimal                    `json:"price,omitempty"`
}

// MarshalJSON writes the browser storage shape: known fields plus the
// attributes flattened at the top level.
func (i CartLineItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Attributes)+5)
	for k, v := range i.Attributes {
		if _, known := lineItemKeys[k]; known {
			continue
		}
		out[k] = v
	}
	out["id"] = i.ID
	out["quantity"] = i.Quantity
	if i.TransactionType != "" {
		out["transactionType"] = i.TransactionType
	}
	switch p := i.Pricing.(type) {
	case EstimatedPrice:
		estimates := p.Estimates
		if estimates == nil {
			estimates = map[TransactionType]decimal.Decimal{}
		}
		out["itemPriceEstimates"] = estimates
	case FlatPrice:
		out["price"] = p.Amount
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts either itemPriceEstimates or price; estimates win when
// both are present. Unknown fields land in Attributes.
func (i *CartLineItem) UnmarshalJSON(b []byte) error {
	var known lineItemJSON
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	item := CartLineItem{
		ID:              known.ID,
		Quantity:        known.Quantity,
		TransactionType: known.TransactionType,
	}
	_, hasEstimates := raw["itemPriceEstimates"]
	switch {
	case hasEstimates && string(raw["itemPriceEstimates"]) != "null":
		item.Pricing = EstimatedPrice{Estimates: cloneEstimates(known.ItemPriceEstimates)}
	case known.Price != nil:
		item.Pricing = FlatPrice{Amount: *known.Price}
	}

	for k, v := range raw {
		if _, ok := lineItemKeys[k]; ok {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("attribute %s: %w", k, err)
		}
		if item.Attributes == nil {
			item.Attributes = make(map[string]any)
		}
		item.Attributes[k] = val
	}

	*i = item
	return nil
}

// ItemsEqual reports whether two item lists are structurally equal, comparing
// money by value rather than representation.
func ItemsEqual(a, b []CartLineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if !LineItemEqual(a[idx], b[idx]) {
			return false
		}
	}
	return true
}

func LineItemEqual(a, b CartLineItem) bool {
	if a.ID != b.ID || a.Quantity != b.Quantity || a.TransactionType != b.TransactionType {
		return false
	}
	if !pricingEqual(a.Pricing, b.Pricing) {
		return false
	}
	if len(a.Attributes) == 0 && len(b.Attributes) == 0 {
		return true
	}
	return reflect.DeepEqual(a.Attributes, b.Attributes)
}

func pricingEqual(a, b PricingMode) bool {
	switch pa := a.(type) {
	case nil:
		return b == nil
	case FlatPrice:
		pb, ok := b.(FlatPrice)
		return ok && pa.Amount.Equal(pb.Amount)
	case EstimatedPrice:
		pb, ok := b.(EstimatedPrice)
		return ok && EstimatesEqual(pa.Estimates, pb.Estimates)
	}
	return false
}

// EstimatesEqual compares two estimate maps by value.
func EstimatesEqual(a, b map[TransactionType]decimal.Decimal) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !va.Equal(vb) {
			return false
		}
	}
	return true
}

// CloneItems deep-copies a list of line items. A nil list stays nil.
func CloneItems(items []CartLineItem) []CartLineItem {
	if items == nil {
		return nil
	}
	out := make([]CartLineItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func cloneEstimates(in map[TransactionType]decimal.Decimal) map[TransactionType]decimal.Decimal {
	if in == nil {
		return nil
	}
	out := make(map[TransactionType]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// NonEmpty drops rows whose quantity is not positive. The result is never nil.
func NonEmpty(items []CartLineItem) []CartLineItem {
	out := make([]CartLineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity > 0 {
			out = append(out, item)
		}
	}
	return out
}
