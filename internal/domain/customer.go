package domain

import (
	"fmt"
	"time"
)

// CustomerRef is the minimal customer record the cart keeps as its selection.
type CustomerRef struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Status  string `json:"status,omitempty"`
	IsGuest bool   `json:"isGuest,omitempty"`
}

// NewGuestCustomer builds the walk-in placeholder used for guest checkout.
func NewGuestCustomer(now time.Time) CustomerRef {
	return CustomerRef{
		ID:      fmt.Sprintf("guest_%d", now.UnixMilli()),
		Name:    "Guest Customer",
		Status:  "active",
		IsGuest: true,
	}
}

// CustomerEqual treats two nil references as equal.
func CustomerEqual(a, b *CustomerRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
