package domain

import (
	"fmt"
	"strings"
)

// TransactionType selects which price estimate applies to a line item.
type TransactionType string

const (
	TransactionPawn   TransactionType = "pawn"
	TransactionBuy    TransactionType = "buy"
	TransactionRetail TransactionType = "retail"
	TransactionSale   TransactionType = "sale"
)

// EstimateTypes are the transaction types derived from a spot price basis.
var EstimateTypes = []TransactionType{TransactionPawn, TransactionBuy, TransactionRetail}

// OrDefault returns pawn for an unset transaction type.
func (t TransactionType) OrDefault() TransactionType {
	if t == "" {
		return TransactionPawn
	}
	return t
}

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionPawn, TransactionBuy, TransactionRetail, TransactionSale:
		return true
	}
	return false
}

// ParseTransactionType accepts any casing; an empty string yields pawn.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s))).OrDefault()
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}
