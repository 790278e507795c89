package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is a counted entry in the ledger. Name and Price are snapshots taken
// when the line was appended.
type Line struct {
	ID    int64           `json:"id"`
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty"`
	TS    time.Time       `json:"ts"`
}

// NewLine is a ledger line before the store assigns ID and TS.
type NewLine struct {
	Code  string
	Name  string
	Price decimal.Decimal
	Qty   int
}

// Total is Price × Qty.
func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}
