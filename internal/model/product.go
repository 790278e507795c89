package model

import (
	"github.com/shopspring/decimal"
)

// Product is a catalog record keyed by Code.
//
// The same logical product is reachable through every barcode and, when set,
// its short code. Code is the identifier the record was keyed or resolved by.
type Product struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ShortCode *string         `json:"short_code"`
	Barcodes  []string        `json:"barcodes"`
}

// Identifiers returns every lookup key of the product: its barcodes in order,
// followed by the short code if it is set and not already a barcode.
func (p Product) Identifiers() []string {
	ids := make([]string, 0, len(p.Barcodes)+1)
	ids = append(ids, p.Barcodes...)
	if p.ShortCode != nil && !contains(p.Barcodes, *p.ShortCode) {
		ids = append(ids, *p.ShortCode)
	}
	return ids
}

// SelectCode is the code an operator picks when choosing the product from a
// search result: the first barcode, then the short code, then Code.
func (p Product) SelectCode() string {
	if len(p.Barcodes) > 0 {
		return p.Barcodes[0]
	}
	if p.ShortCode != nil {
		return *p.ShortCode
	}
	return p.Code
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
