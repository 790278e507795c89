package model

import (
	"time"

	"github.com/google/uuid"
)

// CatalogStats is the persisted summary shown next to the scan field.
type CatalogStats struct {
	ProductCount     int64      `json:"product_count"`
	DistinctProducts int64      `json:"distinct_products"`
	LastImportID     *uuid.UUID `json:"last_import_id,omitempty"`
	LastImportAt     *time.Time `json:"last_import_at,omitempty"`
}

// ImportResult describes a completed catalog import.
type ImportResult struct {
	ImportID uuid.UUID `json:"import_id"`
	Count    int64     `json:"count"`
	Blocks   int       `json:"blocks"`
	Dropped  int       `json:"dropped"`
}

// LedgerSummary aggregates the current ledger.
type LedgerSummary struct {
	Lines    int `json:"lines"`
	TotalQty int `json:"total_qty"`
}
