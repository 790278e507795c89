package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicCatalogImported    = "catalog.imported"
	TopicCatalogCleared     = "catalog.cleared"
	TopicLedgerLineAppended = "ledger.line_appended"
	TopicLedgerLineRemoved  = "ledger.line_removed"
	TopicLedgerCleared      = "ledger.cleared"
)

// Topics lists every topic written to the outbox.
var Topics = []string{
	TopicCatalogImported,
	TopicCatalogCleared,
	TopicLedgerLineAppended,
	TopicLedgerLineRemoved,
	TopicLedgerCleared,
}

type CatalogImportedEvent struct {
	ImportID   uuid.UUID `json:"import_id"`
	Count      int64     `json:"count"`
	Blocks     int       `json:"blocks"`
	Dropped    int       `json:"dropped"`
	ImportedAt time.Time `json:"imported_at"`
}

type CatalogClearedEvent struct {
	ClearedAt time.Time `json:"cleared_at"`
}

type LedgerLineEvent struct {
	ID    int64           `json:"id"`
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty"`
	TS    time.Time       `json:"ts"`
}

// LedgerLineRemovedEvent is published for undo and for removal by id.
type LedgerLineRemovedEvent struct {
	LedgerLineEvent
	Undo bool `json:"undo"`
}

type LedgerClearedEvent struct {
	Removed   int64     `json:"removed"`
	ClearedAt time.Time `json:"cleared_at"`
}
