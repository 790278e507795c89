package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tuanvumaihuynh/inventory-count/internal/apperr"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
	"github.com/tuanvumaihuynh/inventory-count/pkg/outbox"
)

// publisher writes audit events to the outbox inside the caller's transaction.
// A disabled publisher does nothing.
type publisher struct {
	enabled       bool
	outboxMsgRepo repository.OutboxMsgRepository
}

func (p publisher) publish(ctx context.Context, tx db.DB, topic string, partitionKey *string, ev any) error {
	if !p.enabled {
		return nil
	}

	evBytes, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.outboxMsgRepo.
		WithDB(tx).
		Create(ctx, repository.NewOutboxMsg{
			Topic:        topic,
			Headers:      outbox.BuildHeaders(ctx),
			Payload:      evBytes,
			PartitionKey: partitionKey,
		}); err != nil {
		return fmt.Errorf("outbox msg repository create: %w", err)
	}

	return nil
}

func persistenceErr(err error) error {
	return apperr.PersistenceErr.WrapParent(err)
}
