package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
)

// NewOutboxMsg is an event written in the same transaction as the change it
// describes.
type NewOutboxMsg struct {
	Topic        string
	Headers      map[string]string
	Payload      json.RawMessage
	PartitionKey *string
}

// OutboxMsg is a pending message as the relay sees it.
type OutboxMsg struct {
	ID           uuid.UUID
	Topic        string
	Headers      map[string]string
	Payload      json.RawMessage
	PartitionKey *string
	Attempts     int
}

// OutboxMsgOutcome is the result of one produce attempt. Err is nil on
// success.
type OutboxMsgOutcome struct {
	ID  uuid.UUID
	Err *string
}

type OutboxMsgRepository interface {
	WithDB(db db.DB) OutboxMsgRepository
	Create(ctx context.Context, msg NewOutboxMsg) error
	// ListPending locks up to limit unprocessed messages, oldest first. Rows
	// locked by another relay are skipped.
	ListPending(ctx context.Context, limit int) ([]OutboxMsg, error)
	// RecordOutcomes counts an attempt for every outcome. A message is
	// processed once it succeeded or reached maxAttempts.
	RecordOutcomes(ctx context.Context, outcomes []OutboxMsgOutcome, maxAttempts int) error
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}

type outboxMsgRepository struct {
	db db.DB
}

func NewOutboxMsgRepository(db db.DB) OutboxMsgRepository {
	return &outboxMsgRepository{db: db}
}

func (r outboxMsgRepository) WithDB(db db.DB) OutboxMsgRepository {
	return &outboxMsgRepository{db: db}
}

func (r outboxMsgRepository) Create(ctx context.Context, msg NewOutboxMsg) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	headers, err := json.Marshal(msg.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO outbox_messages (id, topic, headers, payload, partition_key, created_at)
		VALUES (@id, @topic, @headers, @payload, @partition_key, clock_timestamp())
	`, pgx.NamedArgs{
		"id":            id,
		"topic":         msg.Topic,
		"headers":       json.RawMessage(headers),
		"payload":       msg.Payload,
		"partition_key": msg.PartitionKey,
	}); err != nil {
		return fmt.Errorf("insert outbox msg: %w", err)
	}

	return nil
}

func (r outboxMsgRepository) ListPending(ctx context.Context, limit int) ([]OutboxMsg, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, topic, headers, payload, partition_key, attempts
		FROM outbox_messages
		WHERE processed_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox msgs: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutboxMsg, error) {
		var (
			msg     OutboxMsg
			headers []byte
		)
		if err := row.Scan(&msg.ID, &msg.Topic, &headers, &msg.Payload, &msg.PartitionKey, &msg.Attempts); err != nil {
			return OutboxMsg{}, err
		}

		msg.Headers = map[string]string{}
		if len(headers) > 0 {
			if err := json.Unmarshal(headers, &msg.Headers); err != nil {
				return OutboxMsg{}, fmt.Errorf("unmarshal headers of %s: %w", msg.ID, err)
			}
		}
		return msg, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect outbox msgs: %w", err)
	}

	return msgs, nil
}

func (r outboxMsgRepository) RecordOutcomes(ctx context.Context, outcomes []OutboxMsgOutcome, maxAttempts int) error {
	if len(outcomes) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(outcomes))
	errs := make([]*string, len(outcomes))
	for i, o := range outcomes {
		ids[i], errs[i] = o.ID, o.Err
	}

	if _, err := r.db.Exec(ctx, `
		UPDATE outbox_messages AS o
		SET
			attempts     = o.attempts + 1,
			error        = e.error,
			processed_at = CASE
				WHEN e.error IS NULL OR o.attempts + 1 >= @max_attempts THEN clock_timestamp()
			END
		FROM (
			SELECT
				UNNEST(@ids::uuid[])    AS id,
				UNNEST(@errors::text[]) AS error
		) AS e
		WHERE o.id = e.id
	`, pgx.NamedArgs{
		"ids":          ids,
		"errors":       errs,
		"max_attempts": maxAttempts,
	}); err != nil {
		return fmt.Errorf("record outbox msg outcomes: %w", err)
	}

	return nil
}

func (r outboxMsgRepository) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM outbox_messages
		WHERE processed_at IS NOT NULL AND processed_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("purge processed outbox msgs: %w", err)
	}
	return tag.RowsAffected(), nil
}
