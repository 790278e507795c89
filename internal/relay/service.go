// Package relay publishes audit events written to the outbox table.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tuanvumaihuynh/inventory-count/internal/config"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/mq"
	"github.com/tuanvumaihuynh/inventory-count/pkg/outbox"
	"github.com/tuanvumaihuynh/inventory-count/pkg/ptr"
)

const stopTimeout = 5 * time.Second

type Service struct {
	cfg           config.Relay
	logger        *slog.Logger
	db            db.DB
	outboxMsgRepo repository.OutboxMsgRepository
	mqProducer    mq.Producer

	now      func() time.Time
	stopChan chan struct{}
}

func NewService(
	cfg config.Relay,
	logger *slog.Logger,
	db db.DB,
	outboxMsgRepo repository.OutboxMsgRepository,
	mqProducer mq.Producer,
) *Service {
	return &Service{
		cfg:           cfg,
		logger:        logger.With(slog.String("service", "relay")),
		db:            db,
		outboxMsgRepo: outboxMsgRepo,
		mqProducer:    mqProducer,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
}

type CleanupFunc func()

// Run relays in the background until the returned cleanup is called. Cleanup
// lets an in-flight batch finish for a few seconds before cancelling it.
func (s *Service) Run(ctx context.Context) CleanupFunc {
	ctx, cancel := context.WithCancel(ctx)

	stoppedChan := make(chan struct{})
	go func() {
		defer close(stoppedChan)
		s.run(ctx)
	}()

	return func() {
		close(s.stopChan)
		select {
		case <-stoppedChan:
		case <-time.After(stopTimeout):
			cancel()
			<-stoppedChan
		}
		cancel()
	}
}

func (s *Service) run(ctx context.Context) {
	relayTicker := time.NewTicker(s.cfg.Interval)
	defer relayTicker.Stop()

	var purgeChan <-chan time.Time
	if s.cfg.Retention > 0 && s.cfg.PurgeInterval > 0 {
		purgeTicker := time.NewTicker(s.cfg.PurgeInterval)
		defer purgeTicker.Stop()
		purgeChan = purgeTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-relayTicker.C:
			if _, err := s.RelayBatch(ctx); err != nil {
				s.logger.ErrorContext(ctx, "error relaying outbox msgs", slog.Any("error", err))
			}
		case <-purgeChan:
			if _, err := s.Purge(ctx); err != nil {
				s.logger.ErrorContext(ctx, "error purging outbox msgs", slog.Any("error", err))
			}
		}
	}
}

// RelayBatch publishes one batch of pending messages and returns how many
// were produced. Messages sharing a partition key are produced one after the
// other in creation order; distinct keys are produced concurrently. A failed
// message stays pending until it reaches the configured attempt limit, and
// the messages after it on the same key are left untouched in this batch.
func (s *Service) RelayBatch(ctx context.Context) (int, error) {
	var relayed int

	err := s.db.WithTx(ctx, func(tx db.DB) error {
		relayed = 0

		msgs, err := s.outboxMsgRepo.
			WithDB(tx).
			ListPending(ctx, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("outbox msg repository list pending: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}

		s.logger.DebugContext(ctx, "relaying outbox msgs", slog.Int("count", len(msgs)))

		var (
			mu       sync.Mutex
			wg       sync.WaitGroup
			outcomes = make([]repository.OutboxMsgOutcome, 0, len(msgs))
		)
		for _, group := range groupByKey(msgs) {
			wg.Go(func() {
				for _, msg := range group {
					outcome := s.produce(ctx, msg)

					mu.Lock()
					outcomes = append(outcomes, outcome)
					if outcome.Err == nil {
						relayed++
					}
					mu.Unlock()

					// Later messages on this key wait for the next batch.
					if outcome.Err != nil {
						return
					}
				}
			})
		}
		wg.Wait()

		if err := s.outboxMsgRepo.
			WithDB(tx).
			RecordOutcomes(ctx, outcomes, s.cfg.MaxAttempts); err != nil {
			return fmt.Errorf("outbox msg repository record outcomes: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return relayed, nil
}

func (s *Service) produce(ctx context.Context, msg repository.OutboxMsg) repository.OutboxMsgOutcome {
	ctx = outbox.ExtractContextFromHeaders(ctx, msg.Headers)

	err := s.mqProducer.Produce(ctx, mq.ProduceMsg{
		Topic:        msg.Topic,
		Headers:      msg.Headers,
		Payload:      msg.Payload,
		PartitionKey: msg.PartitionKey,
	})
	if err == nil {
		return repository.OutboxMsgOutcome{ID: msg.ID}
	}

	attempt := msg.Attempts + 1
	level := slog.LevelWarn
	if attempt >= s.cfg.MaxAttempts {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "error producing outbox msg",
		slog.String("outbox_msg_id", msg.ID.String()),
		slog.String("topic", msg.Topic),
		slog.Int("attempt", attempt),
		slog.Any("error", err),
	)

	return repository.OutboxMsgOutcome{ID: msg.ID, Err: ptr.New(err.Error())}
}

// Purge deletes messages processed longer ago than the retention period.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	if s.cfg.Retention <= 0 {
		return 0, nil
	}

	n, err := s.outboxMsgRepo.PurgeProcessed(ctx, s.now().Add(-s.cfg.Retention))
	if err != nil {
		return 0, fmt.Errorf("outbox msg repository purge processed: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged processed outbox msgs", slog.Int64("count", n))
	}
	return n, nil
}

// groupByKey splits msgs into per-partition-key runs, keeping their order.
// Messages without a key each form their own group.
func groupByKey(msgs []repository.OutboxMsg) [][]repository.OutboxMsg {
	var (
		groups [][]repository.OutboxMsg
		index  = make(map[string]int)
	)
	for _, msg := range msgs {
		if msg.PartitionKey == nil {
			groups = append(groups, []repository.OutboxMsg{msg})
			continue
		}
		i, ok := index[*msg.PartitionKey]
		if !ok {
			i = len(groups)
			index[*msg.PartitionKey] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], msg)
	}
	return groups
}
