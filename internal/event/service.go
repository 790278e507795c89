package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tuanvumaihuynh/inventory-count/internal/storage/mq"
)

// Service consumes the audit feed and writes every event to the log.
type Service struct {
	logger     *slog.Logger
	mqConsumer mq.Consumer
}

// New creates a new event service.
func New(
	logger *slog.Logger,
	mqConsumer mq.Consumer,
) *Service {
	return &Service{
		logger:     logger.With(slog.String("service", "event")),
		mqConsumer: mqConsumer,
	}
}

type CleanupFunc func()

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	for _, topic := range Topics {
		if err := s.mqConsumer.RegisterHandler(topic, s.handle); err != nil {
			return nil, fmt.Errorf("register %s handler: %w", topic, err)
		}
	}

	mqCleanup, err := s.mqConsumer.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run mq consumer: %w", err)
	}

	cleanup := func() {
		mqCleanup()
	}

	return cleanup, nil
}

func (s *Service) handle(ctx context.Context, topic string, payload []byte) error {
	ev, err := decode(topic, payload)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "audit event",
		slog.String("topic", topic),
		slog.Any("event", ev),
	)
	return nil
}

func decode(topic string, payload []byte) (any, error) {
	var ev any
	switch topic {
	case TopicCatalogImported:
		ev = &CatalogImportedEvent{}
	case TopicCatalogCleared:
		ev = &CatalogClearedEvent{}
	case TopicLedgerLineAppended:
		ev = &LedgerLineEvent{}
	case TopicLedgerLineRemoved:
		ev = &LedgerLineRemovedEvent{}
	case TopicLedgerCleared:
		ev = &LedgerClearedEvent{}
	default:
		return nil, fmt.Errorf("unknown topic %q", topic)
	}

	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s event: %w", topic, err)
	}
	return ev, nil
}
