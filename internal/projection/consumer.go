package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/segmentio/kafka-go"
)

// MessageReader is satisfied by infra.KafkaConsumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ConsumeDecisions folds decision events from r into store until ctx is
// cancelled. Offsets are committed only after an event is applied, so a store
// failure stops the loop and the event is redelivered; redeliveries are
// deduplicated by event id. Malformed events are logged, committed and skipped.
func ConsumeDecisions(ctx context.Context, r MessageReader, store Store, logger *slog.Logger) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var event domain.RebateDecidedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Warn("skipping malformed decision event", "offset", msg.Offset, "partition", msg.Partition, "error", err)
			if err := commit(ctx, r, msg); err != nil {
				return err
			}
			continue
		}

		totals, applied, err := ApplyDecision(ctx, store, event)
		switch {
		case errors.Is(err, ErrInvalidEvent):
			logger.Warn("skipping decision event", "event_id", event.EventID, "aggregate_id", event.AggregateID, "error", err)
		case err != nil:
			return fmt.Errorf("apply decision %s: %w", event.EventID, err)
		case !applied:
			logger.Info("duplicate decision event", "event_id", event.EventID)
		default:
			logger.Info("rebate decision",
				"event_id", event.EventID,
				"event_type", event.EventType,
				"transaction_id", event.AggregateID,
				"session_id", event.SessionID,
				"date", totals.Date,
				"completed", totals.Completed,
				"rejected", totals.Rejected,
				"completed_amount", totals.CompletedAmount.StringFixed(2),
			)
		}

		if err := commit(ctx, r, msg); err != nil {
			return err
		}
	}
}

func commit(ctx context.Context, r MessageReader, msg kafka.Message) error {
	if err := r.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}
