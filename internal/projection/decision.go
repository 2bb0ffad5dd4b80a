package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attaboy/backoffice/internal/domain"
	"github.com/shopspring/decimal"
)

// DailyDecisions totals the rebate decisions made on one UTC day.
type DailyDecisions struct {
	Date            string          `json:"date"`
	Completed       int             `json:"completed"`
	Rejected        int             `json:"rejected"`
	CompletedAmount decimal.Decimal `json:"completed_amount"`
	UpdatedAt       string          `json:"updated_at"`
}

const (
	dailyTTL     = 35 * 24 * time.Hour
	seenEventTTL = 48 * time.Hour
)

// ErrInvalidEvent marks events that can never be applied, no matter how often
// they are redelivered.
var ErrInvalidEvent = errors.New("invalid decision event")

func dailyKey(date string) string {
	return fmt.Sprintf("projection:rebate:daily:%s", date)
}

func seenKey(eventID string) string {
	return fmt.Sprintf("projection:rebate:event:%s", eventID)
}

// ApplyDecision folds one decision event into its day's totals. Redelivered
// events are ignored and reported with applied=false.
func ApplyDecision(ctx context.Context, store Store, e domain.RebateDecidedEvent) (totals DailyDecisions, applied bool, err error) {
	tx, err := e.Transaction()
	if err != nil {
		return DailyDecisions{}, false, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	date := e.OccurredAt.UTC().Format(time.DateOnly)
	totals, err = GetDailyDecisions(ctx, store, date)
	if err != nil {
		return DailyDecisions{}, false, err
	}

	if _, err := store.Get(ctx, seenKey(e.EventID.String())); err == nil {
		return totals, false, nil
	}

	switch tx.Status {
	case domain.RebateStatusCompleted:
		totals.Completed++
		totals.CompletedAmount = totals.CompletedAmount.Add(tx.Amount)
	case domain.RebateStatusRejected:
		totals.Rejected++
	default:
		return totals, false, fmt.Errorf("%w: event %s carries non-terminal status %q", ErrInvalidEvent, e.EventID, tx.Status)
	}
	totals.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := SetJSON(ctx, store, dailyKey(date), totals, dailyTTL); err != nil {
		return DailyDecisions{}, false, err
	}
	if err := store.Set(ctx, seenKey(e.EventID.String()), []byte{1}, seenEventTTL); err != nil {
		return DailyDecisions{}, false, err
	}
	return totals, true, nil
}

// GetDailyDecisions returns the totals for date (YYYY-MM-DD); a day without
// decisions yields zero totals.
func GetDailyDecisions(ctx context.Context, store Store, date string) (DailyDecisions, error) {
	var totals DailyDecisions
	err := GetJSON(ctx, store, dailyKey(date), &totals)
	if errors.Is(err, ErrNotFound) {
		return DailyDecisions{Date: date}, nil
	}
	if err != nil {
		return DailyDecisions{}, err
	}
	return totals, nil
}
