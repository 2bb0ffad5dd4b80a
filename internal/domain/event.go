package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType enumerates rebate decision event types.
type EventType string

const (
	EventRebateCompleted EventType = "backoffice.rebate.completed"
	EventRebateRejected  EventType = "backoffice.rebate.rejected"
)

// AggregateRebate is the aggregate type of every rebate event.
const AggregateRebate = "rebate_transaction"

// RebateDecidedEvent is the envelope published after a rebate leaves Pending.
type RebateDecidedEvent struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	SessionID     string          `json:"sessionId"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// rebateDecidedPayload is the serialized decision.
type rebateDecidedPayload struct {
	Username     string          `json:"username"`
	RebateName   string          `json:"rebateName"`
	RebateType   string          `json:"rebateType"`
	LossAmount   decimal.Decimal `json:"lossAmount"`
	Status       RebateStatus    `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Remark       string          `json:"remark"`
	CompleteBy   string          `json:"completeBy"`
	CompleteTime *time.Time      `json:"completeTime,omitempty"`
}

// NewRebateDecidedEvent builds the event for a transaction that reached a terminal status.
func NewRebateDecidedEvent(sessionID string, tx RebateTransaction) RebateDecidedEvent {
	eventType := EventRebateCompleted
	if tx.Status == RebateStatusRejected {
		eventType = EventRebateRejected
	}

	payload, _ := json.Marshal(rebateDecidedPayload{
		Username:     tx.Username,
		RebateName:   tx.RebateName,
		RebateType:   tx.RebateType,
		LossAmount:   tx.LossAmount,
		Status:       tx.Status,
		Amount:       tx.Amount,
		Remark:       tx.Remark,
		CompleteBy:   tx.CompleteBy,
		CompleteTime: tx.CompleteTime,
	})

	occurredAt := time.Now().UTC()
	if tx.CompleteTime != nil {
		occurredAt = tx.CompleteTime.UTC()
	}

	return RebateDecidedEvent{
		EventID:       uuid.New(),
		AggregateType: AggregateRebate,
		AggregateID:   tx.ID,
		EventType:     eventType,
		SessionID:     sessionID,
		Payload:       payload,
		OccurredAt:    occurredAt,
	}
}

// Transaction rebuilds the decided transaction carried by the event.
func (e RebateDecidedEvent) Transaction() (RebateTransaction, error) {
	var p rebateDecidedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return RebateTransaction{}, fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return RebateTransaction{
		ID:           e.AggregateID,
		Username:     p.Username,
		RebateName:   p.RebateName,
		RebateType:   p.RebateType,
		LossAmount:   p.LossAmount,
		Status:       p.Status,
		Amount:       p.Amount,
		Remark:       p.Remark,
		CompleteBy:   p.CompleteBy,
		CompleteTime: p.CompleteTime,
	}, nil
}
