package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventCreated      EventType = "created"
	EventDraftCreated EventType = "draft_created"
	EventUpdated      EventType = "updated"
	EventConfirmed    EventType = "confirmed"
	EventCompleted    EventType = "completed"
	EventCancelled    EventType = "cancelled"
	EventDeleted      EventType = "deleted"
	EventPaymentCheck EventType = "payment_check"
)

type TransactionEvent struct {
	TransactionID string            `json:"transaction_id"`
	CustomerID    string            `json:"customer_id"`
	Type          EventType         `json:"type"`
	Status        TransactionStatus `json:"status"`
	Total         decimal.Decimal   `json:"total"`
	Occurred      time.Time         `json:"occurred"`
}

var largeTotal = decimal.NewFromInt(1000)

func NewTransactionEvent(t *Transaction, eventType EventType) TransactionEvent {
	return TransactionEvent{
		TransactionID: t.ID,
		CustomerID:    t.CustomerID,
		Type:          eventType,
		Status:        t.Status,
		Total:         t.TotalAmount,
		Occurred:      now(),
	}
}

// Priority ranks cancellations and large totals ahead of routine events.
func (e TransactionEvent) Priority() uint8 {
	switch {
	case e.Type == EventCancelled:
		return 8
	case e.Total.GreaterThan(largeTotal):
		return 9
	default:
		return 5
	}
}
