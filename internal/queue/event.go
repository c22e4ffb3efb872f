// Package queue defines the notification events exchanged over the message
// broker and the publisher and consumer that move them.
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a notification kind. The value doubles as a log label.
type EventType string

const (
	ReservationConfirmed EventType = "reservation.confirmed"
	ReservationPending   EventType = "reservation.pending"
	ReservationCancelled EventType = "reservation.cancelled"
	ReservationRejected  EventType = "reservation.rejected"
	ReservationReminder  EventType = "reservation.reminder"
	ReservationNoShow    EventType = "reservation.no_show"
	KeyPickupReady       EventType = "key.pickup_ready"
	KeyIssued            EventType = "key.issued"
	KeyReturned          EventType = "key.returned"
	KeyOverdue           EventType = "key.overdue"
	KeyLost              EventType = "key.lost"
)

// Event carries enough context for downstream consumers to notify the
// resident without querying the primary database.
type Event struct {
	ID            string           `json:"id"`
	Type          EventType        `json:"type"`
	OccurredAt    time.Time        `json:"occurred_at"`
	UserID        uint64           `json:"user_id"`
	ResourceID    uint64           `json:"resource_id,omitempty"`
	ReservationID uint64           `json:"reservation_id,omitempty"`
	KeyID         uint64           `json:"key_id,omitempty"`
	AssignmentID  uint64           `json:"assignment_id,omitempty"`
	StartsAt      *time.Time       `json:"starts_at,omitempty"`
	EndsAt        *time.Time       `json:"ends_at,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Message       string           `json:"message,omitempty"`
}

// NewEvent stamps a fresh event with an ID and the occurrence time.
func NewEvent(t EventType, userID uint64, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: at.UTC(), UserID: userID}
}
