package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Time rules shared by the lifecycle and the key coupling.
const (
	CancellationDeadline = 2 * time.Hour    // cancelling must happen strictly before start minus this
	CheckInOpensBefore   = 15 * time.Minute // check-in window opens this long before start
	CheckInClosesAfter   = 30 * time.Minute // and closes this long after start
	LateFeeUnit          = 30 * time.Minute // completion overrun is billed per started unit
)

// Reservation is a time-bounded claim by a user on a Resource.
// Intervals are half-open: [Start, End).
type Reservation struct {
	ID                 uint64            `json:"id"`                             // reservations.id
	Reference          string            `json:"reference"`                      // reservations.reference (uuid)
	ResourceID         uint64            `json:"resource_id"`                    // reservations.resource_id
	UserID             uint64            `json:"user_id"`                        // reservations.user_id
	Start              time.Time         `json:"start"`                          // reservations.starts_at
	End                time.Time         `json:"end"`                            // reservations.ends_at
	Status             ReservationStatus `json:"status"`                         // reservations.status
	PeopleCount        int               `json:"people_count"`                   // reservations.people_count
	Cost               decimal.Decimal   `json:"cost"`                           // reservations.cost (usage + deposit)
	DepositAmount      decimal.Decimal   `json:"deposit_amount"`                 // reservations.deposit_amount
	DepositForfeited   bool              `json:"deposit_forfeited"`              // reservations.deposit_forfeited
	LateFeeRate        decimal.Decimal   `json:"late_fee_rate"`                  // reservations.late_fee_rate
	LateFee            decimal.Decimal   `json:"late_fee"`                       // reservations.late_fee
	Notes              string            `json:"notes,omitempty"`                // reservations.notes
	CancellationReason string            `json:"cancellation_reason,omitempty"` // reservations.cancellation_reason
	ApprovedBy         *uint64           `json:"approved_by,omitempty"`          // reservations.approved_by
	CheckedInAt        *time.Time        `json:"checked_in_at,omitempty"`        // reservations.checked_in_at
	ActualEnd          *time.Time        `json:"actual_end,omitempty"`           // reservations.actual_end
	KeyPickedUp        bool              `json:"key_picked_up"`                  // reservations.key_picked_up
	KeyPickedUpAt      *time.Time        `json:"key_picked_up_at,omitempty"`     // reservations.key_picked_up_at
	KeyReturned        bool              `json:"key_returned"`                   // reservations.key_returned
	KeyReturnedAt      *time.Time        `json:"key_returned_at,omitempty"`      // reservations.key_returned_at
	KeyAssignmentID    *uint64           `json:"key_assignment_id,omitempty"`    // reservations.key_assignment_id
	ReminderSentAt     *time.Time        `json:"-"`                              // reservations.reminder_sent_at
	PickupNoticeSentAt *time.Time        `json:"-"`                              // reservations.pickup_notice_sent_at
	CreatedAt          time.Time         `json:"created_at"`                     // reservations.created_at
	UpdatedAt          time.Time         `json:"updated_at"`                     // reservations.updated_at
}

// Duration is the booked length.
func (r *Reservation) Duration() time.Duration { return r.End.Sub(r.Start) }

// Overlaps reports whether [start,end) intersects the reservation. Touching intervals do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && r.End.After(start)
}

// CheckInWindow returns the inclusive bounds in which check-in and key pickup are allowed.
func (r *Reservation) CheckInWindow() (time.Time, time.Time) {
	return r.Start.Add(-CheckInOpensBefore), r.Start.Add(CheckInClosesAfter)
}

// InCheckInWindow reports whether now lies in [start-15m, start+30m].
func (r *Reservation) InCheckInWindow(now time.Time) bool {
	from, to := r.CheckInWindow()
	return !now.Before(from) && !now.After(to)
}

// BeforeCancellationDeadline reports whether now < start - 2h.
func (r *Reservation) BeforeCancellationDeadline(now time.Time) bool {
	return now.Before(r.Start.Add(-CancellationDeadline))
}

// TransitionTo moves the reservation to next if the transition table allows it.
func (r *Reservation) TransitionTo(next ReservationStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "reservation", From: string(r.Status), To: string(next)}
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}
