package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssignmentType describes how long a key is meant to stay with the recipient.
type AssignmentType string

const (
	AssignmentPermanent AssignmentType = "PERMANENT"
	AssignmentTemporary AssignmentType = "TEMPORARY"
	AssignmentEmergency AssignmentType = "EMERGENCY"
)

// ParseAssignmentType parses an assignment type tag case-insensitively.
func ParseAssignmentType(s string) (AssignmentType, bool) {
	switch t := AssignmentType(strings.ToUpper(strings.TrimSpace(s))); t {
	case AssignmentPermanent, AssignmentTemporary, AssignmentEmergency:
		return t, true
	}
	return "", false
}

// HasDueDate reports whether assignments of this type carry an expected return.
func (t AssignmentType) HasDueDate() bool { return t != AssignmentPermanent }

// AssignmentStatus is the custody state of a KeyAssignment.
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "ACTIVE"
	AssignmentReturned AssignmentStatus = "RETURNED"
	AssignmentLost     AssignmentStatus = "LOST"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentActive:   {AssignmentReturned, AssignmentLost},
	AssignmentReturned: {},
	AssignmentLost:     {},
}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReturnCondition is the state of a key as assessed at the desk.
type ReturnCondition string

const (
	ConditionGood    ReturnCondition = "GOOD"
	ConditionFair    ReturnCondition = "FAIR"
	ConditionDamaged ReturnCondition = "DAMAGED"
)

// ParseReturnCondition parses a condition tag case-insensitively.
func ParseReturnCondition(s string) (ReturnCondition, bool) {
	switch c := ReturnCondition(strings.ToUpper(strings.TrimSpace(s))); c {
	case ConditionGood, ConditionFair, ConditionDamaged:
		return c, true
	}
	return "", false
}

// KeyAssignment records a key held by a user for a period.
// ReservationID is a lookup key only; the assignment does not own the reservation.
type KeyAssignment struct {
	ID               uint64           `json:"id"`                           // key_assignments.id
	KeyID            uint64           `json:"key_id"`                       // key_assignments.key_id
	KeyType          KeyType          `json:"key_type"`                     // key_assignments.key_type
	UserID           uint64           `json:"user_id"`                      // key_assignments.user_id
	IssuedBy         uint64           `json:"issued_by"`                    // key_assignments.issued_by
	ReturnedTo       *uint64          `json:"returned_to,omitempty"`        // key_assignments.returned_to
	Type             AssignmentType   `json:"assignment_type"`              // key_assignments.assignment_type
	Status           AssignmentStatus `json:"status"`                       // key_assignments.status
	IssuedAt         time.Time        `json:"issued_at"`                    // key_assignments.issued_at
	ExpectedReturn   *time.Time       `json:"expected_return,omitempty"`    // key_assignments.expected_return
	ReturnedAt       *time.Time       `json:"returned_at,omitempty"`        // key_assignments.returned_at
	ReturnCondition  ReturnCondition  `json:"return_condition,omitempty"`   // key_assignments.return_condition
	DepositAmount    decimal.Decimal  `json:"deposit_amount"`               // key_assignments.deposit_amount
	DepositPaid      bool             `json:"deposit_paid"`                 // key_assignments.deposit_paid
	DepositRefunded  bool             `json:"deposit_refunded"`             // key_assignments.deposit_refunded
	DepositForfeited bool             `json:"deposit_forfeited"`            // key_assignments.deposit_forfeited
	FineAmount       decimal.Decimal  `json:"fine_amount"`                  // key_assignments.fine_amount
	ReplacementCost  decimal.Decimal  `json:"replacement_cost"`             // key_assignments.replacement_cost
	ExtensionCount   int              `json:"extension_count"`              // key_assignments.extension_count
	ReservationID    *uint64          `json:"reservation_id,omitempty"`     // key_assignments.reservation_id
	Notes            string           `json:"notes,omitempty"`              // key_assignments.notes
	LastReminderAt   *time.Time       `json:"-"`                            // key_assignments.last_reminder_at
	CreatedAt        time.Time        `json:"created_at"`                   // key_assignments.created_at
	UpdatedAt        time.Time        `json:"updated_at"`                   // key_assignments.updated_at
}

// TransitionTo moves the assignment to next if the table allows it.
func (a *KeyAssignment) TransitionTo(next AssignmentStatus, now time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "key assignment", From: string(a.Status), To: string(next)}
	}
	a.Status = next
	a.UpdatedAt = now
	return nil
}

// IsOverdue reports whether an active assignment is past its expected return.
func (a *KeyAssignment) IsOverdue(now time.Time) bool {
	return a.Status == AssignmentActive && a.ExpectedReturn != nil && now.After(*a.ExpectedReturn)
}

// DepositRefundable reports whether a paid deposit can still go back to the
// holder: the assignment is open, or it was returned GOOD without a fine, and
// the deposit was neither refunded nor forfeited yet.
func (a *KeyAssignment) DepositRefundable() bool {
	if !a.DepositPaid || a.DepositRefunded || a.DepositForfeited {
		return false
	}
	switch a.Status {
	case AssignmentActive:
		return true
	case AssignmentReturned:
		return a.ReturnCondition == ConditionGood && a.FineAmount.IsZero()
	}
	return false
}
