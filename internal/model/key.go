package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Key is a physical access token tracked in the inventory.
type Key struct {
	ID                  uint64          `json:"id"`                             // access_keys.id
	Code                string          `json:"code"`                           // access_keys.code (unique)
	Type                KeyType         `json:"type"`                           // access_keys.type
	Status              KeyStatus       `json:"status"`                         // access_keys.status
	ResourceID          *uint64         `json:"resource_id,omitempty"`          // access_keys.resource_id (nullable)
	SecurityLevel       SecurityLevel   `json:"security_level"`                 // access_keys.security_level
	DepositAmount       decimal.Decimal `json:"deposit_amount"`                 // access_keys.deposit_amount
	ReplacementCost     decimal.Decimal `json:"replacement_cost"`               // access_keys.replacement_cost
	MaxIssueHours       int             `json:"max_issue_hours"`                // access_keys.max_issue_hours
	PermanentAssignment bool            `json:"permanent_assignment"`           // access_keys.permanent_assignment
	TotalAssignments    int             `json:"total_assignments"`              // access_keys.total_assignments
	LostCount           int             `json:"lost_count"`                     // access_keys.lost_count
	LastMaintenanceAt   *time.Time      `json:"last_maintenance_at,omitempty"`  // access_keys.last_maintenance_at
	NextMaintenanceAt   *time.Time      `json:"next_maintenance_at,omitempty"`  // access_keys.next_maintenance_at
	Notes               string          `json:"notes,omitempty"`                // access_keys.notes
	CreatedAt           time.Time       `json:"created_at"`                     // access_keys.created_at
	UpdatedAt           time.Time       `json:"updated_at"`                     // access_keys.updated_at
}

// KeyPolicy is a set of key policy fields the caller gave explicitly.
type KeyPolicy uint8

const (
	KeyPolicyDeposit KeyPolicy = 1 << iota
	KeyPolicyPermanent
)

// Has reports whether every field in f is in the set.
func (p KeyPolicy) Has(f KeyPolicy) bool { return p&f == f }

// ApplyDefaults copies the type policy onto zero-valued fields, except those
// in explicit. A zero replacement cost or issue window always takes the default.
func (k *Key) ApplyDefaults(explicit KeyPolicy) {
	d := KeyDefaultsFor(k.Type)
	if k.SecurityLevel == "" {
		k.SecurityLevel = d.SecurityLevel
	}
	if !explicit.Has(KeyPolicyDeposit) && k.DepositAmount.IsZero() {
		k.DepositAmount = d.DepositAmount
	}
	if k.ReplacementCost.IsZero() {
		k.ReplacementCost = d.ReplacementCost
	}
	if k.MaxIssueHours == 0 {
		k.MaxIssueHours = d.MaxIssueHours
	}
	if !explicit.Has(KeyPolicyPermanent) && !k.PermanentAssignment {
		k.PermanentAssignment = d.PermanentAssignment
	}
	if k.Status == "" {
		k.Status = KeyAvailable
	}
}

func (k *Key) transition(next KeyStatus, now time.Time) error {
	if !k.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "key", From: string(k.Status), To: string(next)}
	}
	k.Status = next
	k.UpdatedAt = now
	return nil
}

// Issue hands the key out and counts the assignment.
func (k *Key) Issue(now time.Time) error {
	if err := k.transition(KeyIssued, now); err != nil {
		return err
	}
	k.TotalAssignments++
	return nil
}

// Return puts an issued key back on the board.
func (k *Key) Return(now time.Time) error {
	if k.Status != KeyIssued {
		return &TransitionError{Entity: "key", From: string(k.Status), To: string(KeyAvailable)}
	}
	return k.transition(KeyAvailable, now)
}

// ReportLost marks the key lost and counts the loss. A repeat report on a
// LOST key counts another loss.
func (k *Key) ReportLost(now time.Time) error {
	if err := k.transition(KeyLost, now); err != nil {
		return err
	}
	k.LostCount++
	return nil
}

// ReportDamaged is an administrative override.
func (k *Key) ReportDamaged(now time.Time) error { return k.transition(KeyDamaged, now) }

// PutOutOfService is an administrative override.
func (k *Key) PutOutOfService(now time.Time) error { return k.transition(KeyOutOfService, now) }

// Retire removes the key permanently.
func (k *Key) Retire(now time.Time) error { return k.transition(KeyRetired, now) }

// Reserve holds an available key for an upcoming handover.
func (k *Key) Reserve(now time.Time) error {
	if k.Status != KeyAvailable {
		return &TransitionError{Entity: "key", From: string(k.Status), To: string(KeyReserved)}
	}
	return k.transition(KeyReserved, now)
}

// Release drops a reservation hold.
func (k *Key) Release(now time.Time) error {
	if k.Status != KeyReserved {
		return &TransitionError{Entity: "key", From: string(k.Status), To: string(KeyAvailable)}
	}
	return k.transition(KeyAvailable, now)
}

// Restore returns a lost, damaged or out-of-service key to circulation and
// records the maintenance. next may be nil when no follow-up is planned.
func (k *Key) Restore(now time.Time, next *time.Time) error {
	switch k.Status {
	case KeyLost, KeyDamaged, KeyOutOfService:
	default:
		return &TransitionError{Entity: "key", From: string(k.Status), To: string(KeyAvailable)}
	}
	if err := k.transition(KeyAvailable, now); err != nil {
		return err
	}
	done := now
	k.LastMaintenanceAt = &done
	k.NextMaintenanceAt = next
	return nil
}

// MaintenanceOverdue reports whether scheduled maintenance is past due.
func (k *Key) MaintenanceOverdue(now time.Time) bool {
	return k.NextMaintenanceAt != nil && k.NextMaintenanceAt.Before(now) && !k.Status.IsTerminal()
}

// NeedsAttention is true for lost, damaged or out-of-service keys and for overdue maintenance.
func (k *Key) NeedsAttention(now time.Time) bool {
	switch k.Status {
	case KeyLost, KeyDamaged, KeyOutOfService:
		return true
	}
	return k.MaintenanceOverdue(now)
}

// ResolvedReplacementCost falls back to the default when the key has none configured.
func (k *Key) ResolvedReplacementCost() decimal.Decimal {
	if k.ReplacementCost.IsPositive() {
		return k.ReplacementCost
	}
	return DefaultReplacementCost
}
