package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

// CreateKey adds a key to the inventory with its type policy applied to the
// fields not named in explicit.
func (s *Service) CreateKey(ctx context.Context, actor model.Actor, k *model.Key, explicit ...model.KeyPolicy) (*model.Key, error) {
	const op = "CreateKey"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	k.Code = strings.TrimSpace(k.Code)
	if k.Code == "" {
		return nil, validationError(op, "code", "code is required")
	}
	typ, ok := model.ParseKeyType(string(k.Type))
	if !ok {
		return nil, validationError(op, "type", "unknown key type %q", k.Type)
	}
	k.Type = typ
	if k.DepositAmount.IsNegative() || k.ReplacementCost.IsNegative() || k.MaxIssueHours < 0 {
		return nil, validationError(op, "deposit_amount", "amounts and durations must not be negative")
	}
	if k.ResourceID != nil {
		if _, err := s.store.GetResource(ctx, *k.ResourceID); err != nil {
			return nil, translate(op, "resource", *k.ResourceID, err)
		}
	}
	k.Status = model.KeyAvailable
	var set model.KeyPolicy
	for _, p := range explicit {
		set |= p
	}
	k.ApplyDefaults(set)
	now := s.now()
	k.CreatedAt, k.UpdatedAt = now, now
	if err := s.store.CreateKey(ctx, k); err != nil {
		return nil, translate(op, "key", 0, err)
	}
	metrics.ObserveKeyOp(op, "ok")
	return k, nil
}

// GetKey returns one key.
func (s *Service) GetKey(ctx context.Context, id uint64) (*model.Key, error) {
	k, err := s.store.GetKey(ctx, id)
	if err != nil {
		return nil, translate("GetKey", "key", id, err)
	}
	return k, nil
}

// ListKeys returns keys matching f.
func (s *Service) ListKeys(ctx context.Context, f repository.KeyFilter) ([]model.Key, error) {
	out, err := s.store.ListKeys(ctx, f)
	if err != nil {
		return nil, translate("ListKeys", "key", 0, err)
	}
	return out, nil
}

// ListKeysNeedingAttention returns lost, damaged and out-of-service keys and
// keys whose scheduled maintenance is overdue.
func (s *Service) ListKeysNeedingAttention(ctx context.Context) ([]model.Key, error) {
	all, err := s.store.ListKeys(ctx, repository.KeyFilter{})
	if err != nil {
		return nil, translate("ListKeysNeedingAttention", "key", 0, err)
	}
	now := s.now()
	out := make([]model.Key, 0)
	for _, k := range all {
		if k.NeedsAttention(now) {
			out = append(out, k)
		}
	}
	return out, nil
}

// mutateKey locks a key, applies fn and saves it.
func (s *Service) mutateKey(ctx context.Context, op string, id uint64, fn func(k *model.Key, now time.Time) error) (key *model.Key, err error) {
	ctx, span := s.startSpan(ctx, op, attribute.Int64("key.id", int64(id)))
	defer func() {
		metrics.ObserveKeyOp(op, resultLabel(err))
		endSpan(span, err)
	}()
	now := s.now()
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		k, err := tx.LockKey(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(k, now); err != nil {
			return err
		}
		if err := tx.UpdateKey(ctx, k); err != nil {
			return err
		}
		key = k
		return nil
	})
	if err != nil {
		return nil, translate(op, "key", id, err)
	}
	return key, nil
}

// ReserveKey holds an available key for an upcoming handover.
func (s *Service) ReserveKey(ctx context.Context, actor model.Actor, id uint64) (*model.Key, error) {
	if err := requireStaff("ReserveKey", actor); err != nil {
		return nil, err
	}
	return s.mutateKey(ctx, "ReserveKey", id, (*model.Key).Reserve)
}

// ReleaseKey drops a hold placed by ReserveKey.
func (s *Service) ReleaseKey(ctx context.Context, actor model.Actor, id uint64) (*model.Key, error) {
	if err := requireStaff("ReleaseKey", actor); err != nil {
		return nil, err
	}
	return s.mutateKey(ctx, "ReleaseKey", id, (*model.Key).Release)
}

// ReportKeyDamaged takes a key that is not out with anyone out of circulation.
func (s *Service) ReportKeyDamaged(ctx context.Context, actor model.Actor, id uint64, notes string) (*model.Key, error) {
	const op = "ReportKeyDamaged"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	return s.mutateKey(ctx, op, id, func(k *model.Key, now time.Time) error {
		if k.Status == model.KeyIssued {
			return stateError(op, "key %s is issued; return it first", k.Code)
		}
		appendNote(&k.Notes, notes)
		return k.ReportDamaged(now)
	})
}

// PutKeyOutOfService is an administrative override.
func (s *Service) PutKeyOutOfService(ctx context.Context, actor model.Actor, id uint64, notes string) (*model.Key, error) {
	const op = "PutKeyOutOfService"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	return s.mutateKey(ctx, op, id, func(k *model.Key, now time.Time) error {
		if k.Status == model.KeyIssued {
			return stateError(op, "key %s is issued; return it first", k.Code)
		}
		appendNote(&k.Notes, notes)
		return k.PutOutOfService(now)
	})
}

// RetireKey removes a key permanently.
func (s *Service) RetireKey(ctx context.Context, actor model.Actor, id uint64) (*model.Key, error) {
	const op = "RetireKey"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	return s.mutateKey(ctx, op, id, (*model.Key).Retire)
}

// RestoreKey puts a lost, damaged or out-of-service key back in circulation.
// nextMaintenance may be nil.
func (s *Service) RestoreKey(ctx context.Context, actor model.Actor, id uint64, nextMaintenance *time.Time) (*model.Key, error) {
	const op = "RestoreKey"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	return s.mutateKey(ctx, op, id, func(k *model.Key, now time.Time) error {
		if nextMaintenance != nil && !nextMaintenance.After(now) {
			return validationError(op, "next_maintenance_at", "next maintenance must be in the future")
		}
		return k.Restore(now, nextMaintenance)
	})
}

// ReportKeyLost marks a key lost. An issued key is lost through its active
// assignment so the custody ledger records the replacement cost and deposit.
func (s *Service) ReportKeyLost(ctx context.Context, actor model.Actor, id uint64) (*model.Key, error) {
	const op = "ReportKeyLost"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	k, err := s.store.GetKey(ctx, id)
	if err != nil {
		return nil, translate(op, "key", id, err)
	}
	if k.Status != model.KeyIssued {
		return s.mutateKey(ctx, op, id, func(k *model.Key, now time.Time) error {
			if k.Status == model.KeyIssued {
				return conflictError(op, "key %s was issued concurrently; retry", k.Code)
			}
			return k.ReportLost(now)
		})
	}
	active, err := s.store.ListAssignments(ctx, repository.AssignmentFilter{
		KeyID:    id,
		Statuses: []model.AssignmentStatus{model.AssignmentActive},
		Limit:    1,
	})
	if err != nil {
		return nil, translate(op, "key assignment", 0, err)
	}
	if len(active) == 0 {
		return nil, stateError(op, "key %s is issued but has no active assignment", k.Code)
	}
	if _, err := s.ReportLost(ctx, actor, active[0].ID); err != nil {
		return nil, err
	}
	return s.GetKey(ctx, id)
}

func appendNote(dst *string, note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if *dst != "" {
		*dst += "\n"
	}
	*dst += note
}

func keyEvent(t queue.EventType, userID uint64, k *model.Key, a *model.KeyAssignment, at time.Time) queue.Event {
	ev := queue.NewEvent(t, userID, at)
	ev.KeyID = k.ID
	if k.ResourceID != nil {
		ev.ResourceID = *k.ResourceID
	}
	if a != nil {
		ev.AssignmentID = a.ID
		if a.ReservationID != nil {
			ev.ReservationID = *a.ReservationID
		}
	}
	return ev
}
