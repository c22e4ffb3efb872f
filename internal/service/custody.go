package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

// IssueRequest hands a key to a user.
type IssueRequest struct {
	KeyID  uint64
	UserID uint64
	Type   model.AssignmentType
	Notes  string
}

// IssueKey creates an ACTIVE assignment and marks the key ISSUED in one transaction.
func (s *Service) IssueKey(ctx context.Context, actor model.Actor, req IssueRequest) (a *model.KeyAssignment, err error) {
	const op = "IssueKey"
	ctx, span := s.startSpan(ctx, op, attribute.Int64("key.id", int64(req.KeyID)))
	defer func() {
		metrics.ObserveKeyOp(op, resultLabel(err))
		endSpan(span, err)
	}()
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	if req.UserID == 0 {
		return nil, validationError(op, "user_id", "recipient is required")
	}
	if req.Type == "" {
		req.Type = model.AssignmentTemporary
	}
	typ, ok := model.ParseAssignmentType(string(req.Type))
	if !ok {
		return nil, validationError(op, "assignment_type", "unknown assignment type %q", req.Type)
	}
	req.Type = typ

	now := s.now()
	var key *model.Key
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		k, err := tx.LockKey(ctx, req.KeyID)
		if err != nil {
			return translate(op, "key", req.KeyID, err)
		}
		a, err = s.issueLocked(ctx, tx, op, k, req.UserID, actor.UserID, req.Type, req.Notes, nil, now)
		key = k
		return err
	})
	if err != nil {
		return nil, translate(op, "key", req.KeyID, err)
	}
	s.notify(ctx, keyEvent(queue.KeyIssued, a.UserID, key, a, now))
	return a, nil
}

// issueLocked is the single issuing path shared by IssueKey and key pickup.
// The key row must already be locked by tx.
func (s *Service) issueLocked(ctx context.Context, tx repository.Tx, op string, k *model.Key,
	userID, issuer uint64, typ model.AssignmentType, notes string, reservationID *uint64, now time.Time,
) (*model.KeyAssignment, error) {
	if !k.Status.Issuable() {
		return nil, stateError(op, "key %s is %s and cannot be issued", k.Code, k.Status).With("status", k.Status)
	}
	if k.PermanentAssignment {
		held, err := tx.ActiveAssignmentsForUser(ctx, userID, k.Type)
		if err != nil {
			return nil, err
		}
		if len(held) > 0 {
			return nil, conflictError(op, "user already holds an active %s key", k.Type).
				With("assignment_id", held[0].ID)
		}
	}
	if err := k.Issue(now); err != nil {
		return nil, err
	}
	if err := tx.UpdateKey(ctx, k); err != nil {
		return nil, err
	}
	a := &model.KeyAssignment{
		KeyID:           k.ID,
		KeyType:         k.Type,
		UserID:          userID,
		IssuedBy:        issuer,
		Type:            typ,
		Status:          model.AssignmentActive,
		IssuedAt:        now,
		DepositAmount:   k.DepositAmount,
		DepositPaid:     k.DepositAmount.IsPositive(),
		ReplacementCost: k.ResolvedReplacementCost(),
		ReservationID:   reservationID,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if typ.HasDueDate() && k.MaxIssueHours > 0 {
		due := now.Add(time.Duration(k.MaxIssueHours) * time.Hour)
		a.ExpectedReturn = &due
	}
	if err := tx.InsertAssignment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ReturnKey closes an ACTIVE assignment, records the overdue fine and decides
// the deposit: it is refunded only for a GOOD return without a fine.
func (s *Service) ReturnKey(ctx context.Context, actor model.Actor, assignmentID uint64, cond model.ReturnCondition, notes string) (*model.KeyAssignment, error) {
	const op = "ReturnKey"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	return s.mutateAssignment(ctx, op, assignmentID, func(tx repository.Tx, a *model.KeyAssignment, k *model.Key, now time.Time) (queue.EventType, error) {
		return queue.KeyReturned, returnLocked(op, a, k, actor.UserID, cond, notes, now)
	})
}

// returnLocked applies a return to an assignment and its key. Both rows must be locked.
func returnLocked(op string, a *model.KeyAssignment, k *model.Key, returnedTo uint64, cond model.ReturnCondition, notes string, now time.Time) error {
	if a.Status != model.AssignmentActive {
		return stateError(op, "assignment %d is %s, not active", a.ID, a.Status).With("status", a.Status)
	}
	if cond == "" {
		cond = model.ConditionGood
	}
	parsed, ok := model.ParseReturnCondition(string(cond))
	if !ok {
		return validationError(op, "condition", "unknown return condition %q", cond)
	}
	cond = parsed
	if err := a.TransitionTo(model.AssignmentReturned, now); err != nil {
		return err
	}
	at, to := now, returnedTo
	a.ReturnedAt = &at
	a.ReturnedTo = &to
	a.ReturnCondition = cond
	a.FineAmount = OverdueFine(a.ExpectedReturn, now)
	if a.DepositPaid {
		a.DepositRefunded = cond == model.ConditionGood && a.FineAmount.IsZero()
		a.DepositForfeited = !a.DepositRefunded
	}
	appendNote(&a.Notes, notes)
	return k.Return(now)
}

// ReportLost closes an ACTIVE assignment as lost: the replacement cost is
// charged, the deposit is forfeited and the key is reported LOST.
func (s *Service) ReportLost(ctx context.Context, actor model.Actor, assignmentID uint64) (*model.KeyAssignment, error) {
	const op = "ReportLost"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	return s.mutateAssignment(ctx, op, assignmentID, func(_ repository.Tx, a *model.KeyAssignment, k *model.Key, now time.Time) (queue.EventType, error) {
		if a.Status != model.AssignmentActive {
			return "", stateError(op, "assignment %d is %s, not active", a.ID, a.Status).With("status", a.Status)
		}
		if err := a.TransitionTo(model.AssignmentLost, now); err != nil {
			return "", err
		}
		a.ReplacementCost = k.ResolvedReplacementCost()
		a.DepositRefunded = false
		a.DepositForfeited = a.DepositPaid
		return queue.KeyLost, k.ReportLost(now)
	})
}

// ExtendAssignment moves the expected return of an ACTIVE assignment.
func (s *Service) ExtendAssignment(ctx context.Context, actor model.Actor, assignmentID uint64, newExpected time.Time, reason string) (*model.KeyAssignment, error) {
	const op = "ExtendAssignment"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	return s.mutateAssignment(ctx, op, assignmentID, func(_ repository.Tx, a *model.KeyAssignment, _ *model.Key, now time.Time) (queue.EventType, error) {
		if a.Status != model.AssignmentActive {
			return "", stateError(op, "assignment %d is %s, not active", a.ID, a.Status).With("status", a.Status)
		}
		if !newExpected.After(now) {
			return "", validationError(op, "expected_return", "new expected return must be in the future")
		}
		due := newExpected.UTC()
		a.ExpectedReturn = &due
		a.ExtensionCount++
		a.UpdatedAt = now
		appendNote(&a.Notes, reason)
		return "", nil
	})
}

// mutateAssignment locks an assignment and then its key, runs fn and saves
// both. fn returns the event type to publish after commit, or "" for none.
func (s *Service) mutateAssignment(ctx context.Context, op string, id uint64,
	fn func(tx repository.Tx, a *model.KeyAssignment, k *model.Key, now time.Time) (queue.EventType, error),
) (res *model.KeyAssignment, err error) {
	ctx, span := s.startSpan(ctx, op, attribute.Int64("assignment.id", int64(id)))
	defer func() {
		metrics.ObserveKeyOp(op, resultLabel(err))
		endSpan(span, err)
	}()

	now := s.now()
	var (
		evType queue.EventType
		key    *model.Key
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.LockAssignment(ctx, id)
		if err != nil {
			return translate(op, "key assignment", id, err)
		}
		k, err := tx.LockKey(ctx, a.KeyID)
		if err != nil {
			return translate(op, "key", a.KeyID, err)
		}
		if evType, err = fn(tx, a, k, now); err != nil {
			return err
		}
		if err := tx.UpdateAssignment(ctx, a); err != nil {
			return err
		}
		if err := tx.UpdateKey(ctx, k); err != nil {
			return err
		}
		res, key = a, k
		return nil
	})
	if err != nil {
		return nil, translate(op, "key assignment", id, err)
	}
	if evType != "" {
		ev := keyEvent(evType, res.UserID, key, res, now)
		if owed := TotalAmountOwed(res); owed.IsPositive() {
			ev.Amount = &owed
		}
		s.notify(ctx, ev)
	}
	s.logger.Info("key assignment updated",
		slog.String("op", op),
		slog.Uint64("assignment_id", res.ID),
		slog.String("status", string(res.Status)),
		slog.String("fine", res.FineAmount.StringFixed(2)),
	)
	return res, nil
}

// GetAssignment returns one assignment.
func (s *Service) GetAssignment(ctx context.Context, id uint64) (*model.KeyAssignment, error) {
	a, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, translate("GetAssignment", "key assignment", id, err)
	}
	return a, nil
}

// ListAssignments returns assignments matching f.
func (s *Service) ListAssignments(ctx context.Context, f repository.AssignmentFilter) ([]model.KeyAssignment, error) {
	out, err := s.store.ListAssignments(ctx, f)
	if err != nil {
		return nil, translate("ListAssignments", "key assignment", 0, err)
	}
	return out, nil
}

// ListOverdueAssignments returns ACTIVE assignments past their expected return.
func (s *Service) ListOverdueAssignments(ctx context.Context) ([]model.KeyAssignment, error) {
	now := s.now()
	return s.ListAssignments(ctx, repository.AssignmentFilter{
		Statuses:  []model.AssignmentStatus{model.AssignmentActive},
		DueBefore: &now,
	})
}
