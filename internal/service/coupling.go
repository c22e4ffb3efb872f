package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

// Reservations and key assignments only refer to each other by id. The two
// functions below are the only places that change both in one step. Rows are
// locked in the order reservation, assignment, key.

// PickUpKeyForReservation issues the resource's key to the reservation owner
// and checks the reservation in. It is allowed in the check-in window only.
func (s *Service) PickUpKeyForReservation(ctx context.Context, actor model.Actor, reservationID uint64) (res *model.Reservation, a *model.KeyAssignment, err error) {
	const op = "PickUpKeyForReservation"
	ctx, span := s.startSpan(ctx, op, attribute.Int64("reservation.id", int64(reservationID)))
	defer func() {
		metrics.ObserveKeyOp(op, resultLabel(err))
		endSpan(span, err)
	}()
	if err := requireStaff(op, actor); err != nil {
		return nil, nil, err
	}

	now := s.now()
	var key *model.Key
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return translate(op, "reservation", reservationID, err)
		}
		if r.Status != model.ReservationConfirmed {
			return stateError(op, "only confirmed reservations can pick up a key").With("status", r.Status)
		}
		if r.KeyPickedUp {
			return stateError(op, "the key for this reservation was already picked up")
		}
		resource, err := s.resource(ctx, r.ResourceID)
		if err != nil {
			return translate(op, "resource", r.ResourceID, err)
		}
		if !resource.KeyRequired {
			return stateError(op, "resource %d does not hand out a key", resource.ID)
		}
		if !r.InCheckInWindow(now) {
			from, to := r.CheckInWindow()
			return stateError(op, "outside the check-in window").With("window_start", from).With("window_end", to)
		}

		candidates, err := tx.AvailableKeysForResource(ctx, resource.ID)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return conflictError(op, "no key is available for resource %d", resource.ID)
		}
		k := candidates[0]
		rid := r.ID
		a, err = s.issueLocked(ctx, tx, op, &k, r.UserID, actor.UserID, model.AssignmentTemporary, "", &rid, now)
		if err != nil {
			return err
		}
		if err := checkInLocked(op, r, now); err != nil {
			return err
		}
		at, aid := now, a.ID
		r.KeyPickedUp = true
		r.KeyPickedUpAt = &at
		r.KeyAssignmentID = &aid
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		res, key = r, &k
		return nil
	})
	if err != nil {
		return nil, nil, translate(op, "reservation", reservationID, err)
	}
	s.notify(ctx, keyEvent(queue.KeyIssued, a.UserID, key, a, now))
	return res, a, nil
}

// ReturnKeyForReservation takes the key back and completes the reservation if
// it is still checked in.
func (s *Service) ReturnKeyForReservation(ctx context.Context, actor model.Actor, reservationID uint64, cond model.ReturnCondition, notes string) (res *model.Reservation, a *model.KeyAssignment, err error) {
	const op = "ReturnKeyForReservation"
	ctx, span := s.startSpan(ctx, op, attribute.Int64("reservation.id", int64(reservationID)))
	defer func() {
		metrics.ObserveKeyOp(op, resultLabel(err))
		endSpan(span, err)
	}()
	if err := requireStaff(op, actor); err != nil {
		return nil, nil, err
	}

	now := s.now()
	var key *model.Key
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return translate(op, "reservation", reservationID, err)
		}
		if !r.KeyPickedUp || r.KeyAssignmentID == nil {
			return stateError(op, "no key was picked up for this reservation")
		}
		if r.KeyReturned {
			return stateError(op, "the key for this reservation was already returned")
		}
		a, err = tx.LockAssignment(ctx, *r.KeyAssignmentID)
		if err != nil {
			return translate(op, "key assignment", *r.KeyAssignmentID, err)
		}
		k, err := tx.LockKey(ctx, a.KeyID)
		if err != nil {
			return translate(op, "key", a.KeyID, err)
		}
		if err := returnLocked(op, a, k, actor.UserID, cond, notes, now); err != nil {
			return err
		}
		if err := tx.UpdateAssignment(ctx, a); err != nil {
			return err
		}
		if err := tx.UpdateKey(ctx, k); err != nil {
			return err
		}

		at := now
		r.KeyReturned = true
		r.KeyReturnedAt = &at
		r.UpdatedAt = now
		if r.Status == model.ReservationCheckedIn {
			if err := completeLocked(op, r, now); err != nil {
				return err
			}
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		res, key = r, k
		return nil
	})
	if err != nil {
		return nil, nil, translate(op, "reservation", reservationID, err)
	}
	ev := keyEvent(queue.KeyReturned, a.UserID, key, a, now)
	if owed := TotalAmountOwed(a).Add(res.LateFee); owed.IsPositive() {
		ev.Amount = &owed
	}
	s.notify(ctx, ev)
	return res, a, nil
}
