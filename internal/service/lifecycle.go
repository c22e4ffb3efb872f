package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

// mutateReservation locks the reservation, runs fn and persists the result.
// Events returned by fn are published after the commit.
func (s *Service) mutateReservation(ctx context.Context, op string, id uint64,
	fn func(tx repository.Tx, r *model.Reservation, now time.Time) ([]queue.Event, error),
) (res *model.Reservation, err error) {
	ctx, span := s.startSpan(ctx, op, attribute.Int64("reservation.id", int64(id)))
	defer func() {
		metrics.ObserveReservationOp(op, resultLabel(err))
		endSpan(span, err)
	}()

	now := s.now()
	var events []queue.Event
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, id)
		if err != nil {
			return translate(op, "reservation", id, err)
		}
		if events, err = fn(tx, r, now); err != nil {
			return translate(op, "reservation", id, err)
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, translate(op, "reservation", id, err)
	}
	s.notify(ctx, events...)
	return res, nil
}

// CancelReservation cancels a PENDING or CONFIRMED reservation strictly
// before the cancellation deadline (start minus two hours).
func (s *Service) CancelReservation(ctx context.Context, actor model.Actor, id uint64, reason string) (*model.Reservation, error) {
	const op = "CancelReservation"
	return s.mutateReservation(ctx, op, id, func(_ repository.Tx, r *model.Reservation, now time.Time) ([]queue.Event, error) {
		if err := requireOwnerOrStaff(op, actor, r.UserID); err != nil {
			return nil, err
		}
		if !r.Status.IsCancellable() {
			return nil, stateError(op, "a %s reservation cannot be cancelled", r.Status).With("status", r.Status)
		}
		if !r.BeforeCancellationDeadline(now) {
			return nil, stateError(op, "the cancellation deadline has passed").
				With("deadline", r.Start.Add(-model.CancellationDeadline))
		}
		if err := r.TransitionTo(model.ReservationCancelled, now); err != nil {
			return nil, err
		}
		r.CancellationReason = reason
		ev := reservationEvent(queue.ReservationCancelled, r, now)
		ev.Message = reason
		return []queue.Event{ev}, nil
	})
}

// ApproveReservation confirms a PENDING reservation. The interval was already
// reserved against conflicts when the request was made.
func (s *Service) ApproveReservation(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	const op = "ApproveReservation"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	return s.mutateReservation(ctx, op, id, func(_ repository.Tx, r *model.Reservation, now time.Time) ([]queue.Event, error) {
		if r.Status != model.ReservationPending {
			return nil, stateError(op, "only pending reservations can be approved").With("status", r.Status)
		}
		if err := r.TransitionTo(model.ReservationConfirmed, now); err != nil {
			return nil, err
		}
		approver := actor.UserID
		r.ApprovedBy = &approver
		return []queue.Event{reservationEvent(queue.ReservationConfirmed, r, now)}, nil
	})
}

// RejectReservation declines a PENDING reservation.
func (s *Service) RejectReservation(ctx context.Context, actor model.Actor, id uint64, reason string) (*model.Reservation, error) {
	const op = "RejectReservation"
	if err := requireStaff(op, actor); err != nil {
		return nil, err
	}
	return s.mutateReservation(ctx, op, id, func(_ repository.Tx, r *model.Reservation, now time.Time) ([]queue.Event, error) {
		if r.Status != model.ReservationPending {
			return nil, stateError(op, "only pending reservations can be rejected").With("status", r.Status)
		}
		if err := r.TransitionTo(model.ReservationRejected, now); err != nil {
			return nil, err
		}
		r.CancellationReason = reason
		ev := reservationEvent(queue.ReservationRejected, r, now)
		ev.Message = reason
		return []queue.Event{ev}, nil
	})
}

// CheckIn starts a CONFIRMED reservation inside [start-15m, start+30m].
func (s *Service) CheckIn(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	const op = "CheckIn"
	return s.mutateReservation(ctx, op, id, func(_ repository.Tx, r *model.Reservation, now time.Time) ([]queue.Event, error) {
		if err := requireOwnerOrStaff(op, actor, r.UserID); err != nil {
			return nil, err
		}
		if err := checkInLocked(op, r, now); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func checkInLocked(op string, r *model.Reservation, now time.Time) error {
	if r.Status != model.ReservationConfirmed {
		return stateError(op, "only confirmed reservations can be checked in").With("status", r.Status)
	}
	if !r.InCheckInWindow(now) {
		from, to := r.CheckInWindow()
		return stateError(op, "outside the check-in window").
			With("window_start", from).
			With("window_end", to)
	}
	if err := r.TransitionTo(model.ReservationCheckedIn, now); err != nil {
		return err
	}
	at := now
	r.CheckedInAt = &at
	return nil
}

// Complete ends a CHECKED_IN reservation and bills any overrun.
func (s *Service) Complete(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	const op = "Complete"
	return s.mutateReservation(ctx, op, id, func(_ repository.Tx, r *model.Reservation, now time.Time) ([]queue.Event, error) {
		if err := requireOwnerOrStaff(op, actor, r.UserID); err != nil {
			return nil, err
		}
		return nil, completeLocked(op, r, now)
	})
}

func completeLocked(op string, r *model.Reservation, now time.Time) error {
	if r.Status != model.ReservationCheckedIn {
		return stateError(op, "only checked-in reservations can be completed").With("status", r.Status)
	}
	if err := r.TransitionTo(model.ReservationCompleted, now); err != nil {
		return err
	}
	at := now
	r.ActualEnd = &at
	r.LateFee = LateFee(r.End, at, r.LateFeeRate)
	return nil
}

// GetReservation returns a reservation visible to its owner and to staff.
func (s *Service) GetReservation(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	const op = "GetReservation"
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, translate(op, "reservation", id, err)
	}
	if err := requireOwnerOrStaff(op, actor, r.UserID); err != nil {
		return nil, err
	}
	return r, nil
}

// ListReservations returns the reservations on a resource overlapping [from, to).
func (s *Service) ListReservations(ctx context.Context, resourceID uint64, from, to time.Time) ([]model.Reservation, error) {
	const op = "ListReservations"
	if !to.After(from) {
		return nil, validationError(op, "to", "to must be after from")
	}
	if _, err := s.resource(ctx, resourceID); err != nil {
		return nil, translate(op, "resource", resourceID, err)
	}
	from, to = from.UTC(), to.UTC()
	out, err := s.store.ListReservations(ctx, repository.ReservationFilter{ResourceID: resourceID, From: &from, To: &to})
	if err != nil {
		return nil, translate(op, "reservation", 0, err)
	}
	return out, nil
}

// ListUserReservations returns every reservation a user made.
func (s *Service) ListUserReservations(ctx context.Context, userID uint64, statuses ...model.ReservationStatus) ([]model.Reservation, error) {
	out, err := s.store.ListReservations(ctx, repository.ReservationFilter{UserID: userID, Statuses: statuses})
	if err != nil {
		return nil, translate("ListUserReservations", "reservation", 0, err)
	}
	return out, nil
}
