package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

// SweepResult counts the rows one sweep changed.
type SweepResult struct {
	Expired          int `json:"expired"`
	NoShows          int `json:"no_shows"`
	CheckedInExpired int `json:"checked_in_expired"`
	Reminders        int `json:"reminders"`
	PickupNotices    int `json:"pickup_notices"`
	OverdueReminders int `json:"overdue_reminders"`
	Failures         int `json:"failures"`
}

func (r SweepResult) counts() map[string]int {
	return map[string]int{
		"expired":            r.Expired,
		"no_show":            r.NoShows,
		"checked_in_expired": r.CheckedInExpired,
		"reminder":           r.Reminders,
		"pickup_notice":      r.PickupNotices,
		"overdue_reminder":   r.OverdueReminders,
	}
}

// Sweep applies time-driven transitions and emits reminders. Every row is
// re-read under lock and only changed from the expected source state, so
// running it twice, or concurrently with user operations, is safe.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := s.startSpan(ctx, "Sweep")
	started := time.Now()
	now := s.now()
	var (
		res  SweepResult
		errs []error
	)

	step := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	step(s.sweepReservations(ctx, model.ReservationPending, now, &res.Expired, &res.Failures, func(r *model.Reservation) ([]queue.Event, error) {
		return nil, r.TransitionTo(model.ReservationExpired, now)
	}))
	step(s.sweepReservations(ctx, model.ReservationConfirmed, now, &res.NoShows, &res.Failures, func(r *model.Reservation) ([]queue.Event, error) {
		if err := r.TransitionTo(model.ReservationNoShow, now); err != nil {
			return nil, err
		}
		r.DepositForfeited = r.DepositAmount.IsPositive()
		return []queue.Event{reservationEvent(queue.ReservationNoShow, r, now)}, nil
	}))
	step(s.sweepReservations(ctx, model.ReservationCheckedIn, now.Add(-s.cfg.CheckedInGrace), &res.CheckedInExpired, &res.Failures, func(r *model.Reservation) ([]queue.Event, error) {
		return nil, r.TransitionTo(model.ReservationExpired, now)
	}))
	step(s.sweepReminders(ctx, now, &res))
	step(s.sweepPickupNotices(ctx, now, &res))
	step(s.sweepOverdueAssignments(ctx, now, &res))

	err := errors.Join(errs...)
	metrics.ObserveSweep(time.Since(started), res.counts())
	endSpan(span, err)
	if res != (SweepResult{}) {
		s.logger.Info("sweep finished",
			slog.Int("expired", res.Expired),
			slog.Int("no_shows", res.NoShows),
			slog.Int("checked_in_expired", res.CheckedInExpired),
			slog.Int("reminders", res.Reminders),
			slog.Int("pickup_notices", res.PickupNotices),
			slog.Int("overdue_reminders", res.OverdueReminders),
			slog.Int("failures", res.Failures),
		)
	}
	return res, err
}

// sweepReservations moves every reservation in status `from` that ended at or
// before endedBy through apply.
func (s *Service) sweepReservations(ctx context.Context, from model.ReservationStatus, endedBy time.Time,
	counter, failures *int, apply func(r *model.Reservation) ([]queue.Event, error),
) error {
	rows, err := s.store.ListReservations(ctx, repository.ReservationFilter{
		Statuses:   []model.ReservationStatus{from},
		EndsBefore: &endedBy,
	})
	if err != nil {
		return err
	}
	for _, row := range rows {
		changed, err := s.sweepReservation(ctx, row.ID, func(r *model.Reservation) (bool, []queue.Event, error) {
			if r.Status != from || r.End.After(endedBy) {
				return false, nil, nil
			}
			events, err := apply(r)
			return err == nil, events, err
		})
		if err != nil {
			*failures++
			s.logger.Warn("sweep transition failed",
				slog.Uint64("reservation_id", row.ID),
				slog.String("from", string(from)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if changed {
			*counter++
		}
	}
	return nil
}

// sweepReservation locks one reservation and saves it if fn reports a change.
func (s *Service) sweepReservation(ctx context.Context, id uint64, fn func(r *model.Reservation) (bool, []queue.Event, error)) (bool, error) {
	var (
		changed bool
		events  []queue.Event
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, id)
		if err != nil {
			return err
		}
		changed, events, err = fn(r)
		if err != nil || !changed {
			return err
		}
		return tx.UpdateReservation(ctx, r)
	})
	if err != nil {
		return false, err
	}
	s.notify(ctx, events...)
	return changed, nil
}

func (s *Service) sweepReminders(ctx context.Context, now time.Time, res *SweepResult) error {
	horizon := now.Add(s.cfg.ReminderLead)
	rows, err := s.store.ListReservations(ctx, repository.ReservationFilter{
		Statuses:     []model.ReservationStatus{model.ReservationConfirmed},
		StartsBefore: &horizon,
	})
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.ReminderSentAt != nil || !row.Start.After(now) {
			continue
		}
		changed, err := s.sweepReservation(ctx, row.ID, func(r *model.Reservation) (bool, []queue.Event, error) {
			if r.Status != model.ReservationConfirmed || r.ReminderSentAt != nil || !r.Start.After(now) {
				return false, nil, nil
			}
			at := now
			r.ReminderSentAt = &at
			return true, []queue.Event{reservationEvent(queue.ReservationReminder, r, now)}, nil
		})
		if err != nil {
			res.Failures++
			continue
		}
		if changed {
			res.Reminders++
		}
	}
	return nil
}

func (s *Service) sweepPickupNotices(ctx context.Context, now time.Time, res *SweepResult) error {
	opened := now.Add(model.CheckInOpensBefore)
	rows, err := s.store.ListReservations(ctx, repository.ReservationFilter{
		Statuses:     []model.ReservationStatus{model.ReservationConfirmed},
		StartsBefore: &opened,
	})
	if err != nil {
		return err
	}
	keyRequired := map[uint64]bool{}
	for _, row := range rows {
		if row.PickupNoticeSentAt != nil || row.KeyPickedUp || !row.InCheckInWindow(now) {
			continue
		}
		required, seen := keyRequired[row.ResourceID]
		if !seen {
			r, err := s.resource(ctx, row.ResourceID)
			if err != nil {
				res.Failures++
				continue
			}
			required = r.KeyRequired
			keyRequired[row.ResourceID] = required
		}
		if !required {
			continue
		}
		changed, err := s.sweepReservation(ctx, row.ID, func(r *model.Reservation) (bool, []queue.Event, error) {
			if r.Status != model.ReservationConfirmed || r.PickupNoticeSentAt != nil || r.KeyPickedUp || !r.InCheckInWindow(now) {
				return false, nil, nil
			}
			at := now
			r.PickupNoticeSentAt = &at
			return true, []queue.Event{reservationEvent(queue.KeyPickupReady, r, now)}, nil
		})
		if err != nil {
			res.Failures++
			continue
		}
		if changed {
			res.PickupNotices++
		}
	}
	return nil
}

func (s *Service) sweepOverdueAssignments(ctx context.Context, now time.Time, res *SweepResult) error {
	rows, err := s.store.ListAssignments(ctx, repository.AssignmentFilter{
		Statuses:  []model.AssignmentStatus{model.AssignmentActive},
		DueBefore: &now,
	})
	if err != nil {
		return err
	}
	due := func(a *model.KeyAssignment) bool {
		return a.IsOverdue(now) &&
			(a.LastReminderAt == nil || now.Sub(*a.LastReminderAt) >= s.cfg.OverdueReminderEvery)
	}
	for _, row := range rows {
		if !due(&row) {
			continue
		}
		var ev *queue.Event
		err := s.store.InTx(ctx, func(tx repository.Tx) error {
			a, err := tx.LockAssignment(ctx, row.ID)
			if err != nil {
				return err
			}
			if !due(a) {
				return nil
			}
			at := now
			a.LastReminderAt = &at
			if err := tx.UpdateAssignment(ctx, a); err != nil {
				return err
			}
			e := queue.NewEvent(queue.KeyOverdue, a.UserID, now)
			e.KeyID, e.AssignmentID = a.KeyID, a.ID
			if a.ReservationID != nil {
				e.ReservationID = *a.ReservationID
			}
			fine := OverdueFine(a.ExpectedReturn, now)
			e.Amount = &fine
			e.EndsAt = a.ExpectedReturn
			ev = &e
			return nil
		})
		if err != nil {
			res.Failures++
			s.logger.Warn("overdue reminder failed", slog.Uint64("assignment_id", row.ID), slog.String("error", err.Error()))
			continue
		}
		if ev != nil {
			s.notify(ctx, *ev)
			res.OverdueReminders++
		}
	}
	return nil
}
