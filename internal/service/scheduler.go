package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

// BookingRequest asks for [Start, End) on a resource.
type BookingRequest struct {
	ResourceID  uint64
	Start       time.Time
	End         time.Time
	PeopleCount int
	Notes       string
}

// CreateReservation validates the request against the resource policy and the
// requester's quota, checks for overlapping bookings and stores the
// reservation. The whole check-then-insert runs under the resource row lock.
func (s *Service) CreateReservation(ctx context.Context, requester model.Actor, req BookingRequest) (res *model.Reservation, err error) {
	const op = "CreateReservation"
	ctx, span := s.startSpan(ctx, op, attribute.Int64("resource.id", int64(req.ResourceID)))
	defer func() {
		metrics.ObserveReservationOp(op, resultLabel(err))
		endSpan(span, err)
	}()

	if requester.UserID == 0 {
		return nil, forbiddenError(op, "an authenticated user is required")
	}
	if req.PeopleCount == 0 {
		req.PeopleCount = 1
	}
	now := s.now()
	start, end := req.Start.UTC(), req.End.UTC()

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		resource, err := tx.LockResource(ctx, req.ResourceID)
		if err != nil {
			return translate(op, "resource", req.ResourceID, err)
		}
		if !resource.Active {
			return notFoundError(op, "resource", req.ResourceID).With("reason", "inactive")
		}
		if err := s.checkBookingPolicy(op, resource, start, end, req.PeopleCount, now); err != nil {
			return err
		}

		dayStart, dayEnd := s.localDay(start)
		n, err := tx.CountUserReservations(ctx, resource.ID, requester.UserID, dayStart, dayEnd, model.QuotaExemptStatuses)
		if err != nil {
			return translate(op, "reservation", 0, err)
		}
		if n >= resource.DailyQuota {
			return quotaError(op, "daily limit of %d reservations reached for this resource", resource.DailyQuota).
				With("daily_quota", resource.DailyQuota).
				With("day", dayStart.In(s.cfg.Location).Format(time.DateOnly))
		}

		overlapping, err := tx.OverlappingReservations(ctx, resource.ID, start, end, model.BlockingStatuses)
		if err != nil {
			return translate(op, "reservation", 0, err)
		}
		if len(overlapping) > 0 {
			ids := make([]uint64, 0, len(overlapping))
			for _, o := range overlapping {
				ids = append(ids, o.ID)
			}
			return conflictError(op, "the requested time overlaps an existing reservation").With("conflicts", ids)
		}

		status := model.ReservationConfirmed
		if resource.RequiresApproval {
			status = model.ReservationPending
		}
		res = &model.Reservation{
			Reference:     uuid.NewString(),
			ResourceID:    resource.ID,
			UserID:        requester.UserID,
			Start:         start,
			End:           end,
			Status:        status,
			PeopleCount:   req.PeopleCount,
			Cost:          ReservationCost(resource.CostPerHour, resource.Deposit, end.Sub(start)),
			DepositAmount: resource.Deposit,
			LateFeeRate:   resource.LateFeePerUnit,
			Notes:         req.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.InsertReservation(ctx, res)
	})
	if err != nil {
		return nil, translate(op, "reservation", 0, err)
	}

	evType := queue.ReservationConfirmed
	if res.Status == model.ReservationPending {
		evType = queue.ReservationPending
	}
	s.notify(ctx, reservationEvent(evType, res, now))
	s.logger.Info("reservation created",
		slog.Uint64("reservation_id", res.ID),
		slog.Uint64("resource_id", res.ResourceID),
		slog.Uint64("user_id", res.UserID),
		slog.String("status", string(res.Status)),
	)
	return res, nil
}

// checkBookingPolicy enforces the per-resource rules on a requested interval.
func (s *Service) checkBookingPolicy(op string, r *model.Resource, start, end time.Time, people int, now time.Time) error {
	if !start.After(now) {
		return validationError(op, "start", "start must be in the future")
	}
	if !end.After(start) {
		return validationError(op, "end", "end must be after start")
	}
	d := end.Sub(start)
	minD := time.Duration(r.MinDuration) * time.Minute
	maxD := time.Duration(r.MaxDuration) * time.Minute
	if d < minD || d > maxD {
		return validationError(op, "end", "duration must be between %d and %d minutes", r.MinDuration, r.MaxDuration).
			With("min_duration", r.MinDuration).
			With("max_duration", r.MaxDuration)
	}
	if horizon := now.AddDate(0, 0, r.MaxAdvanceDays); start.After(horizon) {
		return validationError(op, "start", "bookings open at most %d days in advance", r.MaxAdvanceDays).
			With("max_advance_days", r.MaxAdvanceDays)
	}
	if people < 1 || people > r.Capacity {
		return validationError(op, "people_count", "people count must be between 1 and %d", r.Capacity).
			With("capacity", r.Capacity)
	}
	if !r.Hours.Contains(start, end, s.cfg.Location) {
		return validationError(op, "start", "outside operating hours %s-%s",
			model.FormatClock(r.Hours.OpenMinute), model.FormatClock(r.Hours.CloseMinute))
	}
	return nil
}

// localDay returns the facility-local calendar day containing t as UTC bounds.
func (s *Service) localDay(t time.Time) (time.Time, time.Time) {
	lt := t.In(s.cfg.Location)
	dayStart := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, s.cfg.Location)
	return dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC()
}

func reservationEvent(t queue.EventType, r *model.Reservation, at time.Time) queue.Event {
	ev := queue.NewEvent(t, r.UserID, at)
	ev.ReservationID = r.ID
	ev.ResourceID = r.ResourceID
	start, end := r.Start, r.End
	ev.StartsAt, ev.EndsAt = &start, &end
	return ev
}
