package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/service"
)

type bookingRequest struct {
	ResourceID  uint64    `json:"resource_id" validate:"required"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
	PeopleCount int       `json:"people_count" validate:"gte=0"`
	Notes       string    `json:"notes" validate:"max=500"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type keyReturnRequest struct {
	Condition string `json:"condition" validate:"omitempty,condition"`
	Notes     string `json:"notes" validate:"max=500"`
}

func (r keyReturnRequest) condition() model.ReturnCondition {
	if r.Condition == "" {
		return model.ConditionGood
	}
	return model.ReturnCondition(strings.ToUpper(r.Condition))
}

// custodyResponse pairs a reservation with the key assignment it drove.
type custodyResponse struct {
	Reservation *model.Reservation `json:"reservation"`
	Assignment  *assignmentView    `json:"assignment"`
}

// CreateReservation handles POST /v1/reservations.
func (h *Handler) CreateReservation(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req bookingRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	res, err := h.svc.CreateReservation(c.Request().Context(), a, service.BookingRequest{
		ResourceID:  req.ResourceID,
		Start:       req.Start,
		End:         req.End,
		PeopleCount: req.PeopleCount,
		Notes:       req.Notes,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// MyReservations handles GET /v1/reservations/me?status=CONFIRMED,CHECKED_IN.
func (h *Handler) MyReservations(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var statuses []model.ReservationStatus
	for _, raw := range queryList(c, "status") {
		st, ok := model.ParseReservationStatus(raw)
		if !ok {
			return h.fail(c, invalid("unknown status "+raw, map[string]any{"field": "status"}))
		}
		statuses = append(statuses, st)
	}
	out, err := h.svc.ListUserReservations(c.Request().Context(), a.UserID, statuses...)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetReservation handles GET /v1/reservations/:id.
func (h *Handler) GetReservation(c echo.Context) error {
	return h.reservationAction(c, func(a model.Actor, id uint64) (*model.Reservation, error) {
		return h.svc.GetReservation(c.Request().Context(), a, id)
	})
}

// CancelReservation handles POST /v1/reservations/:id/cancel.
func (h *Handler) CancelReservation(c echo.Context) error {
	var body reasonRequest
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	return h.reservationAction(c, func(a model.Actor, id uint64) (*model.Reservation, error) {
		return h.svc.CancelReservation(c.Request().Context(), a, id, body.Reason)
	})
}

// RejectReservation handles POST /v1/reservations/:id/reject.
func (h *Handler) RejectReservation(c echo.Context) error {
	var body reasonRequest
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	return h.reservationAction(c, func(a model.Actor, id uint64) (*model.Reservation, error) {
		return h.svc.RejectReservation(c.Request().Context(), a, id, body.Reason)
	})
}

// ApproveReservation handles POST /v1/reservations/:id/approve.
func (h *Handler) ApproveReservation(c echo.Context) error {
	return h.reservationAction(c, func(a model.Actor, id uint64) (*model.Reservation, error) {
		return h.svc.ApproveReservation(c.Request().Context(), a, id)
	})
}

// CheckIn handles POST /v1/reservations/:id/check-in.
func (h *Handler) CheckIn(c echo.Context) error {
	return h.reservationAction(c, func(a model.Actor, id uint64) (*model.Reservation, error) {
		return h.svc.CheckIn(c.Request().Context(), a, id)
	})
}

// CompleteReservation handles POST /v1/reservations/:id/complete.
func (h *Handler) CompleteReservation(c echo.Context) error {
	return h.reservationAction(c, func(a model.Actor, id uint64) (*model.Reservation, error) {
		return h.svc.Complete(c.Request().Context(), a, id)
	})
}

// PickUpKey handles POST /v1/reservations/:id/key/pickup.
func (h *Handler) PickUpKey(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	res, asg, err := h.svc.PickUpKeyForReservation(c.Request().Context(), a, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, custodyResponse{Reservation: res, Assignment: viewAssignment(asg)})
}

// ReturnReservationKey handles POST /v1/reservations/:id/key/return.
func (h *Handler) ReturnReservationKey(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var body keyReturnRequest
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	res, asg, err := h.svc.ReturnKeyForReservation(c.Request().Context(), a, id, body.condition(), body.Notes)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, custodyResponse{Reservation: res, Assignment: viewAssignment(asg)})
}

// reservationAction resolves the caller and :id, runs fn and renders the
// resulting reservation.
func (h *Handler) reservationAction(c echo.Context, fn func(a model.Actor, id uint64) (*model.Reservation, error)) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	res, err := fn(a, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
