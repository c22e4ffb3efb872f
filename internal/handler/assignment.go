package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/service"
)

// assignmentView adds the outstanding balance to an assignment.
type assignmentView struct {
	*model.KeyAssignment
	AmountOwed decimal.Decimal `json:"amount_owed"`
}

func viewAssignment(a *model.KeyAssignment) *assignmentView {
	if a == nil {
		return nil
	}
	return &assignmentView{KeyAssignment: a, AmountOwed: service.TotalAmountOwed(a)}
}

func viewAssignments(in []model.KeyAssignment) []*assignmentView {
	out := make([]*assignmentView, 0, len(in))
	for i := range in {
		out = append(out, viewAssignment(&in[i]))
	}
	return out
}

// ListAssignments handles GET /v1/assignments. ?overdue=true ignores the
// other filters and returns active assignments past their due time.
func (h *Handler) ListAssignments(c echo.Context) error {
	ctx := c.Request().Context()
	if c.QueryParam("overdue") == "true" {
		out, err := h.svc.ListOverdueAssignments(ctx)
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(http.StatusOK, viewAssignments(out))
	}
	var (
		f   repository.AssignmentFilter
		err error
	)
	if f.KeyID, err = queryID(c, "key_id"); err != nil {
		return h.fail(c, err)
	}
	if f.UserID, err = queryID(c, "user_id"); err != nil {
		return h.fail(c, err)
	}
	if f.ReservationID, err = queryID(c, "reservation_id"); err != nil {
		return h.fail(c, err)
	}
	for _, raw := range queryList(c, "status") {
		st := model.AssignmentStatus(raw)
		switch st {
		case model.AssignmentActive, model.AssignmentReturned, model.AssignmentLost:
		default:
			return h.fail(c, invalid("unknown status "+raw, map[string]any{"field": "status"}))
		}
		f.Statuses = append(f.Statuses, st)
	}
	out, err := h.svc.ListAssignments(ctx, f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, viewAssignments(out))
}

// GetAssignment handles GET /v1/assignments/:id.
func (h *Handler) GetAssignment(c echo.Context) error {
	return h.assignmentAction(c, func(_ model.Actor, id uint64) (*model.KeyAssignment, error) {
		return h.svc.GetAssignment(c.Request().Context(), id)
	})
}

// ReturnAssignment handles POST /v1/assignments/:id/return.
func (h *Handler) ReturnAssignment(c echo.Context) error {
	var body keyReturnRequest
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	return h.assignmentAction(c, func(a model.Actor, id uint64) (*model.KeyAssignment, error) {
		return h.svc.ReturnKey(c.Request().Context(), a, id, body.condition(), body.Notes)
	})
}

// ReportAssignmentLost handles POST /v1/assignments/:id/lost.
func (h *Handler) ReportAssignmentLost(c echo.Context) error {
	return h.assignmentAction(c, func(a model.Actor, id uint64) (*model.KeyAssignment, error) {
		return h.svc.ReportLost(c.Request().Context(), a, id)
	})
}

// ExtendAssignment handles POST /v1/assignments/:id/extend.
func (h *Handler) ExtendAssignment(c echo.Context) error {
	var body struct {
		ExpectedReturn time.Time `json:"expected_return" validate:"required"`
		Reason         string    `json:"reason" validate:"max=500"`
	}
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	return h.assignmentAction(c, func(a model.Actor, id uint64) (*model.KeyAssignment, error) {
		return h.svc.ExtendAssignment(c.Request().Context(), a, id, body.ExpectedReturn, body.Reason)
	})
}

func (h *Handler) assignmentAction(c echo.Context, fn func(a model.Actor, id uint64) (*model.KeyAssignment, error)) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	out, err := fn(a, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, viewAssignment(out))
}
