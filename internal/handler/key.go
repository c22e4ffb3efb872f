package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/service"
)

type keyRequest struct {
	Code                string           `json:"code" validate:"required,max=40"`
	Type                string           `json:"type" validate:"required,key_type"`
	ResourceID          *uint64          `json:"resource_id"`
	DepositAmount       *decimal.Decimal `json:"deposit_amount"`
	ReplacementCost     *decimal.Decimal `json:"replacement_cost"`
	MaxIssueHours       int              `json:"max_issue_hours" validate:"gte=0"`
	PermanentAssignment *bool            `json:"permanent_assignment"`
	NextMaintenanceAt   *time.Time       `json:"next_maintenance_at"`
	Notes               string           `json:"notes" validate:"max=500"`
}

type issueRequest struct {
	UserID uint64 `json:"user_id" validate:"required"`
	Type   string `json:"type" validate:"omitempty,assignment_type"`
	Notes  string `json:"notes" validate:"max=500"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

// CreateKey handles POST /v1/keys.
func (h *Handler) CreateKey(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req keyRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	k := &model.Key{
		Code:              req.Code,
		Type:              model.KeyType(req.Type),
		ResourceID:        req.ResourceID,
		MaxIssueHours:     req.MaxIssueHours,
		NextMaintenanceAt: req.NextMaintenanceAt,
		Notes:             req.Notes,
	}
	var set model.KeyPolicy
	if req.DepositAmount != nil {
		k.DepositAmount = *req.DepositAmount
		set |= model.KeyPolicyDeposit
	}
	if req.PermanentAssignment != nil {
		k.PermanentAssignment = *req.PermanentAssignment
		set |= model.KeyPolicyPermanent
	}
	if req.ReplacementCost != nil {
		k.ReplacementCost = *req.ReplacementCost
	}
	out, err := h.svc.CreateKey(c.Request().Context(), a, k, set)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// ListKeys handles GET /v1/keys?resource_id&type&status.
func (h *Handler) ListKeys(c echo.Context) error {
	resourceID, err := queryID(c, "resource_id")
	if err != nil {
		return h.fail(c, err)
	}
	f := repository.KeyFilter{ResourceID: resourceID}
	if raw := c.QueryParam("type"); raw != "" {
		t, ok := model.ParseKeyType(raw)
		if !ok {
			return h.fail(c, invalid("unknown key type "+raw, map[string]any{"field": "type"}))
		}
		f.Type = t
	}
	for _, raw := range queryList(c, "status") {
		st, ok := model.ParseKeyStatus(raw)
		if !ok {
			return h.fail(c, invalid("unknown status "+raw, map[string]any{"field": "status"}))
		}
		f.Statuses = append(f.Statuses, st)
	}
	out, err := h.svc.ListKeys(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// KeysNeedingAttention handles GET /v1/keys/attention.
func (h *Handler) KeysNeedingAttention(c echo.Context) error {
	out, err := h.svc.ListKeysNeedingAttention(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetKey handles GET /v1/keys/:id.
func (h *Handler) GetKey(c echo.Context) error {
	return h.keyAction(c, func(_ model.Actor, id uint64) (*model.Key, error) {
		return h.svc.GetKey(c.Request().Context(), id)
	})
}

// ReserveKey handles POST /v1/keys/:id/reserve.
func (h *Handler) ReserveKey(c echo.Context) error {
	return h.keyAction(c, func(a model.Actor, id uint64) (*model.Key, error) {
		return h.svc.ReserveKey(c.Request().Context(), a, id)
	})
}

// ReleaseKey handles POST /v1/keys/:id/release.
func (h *Handler) ReleaseKey(c echo.Context) error {
	return h.keyAction(c, func(a model.Actor, id uint64) (*model.Key, error) {
		return h.svc.ReleaseKey(c.Request().Context(), a, id)
	})
}

// ReportKeyLost handles POST /v1/keys/:id/lost.
func (h *Handler) ReportKeyLost(c echo.Context) error {
	return h.keyAction(c, func(a model.Actor, id uint64) (*model.Key, error) {
		return h.svc.ReportKeyLost(c.Request().Context(), a, id)
	})
}

// ReportKeyDamaged handles POST /v1/keys/:id/damaged.
func (h *Handler) ReportKeyDamaged(c echo.Context) error {
	var body notesRequest
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	return h.keyAction(c, func(a model.Actor, id uint64) (*model.Key, error) {
		return h.svc.ReportKeyDamaged(c.Request().Context(), a, id, body.Notes)
	})
}

// PutKeyOutOfService handles POST /v1/keys/:id/out-of-service.
func (h *Handler) PutKeyOutOfService(c echo.Context) error {
	var body notesRequest
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	return h.keyAction(c, func(a model.Actor, id uint64) (*model.Key, error) {
		return h.svc.PutKeyOutOfService(c.Request().Context(), a, id, body.Notes)
	})
}

// RestoreKey handles POST /v1/keys/:id/restore.
func (h *Handler) RestoreKey(c echo.Context) error {
	var body struct {
		NextMaintenanceAt *time.Time `json:"next_maintenance_at"`
	}
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	return h.keyAction(c, func(a model.Actor, id uint64) (*model.Key, error) {
		return h.svc.RestoreKey(c.Request().Context(), a, id, body.NextMaintenanceAt)
	})
}

// RetireKey handles POST /v1/keys/:id/retire.
func (h *Handler) RetireKey(c echo.Context) error {
	return h.keyAction(c, func(a model.Actor, id uint64) (*model.Key, error) {
		return h.svc.RetireKey(c.Request().Context(), a, id)
	})
}

// IssueKey handles POST /v1/keys/:id/issue.
func (h *Handler) IssueKey(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var body issueRequest
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	asg, err := h.svc.IssueKey(c.Request().Context(), a, service.IssueRequest{
		KeyID:  id,
		UserID: body.UserID,
		Type:   model.AssignmentType(strings.ToUpper(body.Type)),
		Notes:  body.Notes,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, viewAssignment(asg))
}

func (h *Handler) keyAction(c echo.Context, fn func(a model.Actor, id uint64) (*model.Key, error)) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	k, err := fn(a, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, k)
}
