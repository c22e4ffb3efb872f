package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/middleware"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// resourceRequest is the body of POST and PUT /v1/resources. Omitted policy
// fields fall back to the type defaults on create; the nullable ones may be
// set to zero or false explicitly.
type resourceRequest struct {
	Name             string           `json:"name" validate:"required,max=120"`
	Type             string           `json:"type" validate:"required,resource_type"`
	Capacity         int              `json:"capacity" validate:"gte=0"`
	OpenTime         string           `json:"open_time" validate:"omitempty,clock"`
	CloseTime        string           `json:"close_time" validate:"omitempty,clock"`
	Weekdays         []int            `json:"weekdays" validate:"omitempty,dive,min=0,max=6"`
	KeyRequired      bool             `json:"key_required"`
	KeyLocation      string           `json:"key_location" validate:"max=120"`
	DefaultDuration  int              `json:"default_duration" validate:"gte=0"`
	MinDuration      int              `json:"min_duration" validate:"gte=0"`
	MaxDuration      int              `json:"max_duration" validate:"gte=0"`
	DailyQuota       int              `json:"daily_quota" validate:"gte=0"`
	MaxAdvanceDays   int              `json:"max_advance_days" validate:"gte=0"`
	RequiresApproval *bool            `json:"requires_approval"`
	CostPerHour      *decimal.Decimal `json:"cost_per_hour"`
	Deposit          *decimal.Decimal `json:"deposit"`
	LateFeePerUnit   *decimal.Decimal `json:"late_fee_per_unit"`
}

// toModel returns the resource and the policy fields the request set.
func (req resourceRequest) toModel() (*model.Resource, model.ResourcePolicy) {
	var set model.ResourcePolicy
	r := &model.Resource{
		Name:             req.Name,
		Type:             model.ResourceType(req.Type),
		Capacity:         req.Capacity,
		Active:           true,
		KeyRequired:      req.KeyRequired,
		KeyLocation:      req.KeyLocation,
		DefaultDuration:  req.DefaultDuration,
		MinDuration:      req.MinDuration,
		MaxDuration:      req.MaxDuration,
		DailyQuota:       req.DailyQuota,
		MaxAdvanceDays:   req.MaxAdvanceDays,
	}
	if req.RequiresApproval != nil {
		r.RequiresApproval = *req.RequiresApproval
		set |= model.PolicyRequiresApproval
	}
	if req.CostPerHour != nil {
		r.CostPerHour = *req.CostPerHour
		set |= model.PolicyCostPerHour
	}
	if req.Deposit != nil {
		r.Deposit = *req.Deposit
		set |= model.PolicyDeposit
	}
	if req.LateFeePerUnit != nil {
		r.LateFeePerUnit = *req.LateFeePerUnit
		set |= model.PolicyLateFeePerUnit
	}
	if req.OpenTime != "" || req.CloseTime != "" || len(req.Weekdays) > 0 {
		h := model.AlwaysOpen
		// both already passed the clock tag
		if req.OpenTime != "" {
			h.OpenMinute, _ = model.ParseClock(req.OpenTime)
		}
		if req.CloseTime != "" {
			h.CloseMinute, _ = model.ParseClock(req.CloseTime)
		}
		if len(req.Weekdays) > 0 {
			days := make([]time.Weekday, 0, len(req.Weekdays))
			for _, d := range req.Weekdays {
				days = append(days, time.Weekday(d))
			}
			h.Weekdays = model.NewWeekdaySet(days...)
		}
		r.Hours = h
	}
	return r, set
}

// ListResources handles GET /v1/resources. Staff may pass ?all=true to see
// inactive resources too.
func (h *Handler) ListResources(c echo.Context) error {
	activeOnly := true
	if a, ok := middleware.ActorFrom(c); ok && a.IsStaff() && c.QueryParam("all") == "true" {
		activeOnly = false
	}
	rs, err := h.svc.ListResources(c.Request().Context(), activeOnly)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, rs)
}

// GetResource handles GET /v1/resources/:id.
func (h *Handler) GetResource(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	r, err := h.svc.GetResource(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ResourceReservations handles GET /v1/resources/:id/reservations?from&to.
func (h *Handler) ResourceReservations(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return h.fail(c, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return h.fail(c, err)
	}
	out, err := h.svc.ListReservations(c.Request().Context(), id, from, to)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// CreateResource handles POST /v1/resources.
func (h *Handler) CreateResource(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req resourceRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	m, set := req.toModel()
	r, err := h.svc.CreateResource(c.Request().Context(), a, m, set)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// UpdateResource handles PUT /v1/resources/:id.
func (h *Handler) UpdateResource(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req resourceRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	m, _ := req.toModel()
	m.ID = id
	r, err := h.svc.UpdateResource(c.Request().Context(), a, m)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// SetResourceActive handles PATCH /v1/resources/:id/active.
func (h *Handler) SetResourceActive(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var body struct {
		Active *bool `json:"active" validate:"required"`
	}
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	r, err := h.svc.SetResourceActive(c.Request().Context(), a, id, *body.Active)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
