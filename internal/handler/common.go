// Package handler exposes the booking and key custody service over HTTP.
// Handlers bind and validate input, take the caller from the JWT middleware
// and render failures as {"error", "code", "details"}.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/middleware"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/service"
)

// Handler serves every /v1 route on top of one Service.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New returns a Handler. A nil logger falls back to slog.Default.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

var kindStatus = map[service.Kind]int{
	service.KindValidation: http.StatusBadRequest,
	service.KindConflict:   http.StatusConflict,
	service.KindQuota:      http.StatusUnprocessableEntity,
	service.KindState:      http.StatusConflict,
	service.KindNotFound:   http.StatusNotFound,
	service.KindForbidden:  http.StatusForbidden,
}

// StatusFor maps a service error kind to its HTTP status.
func StatusFor(k service.Kind) int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// requestError is a failure detected before the service is called.
type requestError struct {
	status int
	body   ErrorBody
}

func (e *requestError) Error() string { return e.body.Error }

func invalid(msg string, details map[string]any) error {
	return &requestError{status: http.StatusBadRequest, body: ErrorBody{Error: msg, Code: string(service.KindValidation), Details: details}}
}

var errUnauthorized = &requestError{status: http.StatusUnauthorized, body: ErrorBody{Error: "unauthorized", Code: "UNAUTHORIZED"}}

// fail renders err. Anything that is not a request or service error is
// logged and hidden behind a 500.
func (h *Handler) fail(c echo.Context, err error) error {
	var re *requestError
	if errors.As(err, &re) {
		return c.JSON(re.status, re.body)
	}
	var se *service.Error
	if errors.As(err, &se) {
		return c.JSON(StatusFor(se.Kind), ErrorBody{Error: se.Message, Code: string(se.Kind), Details: se.Details})
	}
	h.logger.Error("request failed",
		slog.String("method", c.Request().Method),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal error", Code: "INTERNAL"})
}

// bind decodes the body into dst and runs the struct validator.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return invalid("invalid request body", nil)
	}
	if err := c.Validate(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fe.Field())
			}
			return invalid("invalid "+ve[0].Field()+": failed "+ve[0].Tag(), map[string]any{"fields": fields})
		}
		return invalid(err.Error(), nil)
	}
	return nil
}

func actor(c echo.Context) (model.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, errUnauthorized
	}
	return a, nil
}

func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, invalid("invalid id", map[string]any{"field": "id"})
	}
	return id, nil
}

// queryID returns 0 when the parameter is absent.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, invalid("invalid "+name, map[string]any{"field": name})
	}
	return id, nil
}

func queryTime(c echo.Context, name string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.QueryParam(name))
	if err != nil {
		return time.Time{}, invalid(name+" must be an RFC 3339 timestamp", map[string]any{"field": name})
	}
	return t, nil
}

// queryList splits a comma separated parameter and drops blanks.
func queryList(c echo.Context, name string) []string {
	var out []string
	for _, p := range strings.Split(c.QueryParam(name), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
