package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/auth"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/middleware"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository/memstore"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/service"
)

const secret = "handler-test"

// Monday 08:00 UTC.
var now = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

var (
	staff    = model.Actor{UserID: 900, Role: model.RoleStaff}
	resident = model.Actor{UserID: 42, Role: model.RoleResident}
)

type api struct {
	t     *testing.T
	e     *echo.Echo
	clock *clockwork.FakeClock
}

func newAPI(t *testing.T) *api {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(now)
	svc := service.New(memstore.New(), service.WithClock(clock), service.WithLogger(logger))
	h := New(svc, logger)

	e := echo.New()
	e.Validator = NewValidator()
	e.GET("/v1/resources/:id/reservations", h.ResourceReservations)
	g := e.Group("/v1", middleware.JWTAuth(secret))
	g.POST("/resources", h.CreateResource)
	g.PATCH("/resources/:id/active", h.SetResourceActive)
	g.POST("/reservations", h.CreateReservation)
	g.GET("/reservations/me", h.MyReservations)
	g.GET("/reservations/:id", h.GetReservation)
	g.POST("/reservations/:id/cancel", h.CancelReservation)
	g.POST("/keys", h.CreateKey)
	g.POST("/keys/:id/issue", h.IssueKey)
	g.GET("/assignments", h.ListAssignments)
	g.POST("/assignments/:id/return", h.ReturnAssignment)
	return &api{t: t, e: e, clock: clock}
}

func (a *api) do(method, path string, who *model.Actor, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if who != nil {
		tok, err := auth.Sign(secret, *who, time.Hour, time.Now())
		require.NoError(a.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *api) laundry() uint64 {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/resources", &staff,
		`{"name":"Laundry B1","type":"laundry_room","open_time":"07:00","close_time":"22:00","weekdays":[1,2,3,4,5]}`)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Resource](a.t, rec).ID
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind service.Kind
		want int
	}{
		{service.KindValidation, http.StatusBadRequest},
		{service.KindConflict, http.StatusConflict},
		{service.KindQuota, http.StatusUnprocessableEntity},
		{service.KindState, http.StatusConflict},
		{service.KindNotFound, http.StatusNotFound},
		{service.KindForbidden, http.StatusForbidden},
		{service.Kind("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StatusFor(tc.kind), tc.kind)
	}
}

func TestFail(t *testing.T) {
	h := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := echo.New()

	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{
			name: "service error",
			err:  &service.Error{Kind: service.KindQuota, Message: "daily limit reached", Details: map[string]any{"daily_quota": 2}},
			code: http.StatusUnprocessableEntity,
			body: `{"error":"daily limit reached","code":"QUOTA","details":{"daily_quota":2}}`,
		},
		{
			name: "request error",
			err:  invalid("invalid id", map[string]any{"field": "id"}),
			code: http.StatusBadRequest,
			body: `{"error":"invalid id","code":"VALIDATION","details":{"field":"id"}}`,
		},
		{
			name: "unknown error",
			err:  errors.New("db exploded"),
			code: http.StatusInternalServerError,
			body: `{"error":"internal error","code":"INTERNAL"}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			require.NoError(t, h.fail(c, tc.err))
			assert.Equal(t, tc.code, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestCreateResourceMapsHoursAndDefaults(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/resources", &staff,
		`{"name":"Study 2","type":"STUDY_ROOM","open_time":"08:30","close_time":"24:00","weekdays":[0,6],"cost_per_hour":"1.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	r := decode[model.Resource](t, rec)
	assert.Equal(t, model.ResourceStudyRoom, r.Type)
	assert.Equal(t, 510, r.Hours.OpenMinute)
	assert.Equal(t, model.MinutesPerDay, r.Hours.CloseMinute)
	assert.Equal(t, model.NewWeekdaySet(time.Sunday, time.Saturday), r.Hours.Weekdays)
	assert.Equal(t, "1.5", r.CostPerHour.String())
	assert.Equal(t, 120, r.DefaultDuration)
	assert.True(t, r.Active)
}

func TestCreateKeepsExplicitZeroPolicy(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/resources", &staff, `{"name":"Music 1","type":"MUSIC_ROOM","cost_per_hour":"0","deposit":"0"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	free := decode[model.Resource](t, rec)
	assert.True(t, free.CostPerHour.IsZero(), free.CostPerHour.String())
	assert.True(t, free.Deposit.IsZero(), free.Deposit.String())

	rec = a.do(http.MethodPost, "/v1/resources", &staff, `{"name":"Music 2","type":"MUSIC_ROOM"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "5", decode[model.Resource](t, rec).CostPerHour.String())

	rec = a.do(http.MethodPost, "/v1/resources", &staff, `{"name":"Meeting 1","type":"MEETING_ROOM","requires_approval":false}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, decode[model.Resource](t, rec).RequiresApproval)

	rec = a.do(http.MethodPost, "/v1/resources", &staff, `{"name":"Meeting 2","type":"MEETING_ROOM"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[model.Resource](t, rec).RequiresApproval)

	rec = a.do(http.MethodPost, "/v1/keys", &staff, `{"code":"ROOM-9","type":"ROOM","deposit_amount":"0","permanent_assignment":false}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	key := decode[model.Key](t, rec)
	assert.True(t, key.DepositAmount.IsZero())
	assert.False(t, key.PermanentAssignment)
}

func TestCreateResourceRejectsBadInput(t *testing.T) {
	a := newAPI(t)
	tests := []struct {
		name  string
		who   *model.Actor
		body  string
		code  int
		field string
	}{
		{"unknown type", &staff, `{"name":"X","type":"SAUNA"}`, http.StatusBadRequest, "type"},
		{"bad clock", &staff, `{"name":"X","type":"GYM","open_time":"7am"}`, http.StatusBadRequest, "open_time"},
		{"bad weekday", &staff, `{"name":"X","type":"GYM","weekdays":[7]}`, http.StatusBadRequest, "weekdays[0]"},
		{"missing name", &staff, `{"type":"GYM"}`, http.StatusBadRequest, "name"},
		{"resident", &resident, `{"name":"X","type":"GYM"}`, http.StatusForbidden, ""},
		{"no token", nil, `{"name":"X","type":"GYM"}`, http.StatusUnauthorized, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/v1/resources", tc.who, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			if tc.field != "" {
				body := decode[ErrorBody](t, rec)
				assert.Equal(t, "VALIDATION", body.Code)
				assert.Contains(t, body.Details["fields"], tc.field)
			}
		})
	}
}

func TestReservationFlow(t *testing.T) {
	a := newAPI(t)
	id := a.laundry()

	body := `{"resource_id":` + itoa(id) + `,"start":"2025-03-10T11:00:00Z","end":"2025-03-10T12:00:00Z"}`
	rec := a.do(http.MethodPost, "/v1/reservations", &resident, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.Reservation](t, rec)
	assert.Equal(t, model.ReservationConfirmed, res.Status)
	assert.Equal(t, 1, res.PeopleCount)

	// same slot for a neighbour
	neighbor := model.Actor{UserID: 43, Role: model.RoleResident}
	rec = a.do(http.MethodPost, "/v1/reservations", &neighbor, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[ErrorBody](t, rec)
	assert.Equal(t, "CONFLICT", conflict.Code)
	assert.Contains(t, conflict.Details, "conflicts")

	rec = a.do(http.MethodGet, "/v1/reservations/"+itoa(res.ID), &neighbor, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/v1/reservations/me?status=confirmed", &resident, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Reservation](t, rec), 1)

	rec = a.do(http.MethodGet, "/v1/resources/"+itoa(id)+"/reservations?from=2025-03-10T00:00:00Z&to=2025-03-11T00:00:00Z", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Reservation](t, rec), 1)

	rec = a.do(http.MethodPost, "/v1/reservations/"+itoa(res.ID)+"/cancel", &resident, `{"reason":"plans changed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[model.Reservation](t, rec)
	assert.Equal(t, model.ReservationCancelled, cancelled.Status)
	assert.Equal(t, "plans changed", cancelled.CancellationReason)
}

func TestReservationRequestErrors(t *testing.T) {
	a := newAPI(t)
	id := a.laundry()

	rec := a.do(http.MethodPost, "/v1/reservations", &resident, `{"resource_id":`+itoa(id)+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/reservations", &resident, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// outside opening hours
	rec = a.do(http.MethodPost, "/v1/reservations", &resident,
		`{"resource_id":`+itoa(id)+`,"start":"2025-03-10T22:00:00Z","end":"2025-03-10T23:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/v1/reservations/abc", &resident, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/v1/reservations/999", &resident, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/v1/reservations/me?status=SOMEDAY", &resident, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/v1/resources/"+itoa(id)+"/reservations?from=yesterday", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetResourceActiveRequiresFlag(t *testing.T) {
	a := newAPI(t)
	id := a.laundry()

	rec := a.do(http.MethodPatch, "/v1/resources/"+itoa(id)+"/active", &staff, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPatch, "/v1/resources/"+itoa(id)+"/active", &staff, `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.Resource](t, rec).Active)

	// inactive resources reject bookings as not found
	rec = a.do(http.MethodPost, "/v1/reservations", &resident,
		`{"resource_id":`+itoa(id)+`,"start":"2025-03-10T10:00:00Z","end":"2025-03-10T11:00:00Z"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueAndReturnKeyReportsAmountOwed(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/keys", &staff, `{"code":"STO-1","type":"storage"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	key := decode[model.Key](t, rec)
	assert.Equal(t, model.KeyStorage, key.Type)

	rec = a.do(http.MethodPost, "/v1/keys/"+itoa(key.ID)+"/issue", &staff, `{"user_id":42,"type":"sometimes"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/keys/"+itoa(key.ID)+"/issue", &staff, `{"user_id":42}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issued := decode[map[string]any](t, rec)
	assert.Equal(t, "ACTIVE", issued["status"])
	assert.Equal(t, "TEMPORARY", issued["assignment_type"])
	assert.Equal(t, "0", issued["amount_owed"])
	asgID := uint64(issued["id"].(float64))

	// 72h storage key returned 25h late
	a.clock.Advance(97 * time.Hour)
	rec = a.do(http.MethodGet, "/v1/assignments?overdue=true", &staff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = a.do(http.MethodPost, "/v1/assignments/"+itoa(asgID)+"/return", &staff, `{"condition":"good"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	returned := decode[map[string]any](t, rec)
	assert.Equal(t, "RETURNED", returned["status"])
	assert.Equal(t, "20", returned["fine_amount"])
	// a late return keeps the deposit, so the whole fine is owed
	assert.Equal(t, false, returned["deposit_refunded"])
	assert.Equal(t, true, returned["deposit_forfeited"])
	assert.Equal(t, "20", returned["amount_owed"])

	rec = a.do(http.MethodGet, "/v1/assignments?status=RETURNED&key_id="+itoa(key.ID), &staff, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = a.do(http.MethodGet, "/v1/assignments?status=GONE", &staff, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }
