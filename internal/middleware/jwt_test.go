package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/auth"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

const testSecret = "test-secret"

func bearer(t *testing.T, a model.Actor) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, a, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func whoami(c echo.Context) error {
	a, ok := ActorFrom(c)
	if !ok {
		return c.String(http.StatusOK, "anonymous")
	}
	return c.JSON(http.StatusOK, a)
}

func serve(e *echo.Echo, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	rec := serve(e, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")

	rec = serve(e, "/me", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, "/me", bearer(t, model.Actor{UserID: 42, Role: model.RoleResident}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":42,"role":"RESIDENT"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, OptionalJWT(testSecret))

	rec := serve(e, "/me", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = serve(e, "/me", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, "/me", bearer(t, model.Actor{UserID: 3, Role: model.RoleStaff}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"STAFF"`)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/desk", whoami, JWTAuth(testSecret), RequireRole(model.RoleStaff, model.RoleAdmin))
	e.GET("/open", whoami, RequireRole(model.RoleStaff))

	tests := []struct {
		name  string
		path  string
		authz string
		want  int
	}{
		{"resident", "/desk", bearer(t, model.Actor{UserID: 1, Role: model.RoleResident}), http.StatusForbidden},
		{"staff", "/desk", bearer(t, model.Actor{UserID: 2, Role: model.RoleStaff}), http.StatusOK},
		{"admin", "/desk", bearer(t, model.Actor{UserID: 3, Role: model.RoleAdmin}), http.StatusOK},
		{"no jwt middleware", "/open", "", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, serve(e, tc.path, tc.authz).Code)
		})
	}
}
