package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

const actorKey = "actor"

func setActor(c echo.Context, a model.Actor) {
	c.Set(actorKey, a)
	c.Set("user_id", a.UserID)
	c.Set("role", string(a.Role))
}

// ActorFrom returns the authenticated caller stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(actorKey).(model.Actor)
	return a, ok && a.UserID != 0
}

// userID is the rate-limit identity: the user id, or "anon" before authentication.
func userID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return strconv.FormatUint(a.UserID, 10)
	}
	return "anon"
}
