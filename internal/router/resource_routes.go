package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/handler"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/middleware"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// RegisterResources registers the catalog. Reads are public; a staff token on
// GET /v1/resources?all=true also lists inactive resources.
func RegisterResources(e *echo.Echo, h *handler.Handler, jwtSecret string, writes echo.MiddlewareFunc) {
	pub := e.Group("/v1/resources", middleware.OptionalJWT(jwtSecret))
	pub.GET("", h.ListResources)
	pub.GET("/:id", h.GetResource)
	pub.GET("/:id/reservations", h.ResourceReservations)

	staff := e.Group("/v1/resources",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleAdmin),
		writes,
	)
	staff.POST("", h.CreateResource)
	staff.PUT("/:id", h.UpdateResource)
	staff.PATCH("/:id/active", h.SetResourceActive)
}
