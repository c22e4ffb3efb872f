package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/handler"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/middleware"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// RegisterReservations registers booking routes. Residents act on their own
// reservations; ownership is checked by the service.
func RegisterReservations(e *echo.Echo, h *handler.Handler, jwtSecret string, writes echo.MiddlewareFunc) {
	g := e.Group("/v1/reservations",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleResident, model.RoleStaff, model.RoleAdmin),
		writes,
	)
	g.POST("", h.CreateReservation)
	g.GET("/me", h.MyReservations)
	g.GET("/:id", h.GetReservation)
	g.POST("/:id/cancel", h.CancelReservation)
	g.POST("/:id/check-in", h.CheckIn)
	g.POST("/:id/complete", h.CompleteReservation)

	staff := e.Group("/v1/reservations",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleAdmin),
		writes,
	)
	staff.POST("/:id/approve", h.ApproveReservation)
	staff.POST("/:id/reject", h.RejectReservation)
	staff.POST("/:id/key/pickup", h.PickUpKey)
	staff.POST("/:id/key/return", h.ReturnReservationKey)
}
