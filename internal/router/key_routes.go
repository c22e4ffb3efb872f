package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/handler"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/middleware"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// RegisterKeys registers the key inventory and custody ledger. Every route is
// staff-only; retiring and taking keys out of service needs an admin.
func RegisterKeys(e *echo.Echo, h *handler.Handler, jwtSecret string, writes echo.MiddlewareFunc) {
	keys := e.Group("/v1/keys",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleAdmin),
		writes,
	)
	keys.POST("", h.CreateKey)
	keys.GET("", h.ListKeys)
	keys.GET("/attention", h.KeysNeedingAttention)
	keys.GET("/:id", h.GetKey)
	keys.POST("/:id/reserve", h.ReserveKey)
	keys.POST("/:id/release", h.ReleaseKey)
	keys.POST("/:id/lost", h.ReportKeyLost)
	keys.POST("/:id/damaged", h.ReportKeyDamaged)
	keys.POST("/:id/restore", h.RestoreKey)
	keys.POST("/:id/issue", h.IssueKey)

	admin := e.Group("/v1/keys",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		writes,
	)
	admin.POST("/:id/out-of-service", h.PutKeyOutOfService)
	admin.POST("/:id/retire", h.RetireKey)

	asg := e.Group("/v1/assignments",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleAdmin),
		writes,
	)
	asg.GET("", h.ListAssignments)
	asg.GET("/:id", h.GetAssignment)
	asg.POST("/:id/return", h.ReturnAssignment)
	asg.POST("/:id/lost", h.ReportAssignmentLost)
	asg.POST("/:id/extend", h.ExtendAssignment)
}
