// Package router assembles the echo instance: ambient middleware, probes and
// the /v1 route groups.
package router

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/handler"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/middleware"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
)

// Deps is everything the routes need. RateLimiter may be nil.
type Deps struct {
	Handler     *handler.Handler
	JWTSecret   string
	RateLimiter *middleware.RateLimiter
	Ready       map[string]handler.ReadyCheck
	Logger      *slog.Logger
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(requestLogger(d.Logger))
	e.Use(metrics.EchoMiddleware())

	RegisterRoutes(e, d.Ready)

	writes := writesOnly(nil)
	if d.RateLimiter != nil {
		writes = writesOnly(d.RateLimiter.Middleware())
	}
	RegisterResources(e, d.Handler, d.JWTSecret, writes)
	RegisterReservations(e, d.Handler, d.JWTSecret, writes)
	RegisterKeys(e, d.Handler, d.JWTSecret, writes)
	return e
}

// RegisterRoutes registers the unauthenticated probes and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, ready map[string]handler.ReadyCheck) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(ready))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// writesOnly applies m to every method except GET and HEAD. A nil m passes
// everything through.
func writesOnly(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if m == nil {
			return next
		}
		limited := m(next)
		return func(c echo.Context) error {
			switch c.Request().Method {
			case echo.GET, echo.HEAD:
				return next(c)
			}
			return limited(c)
		}
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= 500 || v.Error != nil {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	})
}
