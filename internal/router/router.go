package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/homestay-reservation/internal/handler"
	"github.com/iliyamo/homestay-reservation/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints: a
// health check that pings the database and the Prometheus scrape target.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers the guest booking flow.  Availability answers are
// cached; creating a booking and the verification endpoints are rate
// limited.  A bearer token is optional here: when a staff member books on a
// guest's behalf the booking records who took it.
func RegisterPublic(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit, cache echo.MiddlewareFunc) {
	e.GET("/v1/rooms/available", h.Available, cache)
	e.POST("/v1/bookings/quote", h.Quote)

	g := e.Group("/v1/bookings", middleware.OptionalJWT(jwtSecret), limit)
	g.POST("", h.Create)
	g.POST("/:id/verify", h.Verify)
	g.POST("/:id/resend-code", h.ResendCode)
}
