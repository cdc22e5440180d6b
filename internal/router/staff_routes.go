package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-reservation/internal/handler"
	"github.com/iliyamo/homestay-reservation/internal/middleware"
	"github.com/iliyamo/homestay-reservation/internal/reservation"
)

// RegisterStaff registers front-desk operations.  All routes require a JWT
// with the STAFF or ADMIN role.
func RegisterStaff(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(reservation.RoleStaff, reservation.RoleAdmin),
	)
	g.POST("/bookings/:id/check-in", h.CheckIn)
	g.POST("/bookings/:id/check-out", h.CheckOut)
}
