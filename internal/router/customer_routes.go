package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-reservation/internal/handler"
	"github.com/iliyamo/homestay-reservation/internal/middleware"
	"github.com/iliyamo/homestay-reservation/internal/reservation"
)

// RegisterCustomer registers the endpoints a signed-in customer uses on
// their own bookings.  Staff reach the same routes; ownership is checked by
// the reservation service, not here.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(reservation.RoleCustomer, reservation.RoleStaff, reservation.RoleAdmin),
	)
	g.GET("/my-bookings", h.Mine)
	g.GET("/bookings/:id", h.Get)
	g.POST("/bookings/:id/payment", h.Pay)
	g.POST("/bookings/:id/payment/submitted", h.PaymentSubmitted)
	g.POST("/bookings/:id/cancel", h.Cancel)
	// Soft delete: the booking is hidden from the customer's list only.
	g.DELETE("/bookings/:id", h.Hide)
}
