package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-reservation/internal/middleware"
	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/reservation"
)

// BookingHandler exposes the reservation service over HTTP.  Identity comes
// from the JWT middleware; anonymous guests may create, verify and price
// bookings.
type BookingHandler struct {
	Svc *reservation.Service
}

// NewBookingHandler constructs a BookingHandler.  The service must be non-nil.
func NewBookingHandler(svc *reservation.Service) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Svc: svc}
}

func actorFrom(c echo.Context) reservation.Actor {
	return reservation.Actor{
		UserID: middleware.UserID(c),
		Role:   middleware.Role(c),
		Email:  middleware.Email(c),
	}
}

func bookingID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// parseDay accepts either an RFC 3339 timestamp or a bare date, read as
// midnight UTC.
func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

// Available handles GET /v1/rooms/available.  branch_id and min_capacity
// are optional.
func (h *BookingHandler) Available(c echo.Context) error {
	var q reservation.AvailabilityQuery
	var err error
	if v := c.QueryParam("branch_id"); v != "" {
		if q.BranchID, err = strconv.ParseUint(v, 10, 64); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid branch_id"})
		}
	}
	if q.CheckIn, err = parseDay(c.QueryParam("check_in")); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check_in"})
	}
	if q.CheckOut, err = parseDay(c.QueryParam("check_out")); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check_out"})
	}
	if v := c.QueryParam("min_capacity"); v != "" {
		if q.MinCapacity, err = strconv.Atoi(v); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid min_capacity"})
		}
	}
	rooms, err := h.Svc.ListAvailableRooms(c.Request().Context(), q)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": rooms})
}

// Quote handles POST /v1/bookings/quote.
func (h *BookingHandler) Quote(c echo.Context) error {
	var req reservation.QuoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	q, err := h.Svc.Quote(c.Request().Context(), req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Create handles POST /v1/bookings.  The response carries the booking in
// HELD state; the verification code goes out by email.
func (h *BookingHandler) Create(c echo.Context) error {
	var req reservation.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	b, err := h.Svc.CreateBooking(c.Request().Context(), req, actorFrom(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Verify handles POST /v1/bookings/:id/verify.
func (h *BookingHandler) Verify(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil || body.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}
	b, err := h.Svc.VerifyCode(c.Request().Context(), id, body.Code)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ResendCode handles POST /v1/bookings/:id/resend-code.
func (h *BookingHandler) ResendCode(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Svc.ResendCode(c.Request().Context(), id, actorFrom(c)); err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "verification code sent"})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Svc.GetBooking(c.Request().Context(), id, actorFrom(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Mine handles GET /v1/my-bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	list, err := h.Svc.ListMyBookings(c.Request().Context(), actorFrom(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Pay handles POST /v1/bookings/:id/payment.  A repeated call on a paid
// booking answers 200 with the existing invoice.
func (h *BookingHandler) Pay(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req reservation.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	r, err := h.Svc.FinalizePayment(c.Request().Context(), id, req, actorFrom(c))
	if err != nil {
		return respond(c, err)
	}
	status := http.StatusCreated
	if r.AlreadyPaid {
		status = http.StatusOK
	}
	return c.JSON(status, r)
}

// PaymentSubmitted handles POST /v1/bookings/:id/payment/submitted.
func (h *BookingHandler) PaymentSubmitted(c echo.Context) error {
	return h.apply(c, h.Svc.RequestPaymentConfirmation)
}

// CheckIn handles POST /v1/bookings/:id/check-in.
func (h *BookingHandler) CheckIn(c echo.Context) error { return h.apply(c, h.Svc.CheckIn) }

// CheckOut handles POST /v1/bookings/:id/check-out.
func (h *BookingHandler) CheckOut(c echo.Context) error { return h.apply(c, h.Svc.CheckOut) }

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error { return h.apply(c, h.Svc.Cancel) }

// Hide handles DELETE /v1/bookings/:id.  Hidden bookings stay on record.
func (h *BookingHandler) Hide(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Svc.Hide(c.Request().Context(), id, actorFrom(c)); err != nil {
		return respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// bookingOp is a service transition addressed by booking id.
type bookingOp func(ctx context.Context, id uint64, actor reservation.Actor) (*model.Booking, error)

func (h *BookingHandler) apply(c echo.Context, op bookingOp) error {
	id, ok := bookingID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := op(c.Request().Context(), id, actorFrom(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
