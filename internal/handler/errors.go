package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-reservation/internal/repository"
	"github.com/iliyamo/homestay-reservation/internal/reservation"
)

// respond maps service errors to HTTP responses.  Unknown errors are
// logged and reported as 500 without detail.
func respond(c echo.Context, err error) error {
	var (
		ve *reservation.ValidationError
		ce *reservation.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": ve.Fields})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{"error": ce.Reason, "room_ids": ce.RoomIDs})
	case errors.Is(err, reservation.ErrAlreadyVerified):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already verified"})
	case errors.Is(err, reservation.ErrNoCode):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no verification code issued"})
	case errors.Is(err, reservation.ErrCodeExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "verification code expired"})
	case errors.Is(err, reservation.ErrCodeMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "verification code does not match"})
	case errors.Is(err, reservation.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking state does not allow this operation"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking was modified concurrently, retry"})
	case errors.Is(err, reservation.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, reservation.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
