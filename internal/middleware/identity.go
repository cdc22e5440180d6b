package middleware

// identity.go defines the context keys JWTAuth fills and accessors shared by
// the other middleware and the handlers.

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth and OptionalJWT.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxEmail  = "email"
)

// UserID returns the authenticated user id, or 0 for guests. The sub claim
// may arrive as a JSON string or number.
func UserID(c echo.Context) uint64 {
	switch v := c.Get(CtxUserID).(type) {
	case string:
		n, _ := strconv.ParseUint(v, 10, 64)
		return n
	case float64:
		if v > 0 {
			return uint64(v)
		}
	}
	return 0
}

// Role returns the role claim, or "" for guests.
func Role(c echo.Context) string {
	s, _ := c.Get(CtxRole).(string)
	return s
}

// Email returns the email claim, or "" for guests.
func Email(c echo.Context) string {
	s, _ := c.Get(CtxEmail).(string)
	return s
}

// subject renders the user id for keys; guests are "anon".
func subject(c echo.Context) string {
	if v := c.Get(CtxUserID); v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return "anon"
}
