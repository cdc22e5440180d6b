package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var errNoToken = errors.New("missing bearer token")

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject, role and email claims into the request
// context.  Handlers read them with UserID, Role and Email.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := bearerClaims(c, secret)
			if errors.Is(err, errNoToken) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			setIdentity(c, claims)
			return next(c)
		}
	}
}

// OptionalJWT behaves like JWTAuth when a token is sent and lets the
// request through as a guest when none is.  A bad token is still rejected.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := bearerClaims(c, secret)
			switch {
			case errors.Is(err, errNoToken):
			case err != nil:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			default:
				setIdentity(c, claims)
			}
			return next(c)
		}
	}
}

// bearerClaims parses the Authorization header with HS256 and secret.
func bearerClaims(c echo.Context, secret string) (jwt.MapClaims, error) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, errNoToken
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func setIdentity(c echo.Context, claims jwt.MapClaims) {
	c.Set(CtxUserID, claims["sub"])
	c.Set(CtxRole, claims["role"])
	c.Set(CtxEmail, claims["email"])
}
