package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "STAFF", "desk@homestay.vn", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "STAFF", claims["role"])
	assert.Equal(t, "desk@homestay.vn", claims["email"])

	_, err = NewAccessToken("", 1, "STAFF", "", time.Hour)
	assert.Error(t, err)
}

func TestNewAccessTokenOmitsEmptyEmail(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "ADMIN", "", time.Minute)
	require.NoError(t, err)
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	_, ok := claims["email"]
	assert.False(t, ok)
}
