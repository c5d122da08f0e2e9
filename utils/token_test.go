package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTToken_RoundTrip(t *testing.T) {
	j := NewJWTToken(&Config{SigningKey: "test-signing-key"})

	token, err := j.CreateToken(TokenObject{UserID: "u1", Role: "admin"})
	require.NoError(t, err)

	user, err := j.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
	assert.Equal(t, "admin", user.Role)
}

func TestJWTToken_RejectsForeignSignature(t *testing.T) {
	token, err := NewJWTToken(&Config{SigningKey: "other-key"}).CreateToken(TokenObject{UserID: "u1"})
	require.NoError(t, err)

	_, err = NewJWTToken(&Config{SigningKey: "test-signing-key"}).VerifyToken(token)
	assert.Error(t, err)
}

func TestJWTToken_RejectsExpired(t *testing.T) {
	claims := jwtClaim{
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
		UserID:         "u1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewJWTToken(&Config{SigningKey: "k"}).VerifyToken(token)
	assert.Error(t, err)
}
