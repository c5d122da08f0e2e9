package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const tokenLifetime = 24 * time.Hour

type JWTToken struct {
	config *Config
}

func NewJWTToken(config *Config) *JWTToken {
	return &JWTToken{config: config}
}

type jwtClaim struct {
	jwt.StandardClaims
	UserID string `json:"user_id"`
	Role   string `json:"user_role"`
}

// TokenObject is the identity carried by a bearer token. UserID is the
// marketplace uid, the same key used for wallets/{uid} and users/{uid}.
type TokenObject struct {
	UserID string `json:"user_id"`
	Role   string `json:"user_role"`
}

func (j *JWTToken) CreateToken(user TokenObject) (string, error) {
	claims := jwtClaim{
		StandardClaims: jwt.StandardClaims{
			Subject:   user.UserID,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(tokenLifetime).Unix(),
		},
		UserID: user.UserID,
		Role:   user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(j.config.SigningKey))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (j *JWTToken) VerifyToken(tokenString string) (TokenObject, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid authentication token, format error")
		}
		return []byte(j.config.SigningKey), nil
	})

	if err != nil {
		return TokenObject{}, fmt.Errorf("invalid authentication token, %v", err.Error())
	}

	claims, ok := token.Claims.(*jwtClaim)
	if !ok || !token.Valid {
		return TokenObject{}, fmt.Errorf("invalid authentication token, token is not OK")
	}

	if claims.UserID == "" {
		return TokenObject{}, fmt.Errorf("invalid authentication token, missing user")
	}

	return TokenObject{
		UserID: claims.UserID,
		Role:   claims.Role,
	}, nil
}
