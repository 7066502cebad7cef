package echoapi

import (
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
)

// Claims are the authorization claims transmitted via a JWT. They are
// parsed for identity attribution only; enforcement belongs to the
// administrative API, which receives the raw token untouched.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	SchoolID string `json:"school_id,omitempty"`
}

// bearerToken extracts the raw bearer token from the request, or "".
func bearerToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// parseClaims best-effort decodes the token's claims; an invalid or
// foreign-signed token simply yields no claims.
func parseClaims(token string, secret []byte) *Claims {
	if token == "" {
		return nil
	}
	claims := new(Claims)
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}); err != nil {
		return nil
	}
	return claims
}
