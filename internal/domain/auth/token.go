package auth

import (
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
)

// MinTokenLength is the shortest bearer token considered structurally plausible.
const MinTokenLength = 20

var jwtParser = jwt.NewParser()

// IsPlausibleToken performs the cheap local check used to reject obviously
// corrupt tokens without a network round trip. Tokens that parse as a JWT
// are also rejected once their exp claim is in the past.
func IsPlausibleToken(token string, now time.Time) bool {
	if len(token) < MinTokenLength {
		return false
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return false
	}
	return !jwtExpired(token, now)
}

// jwtExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens and JWTs without exp are never considered expired here;
// the backend remains the authority on validity.
func jwtExpired(token string, now time.Time) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwtParser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
