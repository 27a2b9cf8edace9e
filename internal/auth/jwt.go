// Package auth verifies the signed tokens clients present on handshake and
// on the REST endpoints. The gateway only verifies; issuance lives elsewhere.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers missing, malformed, expired, and badly signed
// tokens. Callers translate it to a handshake close or a 401.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenVerifier checks HMAC-signed tokens against the shared secret and
// extracts the subject.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier over the shared signing secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token and returns its subject, the user ID.
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

// FromAuthorizationHeader strips the Bearer prefix from an Authorization
// header value.
func FromAuthorizationHeader(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
