// Package auth verifies bearer tokens issued by the platform's
// authentication service. This service never issues end-user tokens
// itself; it shares the signing secret and checks signature, expiry and
// scope before trusting the subject claim.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")

	// ErrInsufficientScope means the token is valid but lacks the
	// scope this service requires.
	ErrInsufficientScope = errors.New("insufficient token scope")
)

// ScopeFullAccess is the scope granted to a fully authenticated user
// session. Tokens carrying only limited scopes (e.g. pre-PIN login)
// cannot touch bill data.
const ScopeFullAccess = "FULL_ACCESS"

// Claims are the token claims this service relies on. The subject is
// the platform user id; scope is a space-separated list in the OAuth2
// style ("SCOPE_FULL_ACCESS" and bare "FULL_ACCESS" are both accepted).
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope reports whether the named scope is granted.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if strings.TrimPrefix(strings.ToUpper(s), "SCOPE_") == scope {
			return true
		}
	}
	return false
}

// JWTManager validates JWT tokens against a shared HMAC secret.
type JWTManager struct {
	secretKey []byte
}

// NewJWTManager creates a JWT manager with the given shared secret.
func NewJWTManager(secretKey string) *JWTManager {
	return &JWTManager{secretKey: []byte(secretKey)}
}

// Verify parses and validates a token, returning its claims. The token
// must be signed with the shared secret, unexpired, and carry the
// FULL_ACCESS scope.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !claims.HasScope(ScopeFullAccess) {
		return nil, ErrInsufficientScope
	}

	return claims, nil
}

// Sign creates a token for the given user id with the FULL_ACCESS
// scope. The auth service owns issuance in production; this exists for
// tests and local tooling.
func (m *JWTManager) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Scope: ScopeFullAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
