package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret")

	tok, err := m.Sign("user-123", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	claims, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("subject = %q, want user-123", claims.Subject)
	}
}

func TestVerifyRejections(t *testing.T) {
	m := NewJWTManager("test-secret")

	t.Run("wrong secret", func(t *testing.T) {
		tok, _ := NewJWTManager("other-secret").Sign("user-123", time.Hour)
		if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("got %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		tok, _ := m.Sign("user-123", -time.Minute)
		if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("got %v, want ErrInvalidToken", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := m.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("got %v, want ErrInvalidToken", err)
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		tok := signRaw(t, "test-secret", &Claims{
			Scope: ScopeFullAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("got %v, want ErrInvalidToken", err)
		}
	})

	t.Run("missing scope", func(t *testing.T) {
		tok := signRaw(t, "test-secret", &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		if _, err := m.Verify(tok); !errors.Is(err, ErrInsufficientScope) {
			t.Errorf("got %v, want ErrInsufficientScope", err)
		}
	})
}

func TestHasScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  bool
	}{
		{"bare", "FULL_ACCESS", true},
		{"prefixed", "SCOPE_FULL_ACCESS", true},
		{"lowercase", "scope_full_access", true},
		{"among others", "openid profile FULL_ACCESS", true},
		{"different scope", "PIN_VERIFICATION", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Claims{Scope: tt.scope}
			if got := c.HasScope(ScopeFullAccess); got != tt.want {
				t.Errorf("HasScope(%q) = %v, want %v", tt.scope, got, tt.want)
			}
		})
	}
}

func signRaw(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}
