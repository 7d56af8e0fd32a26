package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okunev/lavka/internal/domain"
)

const tokenLifetime = 24 * time.Hour

// StaffClaims is the JWT payload for an authenticated staff member.
type StaffClaims struct {
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// StaffClaimsFromContext extracts the staff claims from the request context.
// Returns nil when the request is unauthenticated.
func StaffClaimsFromContext(ctx context.Context) *StaffClaims {
	if c, ok := ctx.Value(staffClaimsKey).(*StaffClaims); ok {
		return c
	}
	return nil
}

// IssueToken signs a staff token for a user.
func IssueToken(secret string, u *domain.User) (string, error) {
	now := time.Now()
	claims := &StaffClaims{
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign staff token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a staff token and returns its claims.
func ParseToken(secret, raw string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse staff token: %w", err)
	}
	return claims, nil
}

// Authenticate requires a valid Bearer token and stores its claims in the
// request context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(secret, raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), staffClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles restricts a route to the given staff roles. It must run after
// Authenticate.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := StaffClaimsFromContext(r.Context())
			if claims == nil {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"insufficient role"}`, http.StatusForbidden)
		})
	}
}
