package auth

import (
	"context"
	"net/http"
	"strings"
)

// FailureRecorder receives rejected authentication attempts.
type FailureRecorder interface {
	LogAuthentication(ctx context.Context, userID, action string) error
}

// Middleware validates JWTs and enforces RBAC.
type Middleware struct {
	Secret   []byte
	Policy   Policy
	Failures FailureRecorder
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearer(r)
		claims, err := ParseJWT(token, m.Secret)
		if err != nil {
			m.recordFailure(r.Context(), "", "TOKEN_REJECTED")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		identity := claims.Identity()
		ctx := WithIdentity(r.Context(), identity)
		if !RoleAtLeast(identity.Role, required) {
			m.recordFailure(ctx, identity.ID, "ACCESS_DENIED")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) recordFailure(ctx context.Context, userID, action string) {
	if m.Failures == nil {
		return
	}
	_ = m.Failures.LogAuthentication(ctx, userID, action)
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
