package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type recordingFailures struct {
	actions []string
}

func (r *recordingFailures) LogAuthentication(_ context.Context, _ string, action string) error {
	r.actions = append(r.actions, action)
	return nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	failures := &recordingFailures{}
	mw := NewMiddleware(secret, NewDefaultPolicy(nil))
	mw.Failures = failures
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/pay/fiat", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if len(failures.actions) != 1 || failures.actions[0] != "TOKEN_REJECTED" {
		t.Fatalf("expected rejected token to be recorded, got %v", failures.actions)
	}
}

func TestAuthMiddleware_UserForbiddenDeposit(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "citizen", "user")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/account/deposit", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_UserForbiddenMetrics(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "citizen", "user")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_IdentityInContext(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "Ana Citizen", "user")
	var got *Identity
	handler := NewMiddleware(secret, NewDefaultPolicy(nil)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/pay/fiat", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got == nil || got.ID != "user-1" || got.DisplayName != "Ana Citizen" || got.Role != RoleUser {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestAuthMiddleware_ExemptPath(t *testing.T) {
	handler := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/healthz"})).Wrap(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestParseJWT_RejectsUnknownRole(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "x", "viewer")
	if _, err := ParseJWT(token, secret); err == nil {
		t.Fatalf("expected invalid role error")
	}
}

func mustToken(t *testing.T, secret []byte, name, role string) string {
	t.Helper()
	claims := Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestPolicy_RequiredRole(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz"})
	cases := []struct {
		method string
		path   string
		role   Role
		ok     bool
	}{
		{http.MethodPost, "/api/pay/crypto", RoleUser, true},
		{http.MethodGet, "/api/transactions/export.pdf", RoleUser, true},
		{http.MethodDelete, "/api/transactions/tx-1", RoleAdmin, true},
		{http.MethodPost, "/api/account/deposit", RoleAdmin, true},
		{http.MethodGet, "/api/metrics/logs", RoleAdmin, true},
		{http.MethodGet, "/metrics", "", false},
	}
	for _, tc := range cases {
		role, ok := policy.RequiredRole(httptest.NewRequest(tc.method, tc.path, nil))
		if role != tc.role || ok != tc.ok {
			t.Fatalf("%s %s: expected %q/%v, got %q/%v", tc.method, tc.path, tc.role, tc.ok, role, ok)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	for _, value := range []string{"admin", "ADMIN", " ROLE_ADMIN "} {
		if role, ok := NormalizeRole(value); !ok || role != RoleAdmin {
			t.Fatalf("%q: expected admin, got %q", value, role)
		}
	}
	if _, ok := NormalizeRole("viewer"); ok {
		t.Fatalf("viewer must not normalize")
	}
	if !RoleAtLeast(RoleAdmin, RoleUser) || RoleAtLeast(RoleUser, RoleOperator) || RoleAtLeast("", RoleUser) {
		t.Fatalf("unexpected role ordering")
	}
}
