package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticateDisabledWhenTokenEmpty(t *testing.T) {
	svc := NewService("")
	if svc.Enabled() {
		t.Fatal("空令牌不应启用认证")
	}
	if !svc.Authenticate("") {
		t.Fatal("认证禁用时应放行所有请求")
	}
}

func TestAuthenticateBearerToken(t *testing.T) {
	svc := NewService("secret-token")

	cases := []struct {
		header string
		want   bool
	}{
		{"Bearer secret-token", true},
		{"Bearer  secret-token ", true},
		{"Bearer wrong", false},
		{"secret-token", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := svc.Authenticate(tc.header); got != tc.want {
			t.Errorf("Authenticate(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestMiddlewareRejectsUnauthenticated(t *testing.T) {
	svc := NewService("secret-token")
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("未带令牌的请求应返回 401，实际 %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("带令牌的请求应放行，实际 %d", rec.Code)
	}
}
