package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetOwnerIDFromContext(r.Context())
		if !ok {
			t.Fatalf("owner id not in context")
		}
		if id != "owner-42" {
			t.Fatalf("owner id from context = %q, want owner-42", id)
		}
	})

	token, err := m.IssueToken("owner-42", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: authCookieName, Value: token})

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithBearerHeader(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	token, err := m.IssueToken("owner-7", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	expired, err := m.IssueToken("owner-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	foreign, err := other.IssueToken("owner-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	noSubject, err := m.IssueToken("", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no token", header: ""},
		{name: "malformed", header: "Bearer not-a-jwt"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "expired", header: "Bearer " + expired},
		{name: "foreign signature", header: "Bearer " + foreign},
		{name: "empty subject", header: "Bearer " + noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}
