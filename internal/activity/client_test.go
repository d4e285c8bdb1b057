package activity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/projectdesk/internal/model"
)

func TestGetRecentActivities_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/activities" {
			t.Fatalf("path = %s, want /api/activities", r.URL.Path)
		}
		if got := r.URL.Query().Get("owner_id"); got != "owner-1" {
			t.Fatalf("owner_id = %q, want owner-1", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Fatalf("limit = %q, want 2", got)
		}

		resp := []model.Activity{
			{ID: "a1", OwnerID: "owner-1", Action: "create", EntityType: "payment", EntityID: "p1"},
			{ID: "a2", OwnerID: "owner-1", Action: "update", EntityType: "task", EntityID: "t1"},
			{ID: "a3", OwnerID: "owner-1", Action: "delete", EntityType: "task", EntityID: "t2"},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.GetRecentActivities(ctx, "owner-1", 2)
	if err != nil {
		t.Fatalf("GetRecentActivities error: %v", err)
	}
	if len(res) != 2 || res[0].ID != "a1" || res[1].EntityType != "task" {
		t.Fatalf("unexpected activities: %+v", res)
	}
}

func TestGetRecentActivities_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.GetRecentActivities(ctx, "owner-1", 10)

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want RateLimitError", err)
	}
	if rl.RetryAfter < 5*time.Second {
		t.Fatalf("RetryAfter = %v, want at least 5s", rl.RetryAfter)
	}
}

func TestGetRecentActivities_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	res, err := client.GetRecentActivities(context.Background(), "owner-1", 10)
	if err != nil {
		t.Fatalf("GetRecentActivities error: %v", err)
	}
	if res == nil || len(res) != 0 {
		t.Fatalf("expected empty non-nil slice for 204, got %+v", res)
	}
}

func TestGetRecentActivities_NotConfigured(t *testing.T) {
	if _, err := NewClient("").GetRecentActivities(context.Background(), "owner-1", 10); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
}

func TestNewClient_AddsScheme(t *testing.T) {
	c := NewClient("localhost:9000/")
	if c.baseURL != "http://localhost:9000" {
		t.Fatalf("baseURL = %q, want http://localhost:9000", c.baseURL)
	}
}
