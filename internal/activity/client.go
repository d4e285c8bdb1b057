// Package activity предоставляет клиент для внешнего журнала действий пользователей.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/projectdesk/internal/model"
)

// RateLimitError возвращается, когда журнал ответил 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("activity log rate limited, retry after %s", e.RetryAfter)
}

// Client инкапсулирует HTTP-взаимодействие с журналом действий.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к журналу действий по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetRecentActivities запрашивает последние limit записей журнала пользователя.
func (c *Client) GetRecentActivities(ctx context.Context, ownerID string, limit int) ([]model.Activity, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("activity client not configured")
	}

	q := url.Values{}
	q.Set("owner_id", ownerID)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/api/activities?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return []model.Activity{}, nil
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result []model.Activity
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result) > limit && limit > 0 {
		result = result[:limit]
	}

	return result, nil
}
