// Package remote invokes serverless functions hosted next to the Gateway.
// Results are opaque JSON; this package only moves bytes and classifies
// failures.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
)

// Invoker is invoke_remote_function(name, payload).
type Invoker interface {
	Invoke(ctx context.Context, name string, payload any) (json.RawMessage, error)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Invoke(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.InvalidArgument("marshal payload for %s: %v", name, err)
	}

	endpoint := c.baseURL + "/functions/v1/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.InvalidArgument("build request for %s: %v", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %w", apperr.ErrNetwork, name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", apperr.ErrNetwork, name, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: invoke %s: status %d", apperr.ErrAuthorization, name, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: invoke %s: status %d", apperr.ErrNetwork, name, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: invoke %s: status %d: %s", apperr.ErrValidation, name, resp.StatusCode, bytes.TrimSpace(data))
	}

	return json.RawMessage(data), nil
}
