package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Client issues signed HTTP requests to a peer process (Authority<->Gateway)
// and decodes the JSON response. A single failed attempt is retried with a
// short bounded backoff before being surfaced to the caller — this keeps a
// single dropped connection from counting as a circuit-breaker failure.
type Client struct {
	http    *http.Client
	baseURL string
	secret  string
}

// NewClient creates a signed internal HTTP client.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		secret:  secret,
	}
}

// Do sends method+path with the given JSON body (nil for no body), signs the
// request, retries transient failures, and decodes the JSON response into
// out (which may be nil to discard the body).
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var rawBody []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request body: %w", err)
		}
		rawBody = b
	}

	op := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(rawBody))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		SignRequest(req, c.secret, rawBody)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling %s %s: %w", method, path, err)
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("peer returned %d", resp.StatusCode)
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("reading response body: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return resp.StatusCode, fmt.Errorf("decoding response body: %w", err)
			}
		}
	}

	return resp.StatusCode, nil
}
