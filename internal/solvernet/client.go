package solvernet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// HTTPClient is the request/response transport to the solver network. It
// duplicates the WebSocket publication path so that either transport can
// fail without losing the intent.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the solver-network HTTP endpoint.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// PublishIntent POSTs the intent to the solver network.
func (c *HTTPClient) PublishIntent(ctx context.Context, intent domain.Intent) error {
	body, err := json.Marshal(EncodeIntent(intent))
	if err != nil {
		return fmt.Errorf("solvernet/http: marshal intent: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("solvernet/http: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("solvernet/http: publish intent %s: %w", intent.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("solvernet/http: publish intent %s: status %d: %s", intent.ID, resp.StatusCode, b)
	}
	return nil
}

// FetchQuotes pulls any quotes the network has accumulated for the intent.
// Used as a backstop when the WebSocket channel is down.
func (c *HTTPClient) FetchQuotes(ctx context.Context, intentID string) ([]domain.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/intents/"+intentID+"/quotes", nil)
	if err != nil {
		return nil, fmt.Errorf("solvernet/http: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solvernet/http: fetch quotes %s: %w", intentID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("solvernet/http: fetch quotes %s: status %d", intentID, resp.StatusCode)
	}

	var msgs []QuoteMessage
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("solvernet/http: decode quotes %s: %w", intentID, err)
	}
	quotes := make([]domain.Quote, 0, len(msgs))
	for _, m := range msgs {
		q, err := m.Decode()
		if err != nil {
			continue // malformed quotes are dropped, not fatal
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
