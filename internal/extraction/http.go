package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 4 << 10

// HTTPClient calls a remote extraction service: it POSTs the Request as JSON and decodes a Result.
type HTTPClient struct {
	url    string
	token  string
	client *http.Client
}

// Make sure we conform to Extractor interface
var _ Extractor = (*HTTPClient)(nil)

type HTTPOption func(*HTTPClient)

func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

func NewHTTPClient(url string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{url: url, client: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Extract(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode extraction result: %w", err)
	}
	return &result, nil
}
