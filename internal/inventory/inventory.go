package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Product is the merged, reviewer approved data handed to the inventory system.
type Product struct {
	SubmissionID uuid.UUID      `json:"submission_id"`
	SupplierID   uuid.UUID      `json:"supplier_id"`
	TemplateID   string         `json:"template_id"`
	Category     *string        `json:"category,omitempty"`
	Data         map[string]any `json:"data"`
}

// Committer creates or updates catalog and stock records. It returns the product reference.
type Committer interface {
	CommitProduct(ctx context.Context, product Product) (string, error)
}

type CommitterFunc func(ctx context.Context, product Product) (string, error)

func (f CommitterFunc) CommitProduct(ctx context.Context, product Product) (string, error) {
	return f(ctx, product)
}

var ErrEmptyReference = errors.New("inventory returned an empty product reference")

type commitResponse struct {
	ProductReference string `json:"product_reference"`
}

// HTTPClient posts products as JSON to the inventory service.
type HTTPClient struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

// Make sure we conform to Committer interface
var _ Committer = (*HTTPClient)(nil)

type HTTPOption func(*HTTPClient)

func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

func WithTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
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
	c := &HTTPClient{url: url, timeout: 30 * time.Second, client: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) CommitProduct(ctx context.Context, product Product) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(product)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", product.SubmissionID.String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("inventory service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out commitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode inventory response: %w", err)
	}
	if out.ProductReference == "" {
		return "", ErrEmptyReference
	}
	return out.ProductReference, nil
}
