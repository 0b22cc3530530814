// Package coupons validates promo codes against the promotions service.
package coupons

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/pkg/breaker"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

const (
	validatePath = "/coupons/validate"

	responseBodyReadLimit int64 = 1024
	maxResponseBytes      int64 = 1 << 20
)

var errBaseURLRequired = errors.New("promotions base url is required")

// Result is the promotions service verdict. An invalid code is a normal result, not an error.
type Result struct {
	Code          string `json:"code"`
	Valid         bool   `json:"valid"`
	DiscountCents int64  `json:"discount_cents"`
	Message       string `json:"message,omitempty"`
}

// Client calls the promotions service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *breaker.Breaker[*Result]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(b *breaker.Breaker[*Result]) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// NewClient builds a promotions client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NormalizeCode trims and upper-cases a code as typed by the buyer.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate asks the promotions service whether code applies to an order of orderTotal
// minor units. The caller passes the pre-discount total.
func (c *Client) Validate(ctx context.Context, code string, orderTotal int64) (*Result, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "promotions client not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	call := func() (*Result, error) {
		return c.validate(ctx, normalized, orderTotal)
	}
	if c.breaker != nil {
		return c.breaker.Execute(call)
	}
	return call()
}

func (c *Client) validate(ctx context.Context, code string, orderTotal int64) (*Result, error) {
	payload, err := json.Marshal(map[string]any{
		"code":        code,
		"order_total": orderTotal,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal coupon request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+validatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build coupon request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute coupon request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read coupon response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		// The service rejects unknown or inapplicable codes with a 4xx body.
		result := decodeResult(body)
		result.Code = code
		result.Valid = false
		result.DiscountCents = 0
		if result.Message == "" {
			result.Message = "coupon is not valid"
		}
		return result, nil
	default:
		msg := body
		if int64(len(msg)) > responseBodyReadLimit {
			msg = msg[:responseBodyReadLimit]
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "coupon validation failed")
	}

	if !json.Valid(body) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "decode coupon response")
	}
	result := decodeResult(body)
	result.Code = code
	if !result.Valid {
		result.DiscountCents = 0
		if result.Message == "" {
			result.Message = "coupon is not valid"
		}
	}
	if result.DiscountCents < 0 {
		result.DiscountCents = 0
	}
	return result, nil
}
