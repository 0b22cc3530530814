package orders

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
	"github.com/angelmondragon/storefront/pkg/types"
)

const (
	createOrderPath      = "/orders"
	idempotencyKeyHeader = "Idempotency-Key"

	responseBodyReadLimit int64 = 1024
	maxResponseBytes      int64 = 1 << 20
)

var errBaseURLRequired = errors.New("order service base url is required")

// Client creates orders on the order service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *breaker.Breaker[*Order]
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
func WithBreaker(b *breaker.Breaker[*Order]) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// NewClient builds an order service client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateOrder posts the request once. The idempotency key lets the order service
// collapse retries of the same checkout session; it is never retried here.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest, idempotencyKey string) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order service client not configured")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	fallback := types.ShippingAddress{
		Name:       req.ShippingName,
		Phone:      req.ShippingPhone,
		Line1:      req.ShippingLine1,
		City:       req.ShippingCity,
		State:      req.ShippingState,
		PostalCode: req.ShippingPostalCode,
		Country:    req.ShippingCountry,
	}
	if req.ShippingLine2 != "" {
		line2 := req.ShippingLine2
		fallback.Line2 = &line2
	}

	call := func() (*Order, error) {
		return c.createOrder(ctx, req, idempotencyKey, fallback)
	}
	if c.breaker != nil {
		return c.breaker.Execute(call)
	}
	return call()
}

func (c *Client) createOrder(ctx context.Context, body CreateOrderRequest, idempotencyKey string, fallback types.ShippingAddress) (*Order, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal order request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createOrderPath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build order request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		httpReq.Header.Set(idempotencyKeyHeader, key)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute order request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read order response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw)
	}
	return ParseResponse(raw, fallback)
}

// statusError maps an upstream rejection onto our error codes. Client-side
// rejections surface the upstream message; everything else is a dependency failure.
func statusError(status int, raw []byte) error {
	msg := upstreamMessage(raw)
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "order rejected by order service"
		}
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"upstream_status": status})
	case http.StatusConflict:
		if msg == "" {
			msg = "order conflicts with an existing order"
		}
		return pkgerrors.New(pkgerrors.CodeConflict, msg)
	default:
		snippet := raw
		if int64(len(snippet)) > responseBodyReadLimit {
			snippet = snippet[:responseBodyReadLimit]
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(snippet))), "order request failed")
	}
}

func upstreamMessage(raw []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if nested, ok := payload["error"].(map[string]any); ok {
		return stringField(nested, "message")
	}
	return stringField(payload, "message", "error")
}
