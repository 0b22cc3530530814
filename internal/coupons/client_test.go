package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/pkg/breaker"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(&http.Client{Transport: rt})}, opts...)
	client, err := NewClient("http://promotions.test/", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestValidateSendsNormalizedCodeAndTotal(t *testing.T) {
	var capturedURL string
	var payload map[string]any

	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		if req.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", req.Method)
		}
		body, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"data":{"valid":true,"discount_amount":500,"message":"Saved 5.00"}}`), nil
	})

	result, err := client.Validate(context.Background(), "  save10 ", 5117)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if capturedURL != "http://promotions.test/coupons/validate" {
		t.Fatalf("unexpected url %q", capturedURL)
	}
	if payload["code"] != "SAVE10" {
		t.Fatalf("expected normalized code, got %v", payload["code"])
	}
	if payload["order_total"] != float64(5117) {
		t.Fatalf("expected order_total 5117, got %v", payload["order_total"])
	}
	if !result.Valid || result.DiscountCents != 500 || result.Code != "SAVE10" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestValidateEmptyCodeSendsNothing(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, `{}`), nil
	})

	_, err := client.Validate(context.Background(), "   ", 100)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no request, got %d", calls)
	}
}

func TestValidateInvalidCodeIsNotAnError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		msg    string
	}{
		{name: "flat invalid", status: http.StatusOK, body: `{"valid":false,"message":"Expired","discount_amount":"900"}`, msg: "Expired"},
		{name: "not found", status: http.StatusNotFound, body: `{"error":{"message":"Unknown code"}}`, msg: "Unknown code"},
		{name: "unprocessable without body", status: http.StatusUnprocessableEntity, body: ``, msg: "coupon is not valid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})
			result, err := client.Validate(context.Background(), "bogus", 1000)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result.Valid || result.DiscountCents != 0 {
				t.Fatalf("expected invalid result with no discount, got %+v", result)
			}
			if result.Message != tc.msg {
				t.Fatalf("expected message %q, got %q", tc.msg, result.Message)
			}
		})
	}
}

func TestValidateNumericStringsAndMissingFields(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"valid":"true","discount_amount":"250"}`), nil
	})
	result, err := client.Validate(context.Background(), "x", 1000)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid || result.DiscountCents != 250 {
		t.Fatalf("unexpected result %+v", result)
	}

	client = newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"valid":true}`), nil
	})
	result, err = client.Validate(context.Background(), "x", 1000)
	if err != nil || result.DiscountCents != 0 {
		t.Fatalf("expected missing discount to default to 0, got %+v (%v)", result, err)
	}
}

func TestValidateDependencyFailures(t *testing.T) {
	cases := []struct {
		name string
		rt   roundTripFunc
	}{
		{name: "network", rt: func(*http.Request) (*http.Response, error) { return nil, errors.New("dial tcp: refused") }},
		{name: "server error", rt: func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadGateway, `upstream down`), nil
		}},
		{name: "garbage body", rt: func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `<html>`), nil
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.rt)
			_, err := client.Validate(context.Background(), "SAVE", 100)
			if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
				t.Fatalf("expected dependency error, got %v", err)
			}
		})
	}
}

func TestValidateBreakerShortCircuits(t *testing.T) {
	calls := 0
	b := breaker.New[*Result](breaker.Settings{Name: "promotions", MaxFailures: 1, OpenTimeout: time.Minute}, nil)
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("timeout")
	}, WithBreaker(b))

	_, _ = client.Validate(context.Background(), "A", 1)
	_, err := client.Validate(context.Background(), "A", 1)
	if calls != 1 {
		t.Fatalf("expected breaker to stop the second call, calls=%d", calls)
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error from open breaker, got %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(" "); !errors.Is(err, errBaseURLRequired) {
		t.Fatalf("expected base url error, got %v", err)
	}
	var nilClient *Client
	if _, err := nilClient.Validate(context.Background(), "A", 1); !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error for nil client, got %v", err)
	}
}

func TestDecodeResultKeepsLargeDiscountExact(t *testing.T) {
	t.Parallel()

	result := decodeResult([]byte(`{"data":{"valid":true,"discount_cents":9007199254740993}}`))
	if !result.Valid || result.DiscountCents != 9007199254740993 {
		t.Fatalf("expected exact discount above 2^53, got %+v", result)
	}
	if got := decodeResult([]byte(`{"valid":true,"discount":"12.00"}`)).DiscountCents; got != 12 {
		t.Fatalf("expected decimal string truncated to 12, got %d", got)
	}
}
