package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

// ParseResponse decodes the order service reply. Both {"data": {...}} and flat
// payloads are accepted, numbers may arrive as JSON numbers or numeric strings, and
// missing numbers default to 0. A reply without a shipping address gets fallback and
// one without any identifier leaves OrderNumber empty for the caller to fill in.
// Only an undecodable body is an error.
func ParseResponse(raw []byte, fallback types.ShippingAddress) (*Order, error) {
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode order response")
	}
	if inner, ok := payload["data"].(map[string]any); ok {
		payload = inner
	}
	if inner, ok := payload["order"].(map[string]any); ok {
		payload = inner
	}

	order := &Order{
		ID:            stringField(payload, "id", "order_id"),
		OrderNumber:   stringField(payload, "order_number", "number"),
		Status:        stringField(payload, "status"),
		Currency:      stringField(payload, "currency"),
		SubtotalCents: intField(payload, "subtotal", "subtotal_cents"),
		ShippingCents: intField(payload, "shipping", "shipping_cost", "shipping_cents"),
		TaxCents:      intField(payload, "tax", "tax_amount", "tax_cents"),
		DiscountCents: intField(payload, "discount", "discount_amount", "discount_cents"),
		TotalCents:    intField(payload, "total", "total_amount", "total_cents"),
		ItemCount:     int(intField(payload, "item_count")),
	}
	if order.OrderNumber == "" {
		order.OrderNumber = order.ID
	}
	if order.ItemCount == 0 {
		if items, ok := payload["items"].([]any); ok {
			order.ItemCount = len(items)
		}
	}
	if ts := stringField(payload, "created_at", "placed_at"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			order.PlacedAt = &parsed
		}
	}

	order.ShippingAddress = addressFrom(payload, fallback)
	return order, nil
}

func addressFrom(payload map[string]any, fallback types.ShippingAddress) types.ShippingAddress {
	if nested, ok := payload["shipping_address"].(map[string]any); ok {
		addr := types.ShippingAddress{
			Name:       stringField(nested, "name"),
			Phone:      stringField(nested, "phone"),
			Line1:      stringField(nested, "line1"),
			City:       stringField(nested, "city"),
			State:      stringField(nested, "state"),
			PostalCode: stringField(nested, "postal_code"),
			Country:    stringField(nested, "country"),
		}
		if line2 := stringField(nested, "line2"); line2 != "" {
			addr.Line2 = &line2
		}
		if !addr.IsZero() {
			return addr
		}
	}

	addr := types.ShippingAddress{
		Name:       stringField(payload, "shipping_name"),
		Phone:      stringField(payload, "shipping_phone"),
		Line1:      stringField(payload, "shipping_line1"),
		City:       stringField(payload, "shipping_city"),
		State:      stringField(payload, "shipping_state"),
		PostalCode: stringField(payload, "shipping_postal_code"),
		Country:    stringField(payload, "shipping_country"),
	}
	if line2 := stringField(payload, "shipping_line2"); line2 != "" {
		addr.Line2 = &line2
	}
	if addr.IsZero() {
		return fallback
	}
	return addr
}

func stringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func intField(payload map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case json.Number:
			if n, ok := numberToInt(v); ok {
				return n
			}
		case string:
			if n, ok := numberToInt(json.Number(strings.TrimSpace(v))); ok {
				return n
			}
		}
	}
	return 0
}

// numberToInt keeps integers exact and truncates decimals like "45.00".
func numberToInt(n json.Number) (int64, bool) {
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func (o *Order) String() string {
	return fmt.Sprintf("order %s (%s)", o.OrderNumber, o.Status)
}
