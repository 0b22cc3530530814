package coupons

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// decodeResult reads the verdict from either a {"data": {...}} envelope or a flat
// object. Missing fields default to zero values.
func decodeResult(body []byte) *Result {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return &Result{}
	}
	if inner, ok := raw["data"].(map[string]any); ok {
		raw = inner
	}

	result := &Result{
		Valid:   asBool(raw["valid"]),
		Message: asString(firstOf(raw, "message", "reason", "error")),
	}
	result.DiscountCents = asInt64(firstOf(raw, "discount_amount", "discount_cents", "discount"))
	return result
}

func firstOf(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if msg, ok := t["message"].(string); ok {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}

func asInt64(v any) int64 {
	var n json.Number
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
		return int64(f)
	}
	return 0
}
