package whmcs

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WHMCS returns GetProducts results in one of three shapes depending on
// version and result count:
//
//  1. {"result":"success","products":{"product":[{...},{...}]}}
//  2. {"result":"success","products":{"product":{...}}}        (single match)
//  3. [{...},{...}]                                            (bare list)
//
// normalizeProducts detects the shape and flattens all of them into one
// ordered list of records before any business logic runs. Each record keeps
// its raw JSON alongside the decoded fields so diagnostics can log the exact
// upstream bytes.

// productRecord is one normalized upstream product.
type productRecord struct {
	raw    json.RawMessage
	fields map[string]any
}

// apiEnvelope is the object-shaped WHMCS response wrapper.
type apiEnvelope struct {
	Result   string          `json:"result"`
	Message  string          `json:"message"`
	Products json.RawMessage `json:"products"`
}

// errAPIError signals an application-level failure reported in the body,
// independent of the HTTP status.
var errAPIError = errors.New("whmcs api error")

// normalizeProducts parses a GetProducts response body into a flat record
// list. An application-level error in the body is returned as an error so
// the caller can log it; it is never treated as an empty catalog.
func normalizeProducts(body []byte) ([]productRecord, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("empty response body")
	}

	// Shape 3: bare list at the top level.
	if trimmed[0] == '[' {
		return decodeRecordList(body)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	if env.Result == "error" {
		if env.Message != "" {
			return nil, fmt.Errorf("%w: %s", errAPIError, env.Message)
		}
		return nil, errAPIError
	}
	if len(env.Products) == 0 {
		return nil, nil
	}

	// The nested field is either {"product": <list|object>} or, leniently,
	// the list itself.
	nestedTrim := strings.TrimSpace(string(env.Products))
	if len(nestedTrim) > 0 && nestedTrim[0] == '[' {
		return decodeRecordList(env.Products)
	}

	var nested struct {
		Product json.RawMessage `json:"product"`
	}
	if err := json.Unmarshal(env.Products, &nested); err != nil {
		return nil, fmt.Errorf("decoding products field: %w", err)
	}
	if len(nested.Product) == 0 {
		return nil, nil
	}

	inner := strings.TrimSpace(string(nested.Product))
	if inner[0] == '[' {
		// Shape 1: list under the nested field.
		return decodeRecordList(nested.Product)
	}

	// Shape 2: single object under the nested field; treat as a
	// one-element list.
	rec, err := decodeRecord(nested.Product)
	if err != nil {
		return nil, err
	}
	return []productRecord{rec}, nil
}

func decodeRecordList(data json.RawMessage) ([]productRecord, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decoding product list: %w", err)
	}

	records := make([]productRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(raw json.RawMessage) (productRecord, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return productRecord{}, fmt.Errorf("decoding product record: %w", err)
	}
	return productRecord{raw: raw, fields: fields}, nil
}

// extractPrice walks the priority-ordered fallback chain and returns the
// first field that parses as a finite, strictly-positive number:
//
//	pricing.monthly -> pricing.<currency>.monthly -> pricing.price ->
//	bare-number pricing -> price -> monthly
//
// Fields that are present but invalid (zero, negative, non-numeric) do not
// stop the chain; if nothing in the chain yields a valid value the product
// has no usable price and is skipped by the caller.
func extractPrice(fields map[string]any, currency string) (float64, bool) {
	if pricing, ok := fields["pricing"]; ok {
		if m, ok := pricing.(map[string]any); ok {
			if v, ok := parsePositive(m["monthly"]); ok {
				return v, true
			}
			if cur, ok := m[currency].(map[string]any); ok {
				if v, ok := parsePositive(cur["monthly"]); ok {
					return v, true
				}
			}
			if v, ok := parsePositive(m["price"]); ok {
				return v, true
			}
		} else if v, ok := parsePositive(pricing); ok {
			// pricing itself is a bare number.
			return v, true
		}
	}
	if v, ok := parsePositive(fields["price"]); ok {
		return v, true
	}
	if v, ok := parsePositive(fields["monthly"]); ok {
		return v, true
	}
	return 0, false
}

// parsePositive accepts JSON numbers and numeric strings, rejecting anything
// that is not finite and strictly positive.
func parsePositive(v any) (float64, bool) {
	n, ok := parseNumber(v)
	if !ok {
		return 0, false
	}
	if n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// parseNumber coerces JSON number and string values into a float64.
func parseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
