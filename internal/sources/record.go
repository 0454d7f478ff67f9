package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one decoded upstream object. Marketplaces disagree on field
// names, so lookups take several candidate keys and dotted paths
// ("price.value") and return the first usable value.
type Record map[string]interface{}

// DecodeRecords accepts either a bare JSON array or an object wrapping the
// array under one of the given keys. Array items that are not objects are
// returned as nil records so the mapper can skip them individually.
func DecodeRecords(body []byte, wrappers ...string) ([]Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		found := false
		for _, key := range wrappers {
			if arr, ok := Record(v).Lookup(key); ok {
				if list, ok := arr.([]interface{}); ok {
					items = list
					found = true
					break
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("payload has none of the list keys %v", wrappers)
		}
	default:
		return nil, fmt.Errorf("unexpected payload type %T", raw)
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]interface{})
		records = append(records, Record(obj))
	}
	return records, nil
}

// Lookup resolves a dotted path.
func (r Record) Lookup(path string) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	var cur interface{} = map[string]interface{}(r)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the first non-empty scalar found under keys, as text.
func (r Record) String(keys ...string) string {
	for _, key := range keys {
		v, ok := r.Lookup(key)
		if !ok {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Decimal returns the first parseable amount under keys.
func (r Record) Decimal(keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		v, ok := r.Lookup(key)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case json.Number:
			if d, err := decimal.NewFromString(t.String()); err == nil {
				return d, true
			}
		case float64:
			return decimal.NewFromFloat(t), true
		case string:
			if d, ok := ParseAmount(t); ok {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

// Float returns the first numeric value under keys.
func (r Record) Float(keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := r.Lookup(key)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return f, true
			}
		case float64:
			return t, true
		case string:
			if d, ok := ParseAmount(t); ok {
				f, _ := d.Float64()
				return f, true
			}
		}
	}
	return 0, false
}

// Int returns the first integral value under keys. Fractions are truncated.
func (r Record) Int(keys ...string) (int64, bool) {
	f, ok := r.Float(keys...)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	// float64(MaxInt64) rounds up to 2^63, which int64 cannot hold.
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}

// Bool returns the first boolean-like value under keys.
func (r Record) Bool(keys ...string) (value bool, ok bool) {
	for _, key := range keys {
		v, found := r.Lookup(key)
		if !found {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b, true
			}
		case json.Number:
			if i, err := t.Int64(); err == nil {
				return i != 0, true
			}
		}
	}
	return false, false
}

// ParseAmount parses a human formatted amount such as "1.299,90", "$25.00"
// or "R$ 49". The last of '.' or ',' followed by at most two digits is taken
// as the decimal separator; other separators are grouping.
func ParseAmount(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" || clean == "-" {
		return decimal.Zero, false
	}

	sep := strings.LastIndexAny(clean, ".,")
	if sep >= 0 && len(clean)-sep-1 <= 2 {
		intPart := strings.NewReplacer(".", "", ",", "").Replace(clean[:sep])
		clean = intPart + "." + clean[sep+1:]
	} else {
		clean = strings.NewReplacer(".", "", ",", "").Replace(clean)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
