package security

import (
	"fmt"
	"strconv"
	"time"
)

// truthy reports whether a raw property value counts as boolean true:
// true, "true", 1, or "1".
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "1"
	case int:
		return val == 1
	case int64:
		return val == 1
	case float64:
		return val == 1
	default:
		return false
	}
}

// asBool converts a raw property value to a bool where possible.
// Accepts booleans and the strings "true"/"false".
func asBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		if val == "true" {
			return true, true
		}
		if val == "false" {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// toFloat64 converts a raw value to float64 if possible.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// stringify renders any value the way string comparisons expect it.
func stringify(v any) string {
	return fmt.Sprintf("%v", v)
}

// timeLayouts are the accepted string timestamp formats, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp coerces a raw value (ISO-8601 string or epoch number) to a
// time. Epoch values above 1e12 are interpreted as milliseconds.
func parseTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		f, ok := toFloat64(v)
		if !ok || f <= 0 {
			return time.Time{}, false
		}
		if f > 1e12 {
			return time.UnixMilli(int64(f)), true
		}
		return time.Unix(int64(f), 0), true
	}
}
