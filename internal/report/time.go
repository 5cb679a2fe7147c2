package report

import "time"

// timestamp layouts accepted from the REST backend, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// MillisFromAny normalizes a backend timestamp value to epoch
// milliseconds. The document backend stores numbers (or a server
// sentinel that resolves to a time), the REST backend returns ISO-8601
// strings, and queued submissions carry client-clock millis. Anything
// unparsable resolves to now; this function never fails, because a
// report with a broken timestamp must still render and sync.
func MillisFromAny(v any) int64 {
	switch t := v.(type) {
	case nil:
		return time.Now().UnixMilli()
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case time.Time:
		return t.UnixMilli()
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UnixMilli()
			}
		}

		return time.Now().UnixMilli()
	default:
		return time.Now().UnixMilli()
	}
}
