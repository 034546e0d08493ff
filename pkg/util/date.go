package util

import (
	"strconv"
	"time"
)

// UnixAuto converts a unix timestamp given in seconds or milliseconds.
// Values above 1e11 are treated as milliseconds.
func UnixAuto(ts int64) time.Time {
	if ts > 1e11 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds or milliseconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts), true
	}
	return time.Time{}, false
}
