// internal/server/params.go
package server

import (
	"fmt"
	"strconv"
	"time"
)

// parseTime accepts RFC3339 or unix seconds (fractional allowed). Empty selects fallback.
func parseTime(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", raw)
	}
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), nil
}

// parseStep accepts a Go duration or a number of seconds. Empty selects 15s.
func parseStep(raw string) (time.Duration, error) {
	if raw == "" {
		return 15 * time.Second, nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("invalid step %q", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
