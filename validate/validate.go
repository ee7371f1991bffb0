// Package validate checks user supplied numbers before they reach the engine.
package validate

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinIntervalMs = 10
	MaxIntervalMs = 2000
)

// Error rejects a malformed interval or cutoff.
type Error struct {
	Field string
	Value string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Msg)
}

// ClampInterval bounds ms to [MinIntervalMs, MaxIntervalMs].
func ClampInterval(ms int) int {
	if ms < MinIntervalMs {
		return MinIntervalMs
	}
	if ms > MaxIntervalMs {
		return MaxIntervalMs
	}
	return ms
}

// ParseInterval reads a polling interval in milliseconds. Non numeric input is
// rejected; out of range values are clamped and reported through clamped.
func ParseInterval(raw string) (ms int, clamped bool, err error) {
	raw = strings.TrimSpace(raw)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, &Error{Field: "polling interval", Value: raw, Msg: "expected whole milliseconds"}
	}
	ms = ClampInterval(v)
	return ms, ms != v, nil
}

// ParseCutoff reads a duration cutoff in seconds. Both "3,5" and "3.5" are
// accepted; negative values are rejected.
func ParseCutoff(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return 0, &Error{Field: "duration cutoff", Value: raw, Msg: "expected a decimal number >= 0, e.g. 3,5"}
	}
	if v < 0 {
		return 0, &Error{Field: "duration cutoff", Value: raw, Msg: "must be >= 0"}
	}
	return v, nil
}
