// Package sanitize coerces untrusted client input into safe bounded
// values. These functions are the only place request data becomes trusted
// data; they are total and never panic.
package sanitize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxIDLen bounds player and game identifiers.
	MaxIDLen = 96

	// DefaultTopLimit is used when no usable limit is supplied.
	DefaultTopLimit = 10
	MinTopLimit     = 1
	MaxTopLimit     = 50
)

// toNumber attempts to interpret an arbitrary decoded JSON value (or a raw
// query string) as a finite float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return toNumber(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return toNumber(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return toNumber(f)
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// floorToInt64 floors a non-negative finite float, saturating at MaxInt64
// so a huge input cannot wrap negative in the conversion.
func floorToInt64(f float64) int64 {
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(f))
}

// ToSafeScore returns a non-negative integer score for any input.
func ToSafeScore(v any) int64 {
	f, ok := toNumber(v)
	if !ok {
		return 0
	}
	if f < 0 {
		return 0
	}
	return floorToInt64(f)
}

// ToSafeTimestamp returns a non-negative millisecond timestamp, falling
// back when the input is not a finite number.
func ToSafeTimestamp(v any, fallback int64) int64 {
	f, ok := toNumber(v)
	if !ok {
		return fallback
	}
	if f < 0 {
		return 0
	}
	return floorToInt64(f)
}

// ClampTopLimit bounds a requested top-N size to [MinTopLimit, MaxTopLimit],
// defaulting when the input is unusable. The bounds are applied on the
// float so an out-of-int-range input clamps instead of wrapping.
func ClampTopLimit(v any) int {
	f, ok := toNumber(v)
	if !ok {
		return DefaultTopLimit
	}
	if f < MinTopLimit {
		return MinTopLimit
	}
	if f > MaxTopLimit {
		return MaxTopLimit
	}
	return int(math.Floor(f))
}

// SanitizeString trims the input, substitutes the fallback when empty and
// truncates to at most maxLen bytes on a rune boundary, so the result is
// always valid UTF-8.
func SanitizeString(s, fallback string, maxLen int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		s = fallback
	}
	if maxLen > 0 && len(s) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// SanitizeID strips every character outside [A-Za-z0-9_-:.] and truncates
// to MaxIDLen. An empty result means the id is invalid; callers must not
// substitute a fallback for it.
func SanitizeID(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-', r == ':', r == '.':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > MaxIDLen {
		out = out[:MaxIDLen]
	}
	return out
}
