package sanitize

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestToSafeScore(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{name: "positive float", input: 99.9, want: 99},
		{name: "positive int", input: 500, want: 500},
		{name: "numeric string", input: "1234", want: 1234},
		{name: "negative", input: -3.0, want: 0},
		{name: "zero", input: 0.0, want: 0},
		{name: "NaN", input: math.NaN(), want: 0},
		{name: "positive infinity", input: math.Inf(1), want: 0},
		{name: "nil", input: nil, want: 0},
		{name: "object", input: map[string]any{"a": 1}, want: 0},
		{name: "array", input: []any{1, 2}, want: 0},
		{name: "garbage string", input: "not-a-number", want: 0},
		{name: "json number", input: json.Number("42"), want: 42},
		{name: "huge float saturates", input: 1e300, want: math.MaxInt64},
		{name: "max int64 boundary", input: 9.3e18, want: math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSafeScore(tt.input))
		})
	}
}

func TestToSafeTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		fallback int64
		want     int64
	}{
		{name: "valid", input: 1700000000123.0, fallback: 7, want: 1700000000123},
		{name: "negative clamps to zero", input: -5.0, fallback: 7, want: 0},
		{name: "NaN uses fallback", input: math.NaN(), fallback: 7, want: 7},
		{name: "nil uses fallback", input: nil, fallback: 7, want: 7},
		{name: "garbage uses fallback", input: "later", fallback: 7, want: 7},
		{name: "huge float saturates", input: 1e300, fallback: 7, want: math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSafeTimestamp(tt.input, tt.fallback))
		})
	}
}

func TestClampTopLimit(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
	}{
		{name: "in range", input: 25, want: 25},
		{name: "above max", input: 500, want: 50},
		{name: "below min", input: -3, want: 1},
		{name: "zero", input: 0, want: 1},
		{name: "garbage string", input: "abc", want: 10},
		{name: "empty string", input: "", want: 10},
		{name: "nil", input: nil, want: 10},
		{name: "fractional floors", input: 12.9, want: 12},
		{name: "huge float clamps to max", input: 1e300, want: 50},
		{name: "huge negative clamps to min", input: -1e300, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampTopLimit(tt.input))
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback string
		maxLen   int
		want     string
	}{
		{name: "plain", input: "Ann", fallback: "Player", maxLen: 32, want: "Ann"},
		{name: "trimmed", input: "  Ann  ", fallback: "Player", maxLen: 32, want: "Ann"},
		{name: "empty uses fallback", input: "", fallback: "Player", maxLen: 32, want: "Player"},
		{name: "whitespace uses fallback", input: "   ", fallback: "Player", maxLen: 32, want: "Player"},
		{name: "truncated", input: strings.Repeat("x", 100), fallback: "Player", maxLen: 32, want: strings.Repeat("x", 32)},
		// 한 is 3 bytes; 32 is not a rune boundary, so the cut walks back to 30
		{name: "truncates on rune boundary", input: strings.Repeat("한", 20), fallback: "Player", maxLen: 32, want: strings.Repeat("한", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeString(tt.input, tt.fallback, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "player-1", want: "player-1"},
		{name: "allowed punctuation", input: "a_b-c:d.e", want: "a_b-c:d.e"},
		{name: "strips illegal chars", input: "p l@a#y$e%r!", want: "player"},
		{name: "strips unicode", input: "플레이어abc", want: "abc"},
		{name: "empty", input: "", want: ""},
		{name: "only illegal chars", input: "!!!@@@", want: ""},
		{name: "truncates to max", input: strings.Repeat("a", 200), want: strings.Repeat("a", MaxIDLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeID(tt.input))
		})
	}
}
