package utils

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("battery staple", hash))
	assert.False(t, CheckPassword("correct horse", ""))
}

func TestHashPasswordTooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestParseOptionalInt(t *testing.T) {
	cases := []struct {
		raw  string
		want *int
		ok   bool
	}{
		{"", nil, true},
		{"null", nil, true},
		{`""`, nil, true},
		{"5", intPtr(5), true},
		{`"3"`, intPtr(3), true},
		{`" 4 "`, intPtr(4), true},
		{"2.0", intPtr(2), true},
		{"2.5", nil, false},
		{`"abc"`, nil, false},
		{"true", nil, false},
		{"6", intPtr(6), true},
	}
	for _, tc := range cases {
		got, ok := ParseOptionalInt(json.RawMessage(tc.raw))
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), d)

	d, ok = ParseDate("2024-03-05T10:30:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)

	_, ok = ParseDate("yesterday")
	assert.False(t, ok)
}

func intPtr(n int) *int { return &n }
