package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "—"},
		{in: -time.Second, want: "—"},
		{in: 250 * time.Microsecond, want: "250µs"},
		{in: 1500*time.Millisecond + 300, want: "1.5s"},
		{in: 90*time.Second + 400*time.Millisecond, want: "1m30s"},
		{in: 2*time.Hour + 59*time.Millisecond, want: "2h0m0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "input %s", tt.in)
	}
}
