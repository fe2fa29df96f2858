package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTimeRange(t *testing.T) {
	tests := []struct {
		token string
		hours int
	}{
		{"1h", 1},
		{"24h", 24},
		{"7d", 168},
		{"30d", 720},
		{"90d", 48},
		{"", 48},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			window := ResolveTimeRange(tt.token, 48)
			assert.Equal(t, tt.hours, window.Hours)
			assert.Equal(t, tt.token, window.Token)
		})
	}
}

func TestResolveTimeRangeDefaultOfDefault(t *testing.T) {
	assert.Equal(t, 24, ResolveTimeRange("bogus", 0).Hours)
}

func TestResolveInvestigationFilter(t *testing.T) {
	tests := []struct {
		filter string
		hours  int
	}{
		{"is in the last 1 complete day", 24},
		{"is in the last 7 complete days", 168},
		{"is in the last 30 complete days", 720},
		{"something else", 24},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.hours, ResolveInvestigationFilter(tt.filter, 24).Hours, tt.filter)
	}
}
