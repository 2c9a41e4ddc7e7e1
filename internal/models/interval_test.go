package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyncInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"24 hours", 24 * time.Hour},
		{"1 hour", time.Hour},
		{"30 minutes", 30 * time.Minute},
		{"2 Days", 48 * time.Hour},
		{" 1 week ", 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseSyncInterval(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseSyncInterval_invalid(t *testing.T) {
	for _, in := range []string{"", "hours", "0 hours", "-1 day", "5 fortnights", "1 2 3"} {
		_, err := ParseSyncInterval(in)
		assert.Error(t, err, in)
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	assert.True(t, IsDue(nil, "24 hours", now))

	recent := now.Add(-time.Hour)
	assert.False(t, IsDue(&recent, "24 hours", now))
	assert.True(t, IsDue(&recent, "30 minutes", now))

	old := now.Add(-25 * time.Hour)
	assert.True(t, IsDue(&old, "garbage", now), "invalid interval falls back to the default")
}

func TestChannelDisplayNames(t *testing.T) {
	custom := "My News"
	ch := Channel{Name: "news.uk", Title: "BBC News"}
	assert.Equal(t, "news.uk", ch.DisplayName())
	assert.Equal(t, "BBC News", ch.DisplayTitle())

	ch.NameCustom = &custom
	ch.TitleCustom = &custom
	assert.Equal(t, "My News", ch.DisplayName())
	assert.Equal(t, "My News", ch.DisplayTitle())

	bare := Channel{Name: "only"}
	assert.Equal(t, "only", bare.DisplayTitle())
}
