package apikeys

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowConsumesTokensAndRefills(t *testing.T) {
	s := New(Config{DefaultRateLimit: 2})
	now := time.Now()

	require.True(t, s.AllowAt("k1", now))
	require.True(t, s.AllowAt("k1", now))
	require.False(t, s.AllowAt("k1", now), "bucket should be empty after two requests")

	later := now.Add(30 * time.Second) // half the per-minute window refills one token
	require.True(t, s.AllowAt("k1", later))
	require.False(t, s.AllowAt("k1", later))
}

func TestAllowTracksKeysIndependently(t *testing.T) {
	s := New(Config{DefaultRateLimit: 1})
	now := time.Now()
	require.True(t, s.AllowAt("a", now))
	require.True(t, s.AllowAt("b", now))
	require.False(t, s.AllowAt("a", now))
}

func TestRecordUsageEnforcesMonthlyQuota(t *testing.T) {
	s := New(Config{DefaultMonthlyQuota: 2})
	now := time.Now()

	require.True(t, s.RecordUsageAt("k1", now))
	require.True(t, s.RecordUsageAt("k1", now))
	require.False(t, s.RecordUsageAt("k1", now), "third request exceeds quota of 2")
	require.Equal(t, int64(3), s.UsageThisMonth("k1"))
}

func TestRecordUsageResetsOnMonthRollover(t *testing.T) {
	s := New(Config{DefaultMonthlyQuota: 1})
	july := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	august := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, s.RecordUsageAt("k1", july))
	require.True(t, s.RecordUsageAt("k1", august), "new month resets the counter")
}

func TestSetRateLimitOverridesDefault(t *testing.T) {
	s := New(Config{DefaultRateLimit: 1})
	s.SetRateLimit("k1", 5)
	now := time.Now()
	for i := 0; i < 5; i++ {
		require.True(t, s.AllowAt("k1", now))
	}
	require.False(t, s.AllowAt("k1", now))
}
