package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, ExpiresWithin(now.Add(30*time.Second), time.Minute, now))
	require.True(t, ExpiresWithin(now.Add(-time.Hour), 0, now))
	require.False(t, ExpiresWithin(now.Add(2*time.Minute), time.Minute, now))
	require.False(t, ExpiresWithin(time.Time{}, time.Hour, now))
}
