package resilience

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryAfterParsing(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	d, ok := retryAfter("3", now)
	require.True(t, ok)
	require.Equal(t, 3*time.Second, d)

	d, ok = retryAfter(now.Add(10*time.Second).Format(http.TimeFormat), now)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, d)

	d, ok = retryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now)
	require.True(t, ok)
	require.Zero(t, d)

	for _, bad := range []string{"", "-1", "soon"} {
		_, ok = retryAfter(bad, now)
		require.False(t, ok, bad)
	}
}
