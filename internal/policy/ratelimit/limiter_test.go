package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitDelaysSecondRequest(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		observed []string
	)
	l := New(Config{
		DefaultRPS:   10, // one token every 100ms
		DefaultBurst: 1,
		OnDelay: func(host string, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, host)
		},
	})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://Store.example.com/api"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://store.example.com/other"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"store.example.com"}, observed)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.com/1"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterHostOverride(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1000, DefaultBurst: 1, HostRPS: map[string]float64{"slow.example.com": 0.5}})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://slow.example.com/x"))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(short, "https://slow.example.com/x"))
}

func TestLimiterZeroRateIsUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(ctx, "https://example.com"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
