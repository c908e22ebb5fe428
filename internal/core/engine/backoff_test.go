package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeDelayDoubles(t *testing.T) {
	require.Equal(t, time.Second, ComputeDelay(0, time.Second))
	require.Equal(t, 2*time.Second, ComputeDelay(1, time.Second))
	require.Equal(t, 4*time.Second, ComputeDelay(2, time.Second))
	require.Equal(t, 8*time.Second, ComputeDelay(3, time.Second))
}

func TestComputeDelayCapped(t *testing.T) {
	require.Equal(t, DefaultMaxDelay, ComputeDelay(4, time.Second))
	require.Equal(t, DefaultMaxDelay, ComputeDelay(200, time.Second))
	require.Equal(t, time.Second, ComputeDelay(-3, time.Second))
}

func TestBackoffCustomCeiling(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: 300 * time.Millisecond}
	require.Equal(t, 100*time.Millisecond, b.Delay(0))
	require.Equal(t, 200*time.Millisecond, b.Delay(1))
	require.Equal(t, 300*time.Millisecond, b.Delay(2))
}

func TestExtractQuotaRetryAfter(t *testing.T) {
	cases := []struct {
		name string
		text string
		want time.Duration
		ok   bool
	}{
		{"grpc", "429 Quota exceeded ... retry_delay {\n  seconds: 45\n}", 45 * time.Second, true},
		{"grpc compact", "retry_delay{seconds:7}", 7 * time.Second, true},
		{"json", `{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "31s"}`, 31 * time.Second, true},
		{"json fractional", `"retryDelay": "12.5s"`, 12 * time.Second, true},
		{"header", "Retry-After: 20", 20 * time.Second, true},
		{"prose", "Please retry in 9.2s.", 9 * time.Second, true},
		{"absent", "quota exceeded for metric", 0, false},
		{"empty", "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractQuotaRetryAfter(tc.text)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCap(t *testing.T) {
	require.Equal(t, DefaultMaxDelay, Cap(45*time.Second, DefaultMaxDelay))
	require.Equal(t, 3*time.Second, Cap(3*time.Second, DefaultMaxDelay))
	require.Equal(t, time.Duration(0), Cap(-time.Second, DefaultMaxDelay))
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestSleepCompletes(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var c Cooldown
	require.False(t, c.Active(now))

	until := c.Arm(now, 45*time.Second)
	require.Equal(t, now.Add(45*time.Second), until)
	require.True(t, c.Active(now.Add(44*time.Second)))
	require.False(t, c.Active(now.Add(45*time.Second)))
	require.Equal(t, 15*time.Second, c.Remaining(now.Add(30*time.Second)))

	c.Arm(now, 10*time.Second)
	require.Equal(t, now.Add(10*time.Second), c.Until)

	c.Reset()
	require.False(t, c.Active(now))
}
