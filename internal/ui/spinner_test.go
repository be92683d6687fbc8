package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerkeliumLabs/berkelium/internal/llm"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"seconds only", 45 * time.Second, "45s"},
		{"one minute", 60 * time.Second, "1m00s"},
		{"one minute thirty", 90 * time.Second, "1m30s"},
		{"five minutes thirty", 5*time.Minute + 30*time.Second, "5m30s"},
		{"negative rounds to zero", -5 * time.Second, "0s"},
		{"rounds up", 45*time.Second + 600*time.Millisecond, "46s"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, formatDuration(tc.duration))
		})
	}
}

func TestSpinnerContextCancellation(t *testing.T) {
	var errOut bytes.Buffer
	spinner := NewSpinner(NewOutputHandlerTo(&bytes.Buffer{}, &errOut, true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- spinner.Wait(ctx, llm.WaitInfo{Duration: 10 * time.Second, Reason: "token bucket cooldown"})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("spinner did not respond to context cancellation")
	}
}

func TestSpinnerShortWaitSkipsOutput(t *testing.T) {
	var errOut bytes.Buffer
	spinner := NewSpinner(NewOutputHandlerTo(&bytes.Buffer{}, &errOut, false))

	start := time.Now()
	require.NoError(t, spinner.Wait(context.Background(), llm.WaitInfo{Duration: 100 * time.Millisecond}))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Empty(t, errOut.String())
}

func TestSpinnerStaticWait(t *testing.T) {
	var errOut bytes.Buffer
	spinner := NewSpinner(NewOutputHandlerTo(&bytes.Buffer{}, &errOut, false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := spinner.Wait(ctx, llm.WaitInfo{
		Duration:    2 * time.Second,
		Reason:      "retrying after model error",
		Attempt:     2,
		MaxAttempts: 3,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "ℹ Model unavailable: waiting 2s (retry 2/3, retrying after model error)\n", errOut.String())
}

func TestSpinnerBuildStatusLine(t *testing.T) {
	spinner := NewSpinner(NewOutputHandlerTo(&bytes.Buffer{}, &bytes.Buffer{}, false))

	tests := []struct {
		name        string
		reason      string
		remaining   time.Duration
		attempt     int
		maxAttempts int
		expected    string
	}{
		{
			name:      "basic message",
			remaining: 45 * time.Second,
			expected:  "⠋ Rate limited | 45s remaining",
		},
		{
			name:        "with retry",
			attempt:     2,
			maxAttempts: 5,
			remaining:   30 * time.Second,
			expected:    "⠋ Rate limited | Retry 2/5 | 30s remaining",
		},
		{
			name:        "full info",
			reason:      "API returned 429",
			attempt:     3,
			maxAttempts: 5,
			remaining:   2*time.Minute + 15*time.Second,
			expected:    "⠋ Rate limited | Retry 3/5 | API returned 429 | 2m15s remaining",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := spinner.buildStatusLine("⠋", "Rate limited", tc.reason, tc.remaining, tc.attempt, tc.maxAttempts)
			assert.Equal(t, tc.expected, got)
		})
	}
}
