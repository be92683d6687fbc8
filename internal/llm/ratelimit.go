package llm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// TokenEstimator estimates token counts for rate limiting
type TokenEstimator struct{}

// EstimateTokens uses a rough approximation: chars/4 + 20% buffer
func (TokenEstimator) EstimateTokens(text string) int {
	return int(float64(len(text)/4) * 1.2)
}

// EstimateMessages estimates tokens for a slice of messages
func (e TokenEstimator) EstimateMessages(messages []Message) int {
	total := 0
	for _, msg := range messages {
		// ~4 tokens of structure per message
		total += 4
		total += e.EstimateTokens(msg.Text())
		for _, call := range msg.ToolCalls {
			total += 10 + len(call.Args)*8
		}
	}
	return total
}

// WaitInfo describes a rate limit pause.
type WaitInfo struct {
	Duration    time.Duration // How long to wait
	Reason      string        // e.g. "token bucket cooldown" or "retrying after model error"
	Attempt     int           // Current attempt number (1-based, 0 if not a retry)
	MaxAttempts int           // Maximum number of attempts (0 if not a retry)
}

// WaitCallback is called when a request must wait.
// It should block for the specified duration or until context is cancelled.
// If nil, the default time.After behavior is used.
type WaitCallback func(ctx context.Context, info WaitInfo) error

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	onWait  WaitCallback
}

// NewTokenBucket converts tokensPerMinute to a per-second limiter with a
// burst of ten seconds' worth of tokens.
func NewTokenBucket(tokensPerMinute int) *TokenBucket {
	tokensPerSecond := float64(tokensPerMinute) / 60.0
	burstSize := tokensPerMinute / 6
	if burstSize < 1000 {
		burstSize = 1000
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), burstSize),
	}
}

// SetWaitCallback sets a callback to be invoked when waiting for tokens
func (tb *TokenBucket) SetWaitCallback(cb WaitCallback) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.onWait = cb
}

// Wait blocks until the specified number of tokens are available
func (tb *TokenBucket) Wait(ctx context.Context, tokens int) error {
	tb.mu.Lock()
	onWait := tb.onWait
	tb.mu.Unlock()

	// requests larger than the burst are clamped so they can still proceed
	if b := tb.limiter.Burst(); tokens > b {
		tokens = b
	}

	reservation := tb.limiter.ReserveN(time.Now(), tokens)
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}

	if onWait != nil {
		if err := onWait(ctx, WaitInfo{Duration: delay, Reason: "token bucket cooldown"}); err != nil {
			reservation.Cancel()
			return err
		}
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}

// RateLimitedModel throttles requests to stay under a tokens-per-minute budget.
type RateLimitedModel struct {
	inner     Model
	bucket    *TokenBucket
	estimator TokenEstimator
	log       *zap.Logger
}

// NewRateLimitedModel wraps inner with a token bucket.
func NewRateLimitedModel(inner Model, tokensPerMinute int) *RateLimitedModel {
	return &RateLimitedModel{
		inner:  inner,
		bucket: NewTokenBucket(tokensPerMinute),
		log:    logging.Named("ratelimit"),
	}
}

// SetWaitCallback lets the UI render cooldowns.
func (m *RateLimitedModel) SetWaitCallback(cb WaitCallback) {
	m.bucket.SetWaitCallback(cb)
}

// Name delegates to the inner model.
func (m *RateLimitedModel) Name() string {
	return m.inner.Name()
}

// Invoke waits for budget, then forwards the request.
func (m *RateLimitedModel) Invoke(ctx context.Context, threadID string, messages []Message, tools []ToolDefinition) (*Response, error) {
	// ~100 tokens per tool definition
	estimated := m.estimator.EstimateMessages(messages) + len(tools)*100
	m.log.Debug("rate limit reservation", logging.ThreadID(threadID), zap.Int("estimated_tokens", estimated))

	if err := m.bucket.Wait(ctx, estimated); err != nil {
		return nil, err
	}
	return m.inner.Invoke(ctx, threadID, messages, tools)
}
