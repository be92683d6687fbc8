package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/BerkeliumLabs/berkelium/internal/config"
	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

// ResilientModel wraps a Model with retry logic and circuit breaking.
type ResilientModel struct {
	inner      Model
	cb         *CircuitBreaker
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	onWait     WaitCallback
	log        *zap.Logger
}

// NewResilientModel wraps the given model with resilience features.
func NewResilientModel(inner Model, cfg config.RateLimitConfig) *ResilientModel {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 1 * time.Second
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &ResilientModel{
		inner:      inner,
		cb:         NewCircuitBreaker(5, 30*time.Second),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		log:        logging.Named("resilient"),
	}
}

// SetWaitCallback is invoked before each retry sleep.
func (rm *ResilientModel) SetWaitCallback(cb WaitCallback) {
	rm.onWait = cb
}

// Name delegates to the inner model.
func (rm *ResilientModel) Name() string {
	return rm.inner.Name()
}

// Breaker exposes the circuit breaker for status display.
func (rm *ResilientModel) Breaker() *CircuitBreaker {
	return rm.cb
}

// Invoke sends a request with retry and circuit breaker protection.
func (rm *ResilientModel) Invoke(ctx context.Context, threadID string, messages []Message, tools []ToolDefinition) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= rm.maxRetries; attempt++ {
		if !rm.cb.Allow() {
			if lastErr == nil {
				lastErr = berrors.ModelUnavailable(fmt.Errorf("circuit open, retry in %s", rm.cb.RetryAfter().Round(time.Second)))
			}
			return nil, lastErr
		}

		resp, err := rm.inner.Invoke(ctx, threadID, messages, tools)
		if err == nil {
			rm.cb.RecordSuccess()
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		rm.cb.RecordFailure()
		if !berrors.IsRetryable(err) || attempt == rm.maxRetries {
			break
		}

		delay := rm.backoff(attempt)
		rm.log.Warn(logging.EventModelError,
			logging.ThreadID(threadID),
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", delay),
			logging.Error(err),
		)
		if err := rm.wait(ctx, WaitInfo{
			Duration:    delay,
			Reason:      "retrying after model error",
			Attempt:     attempt + 1,
			MaxAttempts: rm.maxRetries,
		}); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (rm *ResilientModel) wait(ctx context.Context, info WaitInfo) error {
	if rm.onWait != nil {
		return rm.onWait(ctx, info)
	}
	timer := time.NewTimer(info.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns exponential delay with 50-100% jitter.
func (rm *ResilientModel) backoff(attempt int) time.Duration {
	delay := rm.baseDelay * (1 << uint(attempt))
	if delay > rm.maxDelay || delay <= 0 {
		delay = rm.maxDelay
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + time.Duration(rand.Int64N(int64(half)))
}
