// Package retry runs unreliable calls (LLM completions, Mastodon posts, feed
// fetches) under a bounded exponential backoff policy.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// DefaultPolicy is used when a caller leaves the policy zero valued.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// Classifier reports whether err is worth another attempt. A nil Classifier
// treats every error as retryable.
type Classifier func(error) bool

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = 2
	return bo
}

// Do calls op until it succeeds, the classifier rejects an error, the attempt
// budget is spent, or ctx is cancelled. The returned error wraps the last
// failure so callers can still inspect it with errors.As.
func Do[T any](ctx context.Context, p Policy, classify Classifier, logger *zap.Logger, op func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := 0
	operation := func() (T, error) {
		attempts++
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		if classify != nil && !classify(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("attempt failed, backing off",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	value, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return value, fmt.Errorf("gave up after %d attempt(s): %w", attempts, err)
	}
	return value, nil
}
