// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry runs calls to external collaborators with a per-attempt
// timeout and bounded exponential backoff.
//
// Only retryable failures (core.IsRetryable) are repeated. Malformed
// responses, configuration errors and caller cancellation return at once.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. It doubles per retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Zero means no cap.
	MaxDelay time.Duration

	// Timeout bounds each attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration
}

// DefaultPolicy returns three attempts, 500ms base backoff and a 30s
// per-attempt timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 || p.Timeout < 0 {
		return ErrInvalidDelay
	}
	return nil
}

// Delay returns the backoff after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs operation until it succeeds, fails with a non-retryable error or
// the attempts are used up. Returns the error from the last attempt, or
// ctx.Err() once the caller's context is done.
func Do(ctx context.Context, policy Policy, operation func(ctx context.Context) error) error {
	_, err := DoValue(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// DoValue is Do for operations producing a value.
func DoValue[T any](ctx context.Context, policy Policy, operation func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := runAttempt(ctx, policy.Timeout, operation)
		if err == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return value, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		lastErr = err
		if !core.IsRetryable(err) {
			return zero, err
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", policy.MaxAttempts, "error", err)

		// Don't sleep after the last attempt
		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, operation func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return operation(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return operation(attemptCtx)
}
