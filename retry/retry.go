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


// Package retry runs an operation with bounded attempts and exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// ErrInvalidMaxAttempts is returned when MaxAttempts is <= 0.
var ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt. It doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Zero leaves it uncapped.
	MaxDelay time.Duration
	// Jitter draws each delay uniformly from [0, backoff) ("full jitter").
	Jitter bool
}

// Exponential returns a jittered policy with base 2s and cap 8s.
func Exponential(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   2 * time.Second,
		MaxDelay:    8 * time.Second,
		Jitter:      true,
	}
}

// Immediate returns a policy that retries without waiting.
func Immediate(maxAttempts int) Policy {
	return Policy{MaxAttempts: maxAttempts}
}

// Backoff returns the un-jittered delay after the given 1-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
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

func (p Policy) delay(attempt int) time.Duration {
	d := p.Backoff(attempt)
	if p.Jitter && d > 0 {
		d = rand.N(d)
	}
	return d
}

// Do calls op until it succeeds, returns an error that retryable rejects,
// or MaxAttempts is reached. A nil retryable retries every error.
// Returns the error from the last attempt, or the context's error when it
// ends while waiting.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, retryable func(error) bool) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.delay(attempt)
		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", p.MaxAttempts, "delay", delay, "error", lastErr)
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
