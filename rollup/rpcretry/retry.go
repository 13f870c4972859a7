// Package rpcretry implements the bounded-backoff retry policy for
// transient RPC errors described in section 7 of the coordinator spec:
// "transient RPC errors are retried with bounded backoff at the
// callsite; structural errors propagate to the caller." It is grounded
// on the teacher's layered fallback-client wrappers in
// arbitrum/apibackend.go (timeoutFallbackClient, errorFilteredFallbackClient),
// generalized from a single-purpose HTTP wrapper into a reusable helper.
package rpcretry

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Policy configures bounded exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy makes up to 5 attempts (4 retries) with delay doubling
// from 100ms, capped at 2s.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

// IsTransient classifies an error as transient, eligible for retry.
// Structural errors (the sentinel kinds in rollup/types) are never
// transient and must not be passed a classifier that returns true for
// them; by default anything is considered transient except
// context.Canceled/context.DeadlineExceeded, which the caller's own
// deadline already governs.
type IsTransient func(error) bool

// AnyError treats every error except context cancellation/deadline as
// transient. Suitable default for dial/read failures against the anchor
// chain or the execution EVM.
func AnyError(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn, retrying per policy while isTransient(err) holds. It
// respects ctx cancellation between attempts and never retries past
// MaxAttempts.
func Do(ctx context.Context, policy Policy, isTransient IsTransient, label string, fn func(context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	delay := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}
		log.Warn("retrying transient RPC error", "call", label, "attempt", attempt, "err", lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return lastErr
}
