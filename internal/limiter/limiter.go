// Package limiter throttles repeated sign-in failures per login and client.
package limiter

import (
	"context"
	"time"
)

// Limiter controls sign-in attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether sign-in is currently allowed and the retry-after when it is not.
	Allow(ctx context.Context, login string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the counters after a successful sign-in.
	Success(ctx context.Context, login string, ipHash []byte) error
	// Failure records a failed attempt and may place a temporary block.
	Failure(ctx context.Context, login string, ipHash []byte) (bool, time.Duration, error)
}

// Nop never blocks. It backs tools that run without a client address.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }
func (Nop) Success(context.Context, string, []byte) error                      { return nil }
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
