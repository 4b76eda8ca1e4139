package client

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultMaxAttempts    = 5
)

var ErrGaveUp = errors.New("reconnect attempts exhausted")

// Reconnector paces retries with a fixed delay and a bounded attempt count.
type Reconnector struct {
	delay       time.Duration
	maxAttempts int
	attempts    int
}

func NewReconnector(delay time.Duration, maxAttempts int) *Reconnector {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Reconnector{delay: delay, maxAttempts: maxAttempts}
}

// Wait consumes one attempt and sleeps for the delay. It returns ErrGaveUp
// once the bound is spent and ctx.Err() if ctx ends first.
func (r *Reconnector) Wait(ctx context.Context) error {
	if r.attempts >= r.maxAttempts {
		return ErrGaveUp
	}
	r.attempts++

	timer := time.NewTimer(r.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset after a successful connect
func (r *Reconnector) Reset() {
	r.attempts = 0
}

func (r *Reconnector) Attempts() int {
	return r.attempts
}
