package infra

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// NewReconnectBackOff returns the exponential policy with jitter used by
// stream supervisors. Call Reset after a successful (re)subscription.
func NewReconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.Reset()
	return b
}
