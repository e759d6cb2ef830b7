package orchestrator

import (
	"math/rand"
	"time"
)

// serviceBackoff tracks exponential-backoff-with-jitter reinit timing for
// one unhealthy service across recovery ticks. Rather than a blocking
// retry-until-success loop, the recovery loop needs a persistent
// per-service timer it consults once per tick without blocking the tick.
type serviceBackoff struct {
	base        time.Duration
	max         time.Duration
	current     time.Duration
	nextAttempt time.Time
	unhealthySince time.Time
	inBackoff   bool
}

func newServiceBackoff(base, max time.Duration) *serviceBackoff {
	return &serviceBackoff{base: base, max: max}
}

// observeHealthy resets the backoff state once a service reports healthy.
func (b *serviceBackoff) observeHealthy() {
	b.current = 0
	b.inBackoff = false
	b.unhealthySince = time.Time{}
}

// dueForAttempt reports whether a reinit attempt should fire now, given the
// service has been unhealthy for at least gracePeriod. now is passed in so
// callers that can't use time.Now() (workflow/test contexts) stay
// deterministic.
func (b *serviceBackoff) dueForAttempt(now time.Time, gracePeriod time.Duration) bool {
	if b.unhealthySince.IsZero() {
		b.unhealthySince = now
		return false
	}
	if now.Sub(b.unhealthySince) < gracePeriod {
		return false
	}
	if !b.inBackoff {
		return true
	}
	return !now.Before(b.nextAttempt)
}

// recordAttempt schedules the next allowed attempt after one has just run,
// advancing the exponential delay with +/-20% jitter.
func (b *serviceBackoff) recordAttempt(now time.Time) {
	if b.current == 0 {
		b.current = b.base
	} else {
		b.current *= 2
	}
	if b.current > b.max {
		b.current = b.max
	}

	jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(b.current))
	delay := b.current + jitter
	if delay < 0 {
		delay = b.current
	}

	b.inBackoff = true
	b.nextAttempt = now.Add(delay)
}
