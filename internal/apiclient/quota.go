package apiclient

import (
	"net/http"
	"strconv"
	"sync/atomic"
)

// Quota tracks the remaining-request counters parsed from every response's
// x-rl-hourly-remaining / x-rl-daily-remaining headers (§6, §12.1). It does
// not participate in any lock hierarchy; both fields are independent
// atomics.
type Quota struct {
	hourlyRemaining atomic.Int64
	dailyRemaining  atomic.Int64
}

// NewQuota returns a Quota with both counters set to -1 ("unknown"), the
// state before any response has been observed.
func NewQuota() *Quota {
	q := &Quota{}
	q.hourlyRemaining.Store(-1)
	q.dailyRemaining.Store(-1)

	return q
}

// observe updates the counters from a response's rate-limit headers. Headers
// absent or unparsable leave the prior value untouched.
func (q *Quota) observe(h http.Header) {
	if v, ok := parseRemaining(h.Get("x-rl-hourly-remaining")); ok {
		q.hourlyRemaining.Store(v)
	}

	if v, ok := parseRemaining(h.Get("x-rl-daily-remaining")); ok {
		q.dailyRemaining.Store(v)
	}
}

func parseRemaining(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// HourlyRemaining returns the last-observed hourly quota, or -1 if unknown.
func (q *Quota) HourlyRemaining() int64 { return q.hourlyRemaining.Load() }

// DailyRemaining returns the last-observed daily quota, or -1 if unknown.
func (q *Quota) DailyRemaining() int64 { return q.dailyRemaining.Load() }

// Exhausted reports whether either counter has reached zero, used by the
// update checker's cadence policy to skip a refresh cycle rather than issue
// a request doomed to 429 (§12.1).
func (q *Quota) Exhausted() bool {
	return q.hourlyRemaining.Load() == 0 || q.dailyRemaining.Load() == 0
}
