package httpadapter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 3 * time.Minute

// OperatorLimiter keeps one token bucket per operator.
type OperatorLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	operators map[string]*operatorBucket
	lastPrune time.Time
	now       func() time.Time
}

type operatorBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewOperatorLimiter returns nil when rps is zero, which disables limiting.
func NewOperatorLimiter(rps float64, burst int) *OperatorLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &OperatorLimiter{
		limit:     rate.Limit(rps),
		burst:     burst,
		operators: make(map[string]*operatorBucket),
		now:       time.Now,
	}
}

func (l *OperatorLimiter) Allow(operator string) bool {
	l.mu.Lock()
	now := l.now()
	b, ok := l.operators[operator]
	if !ok {
		b = &operatorBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.operators[operator] = b
	}
	b.lastSeen = now
	if now.Sub(l.lastPrune) > time.Minute {
		l.pruneLocked(now)
	}
	l.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

func (l *OperatorLimiter) pruneLocked(now time.Time) {
	for op, b := range l.operators {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.operators, op)
		}
	}
	l.lastPrune = now
}
