package realtime

import (
	"sync"
	"time"
)

type limiterWindow struct {
	count   int
	resetAt time.Time
}

// Limiter bounds the frequency of one high-noise action per acting
// identity using a fixed window. The edge-of-window burst (up to double
// the limit across a boundary) is accepted: the guarded actions are
// abuse-mitigation targets, not correctness concerns.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*limiterWindow

	now func() time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*limiterWindow),
		now:     time.Now,
	}
}

// TryConsume reports whether the actor may perform the action now.
// Denial is an expected outcome, not an error.
func (l *Limiter) TryConsume(actorId string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[actorId]
	if !ok || now.After(w.resetAt) {
		l.windows[actorId] = &limiterWindow{
			count:   1,
			resetAt: now.Add(l.window),
		}

		return true
	}

	if w.count < l.limit {
		w.count++

		return true
	}

	return false
}
