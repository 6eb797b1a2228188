package chat

import "sync"

// Autoscroll requests a scroll-to-end whenever the timeline grows. Rapid
// successive batches coalesce into at most one pending request; deletions
// and unchanged lengths never trigger one.
type Autoscroll struct {
	mu       sync.Mutex
	lastLen  int
	requests chan struct{}
}

func NewAutoscroll() *Autoscroll {
	return &Autoscroll{requests: make(chan struct{}, 1)}
}

// Observe records the latest timeline length.
func (a *Autoscroll) Observe(length int) {
	a.mu.Lock()
	grew := length > a.lastLen
	a.lastLen = length
	a.mu.Unlock()
	if !grew {
		return
	}
	select {
	case a.requests <- struct{}{}:
	default:
	}
}

// Requests yields coalesced scroll requests; the receiver drains one per
// render cycle.
func (a *Autoscroll) Requests() <-chan struct{} {
	return a.requests
}
