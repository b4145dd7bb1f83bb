package server

import (
	"sync"
	"time"
)

// slidingWindow is a per-connection sliding-window frame counter. A frame is
// admitted when fewer than limit frames were admitted within the window;
// rejected frames do not record a timestamp.
type slidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	times  []time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &slidingWindow{
		window: window,
		limit:  limit,
	}
}

// Allow prunes timestamps older than the window and admits the frame if the
// cap has not been reached.
func (w *slidingWindow) Allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = kept

	if len(w.times) >= w.limit {
		return false
	}

	w.times = append(w.times, now)
	return true
}
