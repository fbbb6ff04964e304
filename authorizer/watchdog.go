package authorizer

import (
	"sync"
	"time"
)

// watchdog calls onExpire once after the timeout unless stopped first.
// A nil *watchdog is a disabled watchdog.
type watchdog struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	expired bool
}

func startWatchdog(timeout time.Duration, onExpire func()) *watchdog {
	w := &watchdog{}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timer = time.AfterFunc(timeout, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.expired = true
		w.mu.Unlock()
		onExpire()
	})
	return w
}

// Stop cancels the timer. After Stop returns the expired flag can no longer change.
func (w *watchdog) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}

func (w *watchdog) Expired() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}
