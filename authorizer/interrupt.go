package authorizer

import (
	"os"
	"os/signal"
	"sync"
)

// interruptHandler routes the first termination signal received during a session to onSignal.
// Each session owns its channel, so restoring one session never affects another.
type interruptHandler struct {
	ch   chan os.Signal
	quit chan struct{}
	wg   sync.WaitGroup

	mu       sync.Mutex
	received os.Signal
}

func installInterruptHandler(signals []os.Signal, onSignal func(os.Signal)) *interruptHandler {
	h := &interruptHandler{
		ch:   make(chan os.Signal, 1),
		quit: make(chan struct{}),
	}
	if len(signals) == 0 {
		return h
	}
	signal.Notify(h.ch, signals...)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		select {
		case sig := <-h.ch:
			// A second signal during teardown gets the default behaviour again.
			signal.Stop(h.ch)
			h.mu.Lock()
			h.received = sig
			h.mu.Unlock()
			onSignal(sig)
		case <-h.quit:
		}
	}()
	return h
}

// Restore returns the signals to their previous behaviour and waits for the handler goroutine.
func (h *interruptHandler) Restore() {
	if h == nil {
		return
	}
	signal.Stop(h.ch)
	close(h.quit)
	h.wg.Wait()
}

// Signal returns the signal that interrupted the session, if any.
func (h *interruptHandler) Signal() os.Signal {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.received
}
