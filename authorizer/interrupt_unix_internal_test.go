//go:build unix

package authorizer

import (
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInterruptHandler_SecondSignalNotSwallowed(t *testing.T) {
	// Keeps SIGUSR1 from terminating the test binary once the handler lets go of it.
	observer := make(chan os.Signal, 2)
	signal.Notify(observer, syscall.SIGUSR1)
	defer signal.Stop(observer)

	handled := make(chan struct{})
	h := installInterruptHandler([]os.Signal{syscall.SIGUSR1}, func(os.Signal) { close(handled) })
	defer h.Restore()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("first signal not handled")
	}
	<-observer

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-observer:
	case <-time.After(2 * time.Second):
		t.Fatal("second signal not delivered")
	}
	require.Len(t, h.ch, 0, "handler channel still registered after the first signal")
	require.Equal(t, syscall.SIGUSR1, h.Signal())
}
