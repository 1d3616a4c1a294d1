//go:build unix

package lifecycle

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestOnSignalFlushesThenDelivers(t *testing.T) {
	var flushed atomic.Bool
	caught, stop := OnSignal(context.Background(), func(context.Context) error {
		flushed.Store(true)
		return nil
	}, time.Second, syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case sig := <-caught:
		if sig != syscall.SIGUSR1 {
			t.Errorf("sig = %v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("signal not handled")
	}
	if !flushed.Load() {
		t.Error("flush did not run before delivery")
	}
}
