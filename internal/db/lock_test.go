//go:build unix

package db

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestWriteLockerAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	l := newWriteLocker(dir)
	if err := l.acquire(time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if holder := l.readHolder(); !strings.Contains(holder, "pid:") {
		t.Errorf("holder = %q, want pid info", holder)
	}
	if err := l.release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l.release(); err != nil {
		t.Errorf("second release: %v", err)
	}
}

func TestWriteLockerSerializes(t *testing.T) {
	dir := t.TempDir()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				l := newWriteLocker(dir)
				if err := l.acquire(5 * time.Second); err != nil {
					t.Errorf("acquire: %v", err)
					return
				}
				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				l.release()
			}
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("max holders = %d, want 1", maxSeen)
	}
}

func TestWriteLockerTimeout(t *testing.T) {
	dir := t.TempDir()
	first := newWriteLocker(dir)
	if err := first.acquire(time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer first.release()

	second := newWriteLocker(dir)
	err := second.acquire(50 * time.Millisecond)
	if err == nil {
		second.release()
		t.Fatal("expected timeout")
	}
	if !strings.Contains(err.Error(), "timeout") || !strings.Contains(err.Error(), "pid:") {
		t.Errorf("err = %v, want timeout with holder pid", err)
	}
}
