package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestLock_SameKeySerializes(t *testing.T) {
	var m Map[string]
	var wg sync.WaitGroup
	counter := 0

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("pair")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if n := m.Len(); n != 0 {
		t.Errorf("expected idle keys to be dropped, have %d", n)
	}
}

func TestLock_KeysAreIndependent(t *testing.T) {
	var m Map[int]
	unlockA := m.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("locking another key blocked")
	}
	if n := m.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestUnlock_Idempotent(t *testing.T) {
	var m Map[string]
	unlock := m.Lock("k")
	unlock()
	unlock()

	relock := m.Lock("k")
	relock()
	if n := m.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}
