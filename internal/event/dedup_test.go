package event

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSet_CheckAndAdd(t *testing.T) {
	s := NewSet()

	if !s.CheckAndAdd("k1") {
		t.Error("first add should report newly added")
	}
	if s.CheckAndAdd("k1") {
		t.Error("second add of same key should report already present")
	}
	if !s.CheckAndAdd("k2") {
		t.Error("distinct key should report newly added")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if !s.Has("k1") || s.Has("k3") {
		t.Error("Has reported wrong membership")
	}
}

// TestSet_CheckAndAddIsAtomic races many goroutines on one key: exactly one
// may win the not-present check.
func TestSet_CheckAndAddIsAtomic(t *testing.T) {
	s := NewSet()

	const goroutines = 64
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.CheckAndAdd("contested") {
				wins.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins.Load())
	}
}
