package chat

import (
	"sync"
	"testing"
)

func TestRoomLocks_SerializePerRoom(t *testing.T) {
	l := newRoomLocks()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("R1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
	if l.size() != 0 {
		t.Errorf("size() = %d after all unlocks, want 0", l.size())
	}
}
