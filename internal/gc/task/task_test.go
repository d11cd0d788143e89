package task

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPushWorkRunsInOrder(t *testing.T) {
	w := New[int]()
	defer w.Stop()

	var mu sync.Mutex
	var order []int
	futs := make([]*Future[int], 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		futs = append(futs, w.PushWork(func() int {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i * 10
		}))
	}
	for i, f := range futs {
		got, err := f.Wait()
		if err != nil {
			t.Fatalf("future %d: %v", i, err)
		}
		if got != i*10 {
			t.Errorf("future %d = %d, want %d", i, got, i*10)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("execution order %v, want FIFO", order)
		}
	}
}

func TestCompletedFuture(t *testing.T) {
	f := Completed(42)
	if got, ok := f.TryWait(); !ok || got != 42 {
		t.Errorf("TryWait = (%d, %v), want (42, true)", got, ok)
	}
	if got, err := f.Wait(); err != nil || got != 42 {
		t.Errorf("Wait = (%d, %v), want (42, nil)", got, err)
	}
}

func TestTryWaitPending(t *testing.T) {
	w := New[int]()
	defer w.Stop()

	release := make(chan struct{})
	f := w.PushWork(func() int {
		<-release
		return 1
	})
	if _, ok := f.TryWait(); ok {
		t.Error("TryWait resolved before closure ran")
	}
	close(release)
	if got, err := f.Wait(); err != nil || got != 1 {
		t.Errorf("Wait = (%d, %v), want (1, nil)", got, err)
	}
}

func TestStopDiscardsPending(t *testing.T) {
	w := New[int]()

	block := make(chan struct{})
	running := make(chan struct{})
	first := w.PushWork(func() int {
		close(running)
		<-block
		return 1
	})
	<-running
	// Queued behind the blocked closure; will be discarded by Stop.
	second := w.PushWork(func() int { return 2 })

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(block)
	}()
	w.Stop()

	if got, err := first.Wait(); err != nil || got != 1 {
		t.Errorf("in-flight closure: (%d, %v), want (1, nil)", got, err)
	}
	if _, err := second.Wait(); !errors.Is(err, ErrStopped) {
		t.Errorf("pending closure err = %v, want ErrStopped", err)
	}
}

func TestPushAfterStop(t *testing.T) {
	w := New[int]()
	w.Stop()
	w.Stop() // idempotent

	f := w.PushWork(func() int { return 9 })
	if _, err := f.Wait(); !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}
