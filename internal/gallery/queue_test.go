package gallery

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func frag(s string) Fragment {
	return Fragment{ID: FragmentID(s), Markup: []byte(s)}
}

func TestPendingQueue_lifo(t *testing.T) {
	q := NewPendingQueue()
	q.Enqueue(frag("a"))
	q.Enqueue(frag("b"))
	q.Enqueue(frag("c"))

	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}
	for _, want := range []string{"c", "b", "a"} {
		got, ok := q.Dequeue()
		if !ok || string(got.Markup) != want {
			t.Fatalf("Dequeue = %q ok=%v, want %q", got.Markup, ok, want)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestPendingQueue_Process(t *testing.T) {
	q := NewPendingQueue()

	t.Run("empty", func(t *testing.T) {
		called := false
		processed, err := q.Process(func(Fragment) error { called = true; return nil })
		if processed || err != nil || called {
			t.Errorf("processed=%v err=%v called=%v", processed, err, called)
		}
	})

	t.Run("error_consumes_fragment", func(t *testing.T) {
		q.Enqueue(frag("bad"))
		boom := errors.New("boom")
		processed, err := q.Process(func(Fragment) error { return boom })
		if !processed || !errors.Is(err, boom) {
			t.Errorf("processed=%v err=%v", processed, err)
		}
		if q.Len() != 0 {
			t.Errorf("failed fragment should not be requeued, Len=%d", q.Len())
		}
	})
}

func TestPendingQueue_wake(t *testing.T) {
	q := NewPendingQueue()
	q.Enqueue(frag("a"))
	q.Enqueue(frag("b"))

	select {
	case <-q.Wake():
	default:
		t.Fatal("expected wake signal after enqueue")
	}
	select {
	case <-q.Wake():
		t.Fatal("signals should collapse into one")
	default:
	}
}

func TestPendingQueue_concurrent_enqueue(t *testing.T) {
	q := NewPendingQueue()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(frag(fmt.Sprintf("f%d", i)))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for {
		f, ok := q.Dequeue()
		if !ok {
			break
		}
		if seen[string(f.Markup)] {
			t.Fatalf("duplicate fragment %s", f.Markup)
		}
		seen[string(f.Markup)] = true
	}
	if len(seen) != n {
		t.Errorf("got %d fragments, want %d", len(seen), n)
	}
}

func TestPendingQueue_enqueue_blocks_during_process(t *testing.T) {
	q := NewPendingQueue()
	q.Enqueue(frag("first"))

	started := make(chan struct{})
	release := make(chan struct{})
	go q.Process(func(Fragment) error {
		close(started)
		<-release
		return nil
	})
	<-started

	enqueued := make(chan struct{})
	go func() {
		q.Enqueue(frag("second"))
		close(enqueued)
	}()

	select {
	case <-enqueued:
		t.Fatal("Enqueue returned while a rebuild held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not complete after the rebuild finished")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}
