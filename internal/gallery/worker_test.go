package gallery

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"media-wall/internal/platform/logger"
	"media-wall/internal/platform/metrics"
)

type recordingSplicer struct {
	mu      sync.Mutex
	spliced []string
	fail    string
}

func (s *recordingSplicer) Splice(f Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if string(f.Markup) == s.fail {
		return errors.New("disk on fire")
	}
	s.spliced = append(s.spliced, string(f.Markup))
	return nil
}

func (s *recordingSplicer) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spliced...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_Drain_lifo(t *testing.T) {
	q := NewPendingQueue()
	s := &recordingSplicer{}
	w := NewWorker(q, s, logger.Discard(), nil)

	q.Enqueue(frag("A"))
	q.Enqueue(frag("B"))

	if n := w.Drain(context.Background()); n != 2 {
		t.Fatalf("Drain = %d, want 2", n)
	}
	if got := strings.Join(s.got(), ","); got != "B,A" {
		t.Errorf("splice order = %s, want B,A", got)
	}
}

func TestWorker_Drain_continues_after_error(t *testing.T) {
	q := NewPendingQueue()
	s := &recordingSplicer{fail: "bad"}
	w := NewWorker(q, s, logger.Discard(), metrics.New())

	q.Enqueue(frag("good"))
	q.Enqueue(frag("bad"))

	if n := w.Drain(context.Background()); n != 2 {
		t.Fatalf("Drain = %d, want 2", n)
	}
	if got := s.got(); len(got) != 1 || got[0] != "good" {
		t.Errorf("spliced = %v, want [good]", got)
	}
	if q.Len() != 0 {
		t.Errorf("failed fragment should be dropped, Len=%d", q.Len())
	}
}

func TestWorker_Run_document(t *testing.T) {
	d := newTestDocument(t)
	if err := d.Ensure(); err != nil {
		t.Fatal(err)
	}
	q := NewPendingQueue()
	w := NewWorker(q, d, logger.Discard(), nil)

	a, _ := NewFragment("a.jpg")
	b, _ := NewFragment("b.jpg")
	q.Enqueue(a)
	q.Enqueue(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	waitFor(t, func() bool {
		n, _ := d.Fragments()
		return n == 2
	})

	content := readDoc(t, d)
	ia := bytes.Index(content, a.Markup)
	ib := bytes.Index(content, b.Markup)
	if ia < 0 || ib < 0 || ib > ia {
		t.Errorf("expected b before a in document: %s", content)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWorker_Run_survives_corrupt_document(t *testing.T) {
	d := newTestDocument(t)
	if err := d.Ensure(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.Path(), []byte("<html>truncated"), 0o644); err != nil {
		t.Fatal(err)
	}

	q := NewPendingQueue()
	w := NewWorker(q, d, logger.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	lost, _ := NewFragment("lost.jpg")
	q.Enqueue(lost)
	waitFor(t, func() bool { return q.Len() == 0 })
	// Dequeue takes the queue lock, so it returns only after the failed
	// splice has finished.
	if _, ok := q.Dequeue(); ok {
		t.Fatal("queue should be empty")
	}

	// Repair the document; the worker must still be alive to splice the next one.
	if err := os.WriteFile(d.Path(), []byte(DocumentHeader+DocumentFooter), 0o644); err != nil {
		t.Fatal(err)
	}
	kept, _ := NewFragment("kept.jpg")
	q.Enqueue(kept)

	waitFor(t, func() bool {
		return bytes.Contains(readDoc(t, d), kept.Markup)
	})
	if bytes.Contains(readDoc(t, d), lost.Markup) {
		t.Error("fragment from the failed splice should not appear")
	}
}
