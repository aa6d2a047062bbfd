package edits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/transport"
)

type fakeEditor struct {
	mu    sync.Mutex
	calls []transport.RenderedMessage
}

func (f *fakeEditor) Edit(ctx context.Context, ref transport.MessageRef, msg transport.RenderedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	return nil
}

func (f *fakeEditor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitForCount(t *testing.T, f *fakeEditor, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never reached %d edit calls, got %d", n, f.count())
}

func TestPublishNeverBlocksUnderBurst(t *testing.T) {
	ed := &fakeEditor{}
	w := New(ed, transport.MessageRef{ThreadID: "t1"}, 1000, 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			w.Publish(domain.ProgressState{EngineID: "mock"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked under a burst of snapshots")
	}
	w.Close()
}

func TestWorkerCoalescesIdenticalRenders(t *testing.T) {
	ed := &fakeEditor{}
	w := New(ed, transport.MessageRef{ThreadID: "t1"}, 1000, 0)

	state := domain.ProgressState{EngineID: "mock", StartedAt: time.Now()}
	for i := 0; i < 5; i++ {
		w.Publish(state)
	}
	w.Close()

	time.Sleep(100 * time.Millisecond)
	if ed.count() > 1 {
		t.Fatalf("expected identical renders to coalesce, got %d edit calls", ed.count())
	}
}

func TestWorkerEditsDistinctSnapshots(t *testing.T) {
	ed := &fakeEditor{}
	w := New(ed, transport.MessageRef{ThreadID: "t1"}, 1000, 0)

	w.Publish(domain.ProgressState{EngineID: "mock", Answer: "first"})
	waitForCount(t, ed, 1)
	w.Publish(domain.ProgressState{EngineID: "mock", Answer: "second", Final: true, OK: true})
	waitForCount(t, ed, 2)
	w.Close()
}

func TestCloseStopsAcceptingFurtherEdits(t *testing.T) {
	ed := &fakeEditor{}
	w := New(ed, transport.MessageRef{ThreadID: "t1"}, 1000, 0)
	w.Close()
	time.Sleep(20 * time.Millisecond)
	before := ed.count()
	time.Sleep(50 * time.Millisecond)
	if ed.count() != before {
		t.Fatal("edits continued to arrive after Close")
	}
}
