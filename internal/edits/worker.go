// Package edits implements the Progress Edits Worker: it drains a channel
// of progress snapshots and issues best-effort, coalesced transport edits
// against a single message.
package edits

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/presenter"
	"github.com/takopi-bot/takopi/internal/telemetry"
	"github.com/takopi-bot/takopi/internal/transport"
)

// Editor is the minimal transport surface the worker needs.
type Editor interface {
	Edit(ctx context.Context, ref transport.MessageRef, msg transport.RenderedMessage) error
}

// Worker coalesces a burst of ProgressState snapshots into at most one
// in-flight edit call, dropping stale snapshots rather than queuing them.
type Worker struct {
	editor Editor
	ref    transport.MessageRef
	budget int
	limit  *rate.Limiter

	in chan domain.ProgressState
}

// New starts a Worker editing ref via editor. editsPerSecond bounds the
// edit rate (Telegram and most chat APIs throttle per-chat edit volume);
// budget is the presenter body budget, 0 selects the default.
func New(editor Editor, ref transport.MessageRef, editsPerSecond float64, budget int) *Worker {
	if editsPerSecond <= 0 {
		editsPerSecond = 1
	}
	w := &Worker{
		editor: editor,
		ref:    ref,
		budget: budget,
		limit:  rate.NewLimiter(rate.Limit(editsPerSecond), 1),
		in:     make(chan domain.ProgressState, 1),
	}
	go w.run()
	return w
}

// Publish offers a new snapshot, replacing any snapshot still pending
// because an edit is in flight. Never blocks the run.
func (w *Worker) Publish(state domain.ProgressState) {
	select {
	case w.in <- state:
	default:
		select {
		case <-w.in:
		default:
		}
		select {
		case w.in <- state:
		default:
		}
	}
}

// Close stops accepting snapshots. The final render is never routed
// through this worker; callers perform it synchronously afterward.
func (w *Worker) Close() {
	close(w.in)
}

func (w *Worker) run() {
	ctx := context.Background()
	var lastText string
	for state := range w.in {
		if err := w.limit.Wait(ctx); err != nil {
			continue
		}
		rendered := presenter.Render(state, w.budget, time.Now())
		if rendered.Text == lastText {
			continue
		}
		if err := w.editor.Edit(ctx, w.ref, rendered); err != nil {
			telemetry.EditsTotal.WithLabelValues("error").Inc()
			log.Printf("edits: edit failed for thread=%s message=%s: %v", w.ref.ThreadID, w.ref.MessageID, err)
			continue
		}
		telemetry.EditsTotal.WithLabelValues("ok").Inc()
		lastText = rendered.Text
	}
}
