// Package handler implements the Message Handler: the end-to-end
// per-message pipeline composing the router, scheduler, tracker,
// presenter, and edits worker.
package handler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/edits"
	"github.com/takopi-bot/takopi/internal/presenter"
	"github.com/takopi-bot/takopi/internal/router"
	"github.com/takopi-bot/takopi/internal/scheduler"
	"github.com/takopi-bot/takopi/internal/store"
	"github.com/takopi-bot/takopi/internal/telemetry"
	"github.com/takopi-bot/takopi/internal/tracker"
	"github.com/takopi-bot/takopi/internal/transport"
)

// Options configures a Handler's rendering and pacing knobs.
type Options struct {
	Budget         int
	EditsPerSecond float64
}

// DailyScheduler is the subset of daily.Scheduler the Handler needs to
// serve the "/schedule" command. Set via SetDailyScheduler once main has
// constructed both (they depend on each other: daily.Scheduler dispatches
// fired prompts back through the Handler).
type DailyScheduler interface {
	HandleCommand(ctx context.Context, threadID, text string) string
}

type runningTask struct {
	cancel      context.CancelFunc
	progressRef transport.MessageRef
}

// Handler wires one Transport's inbound messages to runners selected by
// the Router, scheduled per-thread by Scheduler.
type Handler struct {
	router    *router.Router
	transport transport.Transport
	scheduler *scheduler.Scheduler
	store     *store.Store
	opts      Options

	mu     sync.Mutex
	active map[string]*runningTask

	dailyMu sync.RWMutex
	daily   DailyScheduler
}

// SetDailyScheduler wires the daily prompt scheduler in after construction,
// breaking the Handler/daily.Scheduler construction cycle.
func (h *Handler) SetDailyScheduler(d DailyScheduler) {
	h.dailyMu.Lock()
	h.daily = d
	h.dailyMu.Unlock()
}

// New wires a Handler. st may be nil, in which case runs are not
// recorded to the audit log (used by tests that don't need it).
func New(r *router.Router, t transport.Transport, sch *scheduler.Scheduler, st *store.Store, opts Options) *Handler {
	if opts.Budget <= 0 {
		opts.Budget = presenter.DefaultBodyBudget
	}
	return &Handler{
		router:    r,
		transport: t,
		scheduler: sch,
		store:     st,
		opts:      opts,
		active:    make(map[string]*runningTask),
	}
}

// HandleInbound is the transport's callback for every incoming message.
func (h *Handler) HandleInbound(ctx context.Context, in transport.Inbound) {
	if strings.HasPrefix(strings.TrimSpace(in.Text), "/cancel") {
		h.handleCancel(in)
		return
	}
	if strings.HasPrefix(strings.TrimSpace(in.Text), "/schedule") {
		h.handleSchedule(ctx, in)
		return
	}
	h.scheduler.Submit(in.ThreadID, func(runCtx context.Context) {
		h.run(runCtx, in)
	})
}

// handleSchedule serves the "/schedule" command synchronously, outside
// the per-thread run queue, so listing or editing schedules never waits
// behind a running agent.
func (h *Handler) handleSchedule(ctx context.Context, in transport.Inbound) {
	h.dailyMu.RLock()
	d := h.daily
	h.dailyMu.RUnlock()
	if d == nil {
		h.sendPlain(ctx, in.ThreadID, "schedule: not available")
		return
	}
	reply := d.HandleCommand(ctx, in.ThreadID, in.Text)
	h.sendPlain(ctx, in.ThreadID, reply)
}

func (h *Handler) handleCancel(in transport.Inbound) {
	h.mu.Lock()
	task, ok := h.active[in.ThreadID]
	h.mu.Unlock()
	if !ok {
		return
	}
	if in.ReplyTo != nil && *in.ReplyTo != task.progressRef {
		return
	}
	task.cancel()
}

// run executes one message's full pipeline: 1) route, 2) send the
// initial silent progress message, 3) start the edits worker, 4) invoke
// the runner and feed the tracker, publishing snapshots as they fold, and
// 5) on Completed (or cancel/error) perform the synchronous final render.
// The final render runs once the runner's event channel closes, which
// happens after its terminal Completed; the only earlier returns are a
// routing failure, answered with a plain error message, and a failed
// initial send.
func (h *Handler) run(ctx context.Context, in transport.Inbound) {
	decision, err := h.router.Route(in.Text, in.ReplyText)
	if err != nil {
		h.sendPlain(ctx, in.ThreadID, fmt.Sprintf("could not route message: %v", err))
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	startedAt := time.Now()
	initial := presenter.Render(domain.ProgressState{
		EngineID:  decision.Runner.EngineID(),
		StartedAt: startedAt,
	}, h.opts.Budget, startedAt)

	ref, err := h.transport.Send(ctx, in.ThreadID, initial)
	if err != nil {
		log.Printf("handler: initial send failed thread=%s: %v", in.ThreadID, err)
		return
	}

	h.mu.Lock()
	h.active[in.ThreadID] = &runningTask{cancel: cancel, progressRef: ref}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.active, in.ThreadID)
		h.mu.Unlock()
	}()

	worker := edits.New(h.transport, ref, h.opts.EditsPerSecond, h.opts.Budget)
	tr := tracker.New()

	engineID := string(decision.Runner.EngineID())
	telemetry.ActiveRuns.WithLabelValues(engineID).Inc()
	runCtx, span := telemetry.RunSpan(runCtx, engineID)
	defer telemetry.ActiveRuns.WithLabelValues(engineID).Dec()
	defer span.End()

	events := decision.Runner.Run(runCtx, decision.Prompt, decision.ResumeToken)
	var final domain.ProgressState
	actionSpans := make(map[string]trace.Span)
	for ev := range events {
		switch ev.Kind {
		case domain.EventActionStarted:
			_, actionSpan := telemetry.ActionSpan(runCtx, ev.ActionKind, ev.ActionTitle)
			actionSpans[ev.ActionID] = actionSpan
		case domain.EventActionCompleted:
			if actionSpan, ok := actionSpans[ev.ActionID]; ok {
				if ev.ActionStatus == domain.StatusError {
					actionSpan.RecordError(fmt.Errorf("%s", ev.ActionDetail))
				}
				actionSpan.End()
				delete(actionSpans, ev.ActionID)
			}
		}

		final = tr.NoteEvent(ev)
		if final.ResumeToken != nil {
			h.scheduler.NoteThreadKnown(in.ThreadID)
		}
		worker.Publish(final)
	}
	for _, actionSpan := range actionSpans {
		actionSpan.End()
	}
	worker.Close()

	telemetry.RunnerExitsTotal.WithLabelValues(engineID, strconv.FormatBool(final.OK)).Inc()
	telemetry.RunDuration.WithLabelValues(engineID).Observe(time.Since(startedAt).Seconds())
	if !final.OK && final.Error != "" {
		span.RecordError(fmt.Errorf("%s", final.Error))
	}

	if h.store != nil {
		resumeRaw := ""
		if final.ResumeToken != nil {
			resumeRaw = final.ResumeToken.Raw
		}
		if err := h.store.RecordRun(ctx, in.ThreadID, engineID, resumeRaw, final.OK, final.Error, startedAt, time.Now()); err != nil {
			log.Printf("handler: record run failed thread=%s: %v", in.ThreadID, err)
		}
	}

	h.finalize(ctx, ref, in.ThreadID, final)
}

// finalize performs the terminal render synchronously, bypassing the
// edits worker entirely.
func (h *Handler) finalize(ctx context.Context, ref transport.MessageRef, threadID string, final domain.ProgressState) {
	final.Final = true
	rendered := presenter.Render(final, h.opts.Budget, time.Now())
	if err := h.transport.Edit(ctx, ref, rendered); err != nil {
		log.Printf("handler: final edit failed thread=%s: %v, falling back to send", threadID, err)
		if newRef, sendErr := h.transport.Send(ctx, threadID, rendered); sendErr != nil {
			log.Printf("handler: final send fallback failed thread=%s: %v", threadID, sendErr)
		} else {
			_ = h.transport.Delete(ctx, ref)
			_ = newRef
		}
	}
}

func (h *Handler) sendPlain(ctx context.Context, threadID, text string) {
	if _, err := h.transport.Send(ctx, threadID, transport.RenderedMessage{Text: text}); err != nil {
		log.Printf("handler: send failed thread=%s: %v", threadID, err)
	}
}
