// Package mock implements a Runner that never spawns a process, used by
// tests and as the default engine for local smoke runs over the console
// transport (no Codex/Claude/OpenCode/Pi binary required).
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/engine"
)

const EngineID domain.EngineID = "mock"

// Script produces the event sequence for one run, given the prompt and any
// resume token the router matched. It must end the sequence with exactly
// one Completed event; Runner supplies Started itself.
type Script func(prompt string, resume *domain.ResumeToken) []domain.Event

// Runner is a scriptable fake satisfying engine.Runner, useful for
// exercising the Tracker/Presenter/Edits Worker/Scheduler without any
// external binary.
type Runner struct {
	script Script
}

func New(script Script) *Runner {
	if script == nil {
		script = DefaultScript
	}
	return &Runner{script: script}
}

func (r *Runner) EngineID() domain.EngineID { return EngineID }

// ResolveResume recognizes "mock --session <id>" purely so integration
// tests can exercise the router against the mock engine too.
func (r *Runner) ResolveResume(text string) *domain.ResumeToken {
	return resolveResumeLine(text)
}

func (r *Runner) Run(ctx context.Context, prompt string, resume *domain.ResumeToken) <-chan domain.Event {
	out := make(chan domain.Event, engine.EventQueueCapacity)
	go func() {
		defer close(out)
		factory := domain.NewEventFactory(EngineID)
		if resume != nil {
			factory.SetResumeToken(resume)
		}
		out <- factory.Started(resume != nil)

		for _, ev := range r.script(prompt, resume) {
			if ctx.Err() != nil {
				out <- factory.Completed(false, "", "cancelled")
				return
			}
			select {
			case <-ctx.Done():
				out <- factory.Completed(false, "", "cancelled")
				return
			case out <- stampScripted(factory, ev):
				if ev.Kind == domain.EventCompleted {
					return
				}
			}
		}
		// Script forgot to terminate with Completed; do it for them so the
		// "exactly one Completed, always last" invariant still holds.
		out <- factory.Completed(true, "", "")
	}()
	return out
}

// stampScripted re-stamps a scripted event with the current engine id and
// resume token, so authors can write scripts without worrying about it.
func stampScripted(factory *domain.EventFactory, ev domain.Event) domain.Event {
	ev.EngineID = factory.EngineID
	ev.ResumeToken = factory.Token()
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	return ev
}

// DefaultScript is the happy-path scenario: a single thinking action,
// then a successful completion echoing the prompt.
func DefaultScript(prompt string, resume *domain.ResumeToken) []domain.Event {
	return []domain.Event{
		{Kind: domain.EventActionStarted, ActionID: "t1", ActionKind: "thinking", ActionTitle: "thinking"},
		{Kind: domain.EventActionCompleted, ActionID: "t1", ActionStatus: domain.StatusDone},
		{Kind: domain.EventCompleted, OK: true, Answer: fmt.Sprintf("mock reply to: %s", prompt)},
	}
}

func resolveResumeLine(text string) *domain.ResumeToken {
	const prefix = "mock --session "
	idx := indexOf(text, prefix)
	if idx < 0 {
		return nil
	}
	rest := text[idx:]
	end := len(rest)
	for i, r := range rest {
		if r == '\n' {
			end = i
			break
		}
	}
	line := rest[:end]
	sessionID := line[len(prefix):]
	if sessionID == "" {
		return nil
	}
	return &domain.ResumeToken{EngineID: EngineID, Raw: line, SessionID: sessionID}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
