// Package engine defines the Runner capability interface shared by every
// engine adapter (codex, claude, opencode, pi, mock) and the registry that
// the Auto-Router and Message Handler look runners up in.
package engine

import (
	"context"

	"github.com/takopi-bot/takopi/internal/domain"
)

// Runner owns one engine's invocation lifecycle: spawning the child,
// translating its JSONL dialect into domain events, and recognizing its
// resume syntax in arbitrary chat text.
type Runner interface {
	EngineID() domain.EngineID

	// ResolveResume scans text for this engine's resume syntax. Pure
	// function, no I/O.
	ResolveResume(text string) *domain.ResumeToken

	// Run spawns the child and returns a finite, single-use channel of
	// events: Started first, zero or more Action* events, exactly one
	// Completed last. The channel is closed after Completed is sent.
	// Cancelling ctx tears down the child's process group and yields a
	// terminal Completed(ok=false, error="cancelled").
	Run(ctx context.Context, prompt string, resume *domain.ResumeToken) <-chan domain.Event
}

// EventQueueCapacity is the bounded internal queue between a JSONL
// translator and its consumer; the translator blocks once full, which
// provides natural back-pressure.
const EventQueueCapacity = 128

// Registry is the keyed collection of available runners, in stable
// registration order (used by the Auto-Router's "stable runner order").
type Registry struct {
	order []domain.EngineID
	byID  map[domain.EngineID]Runner
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[domain.EngineID]Runner)}
}

func (r *Registry) Register(run Runner) {
	id := run.EngineID()
	if _, exists := r.byID[id]; !exists {
		r.order = append(r.order, id)
	}
	r.byID[id] = run
}

func (r *Registry) Get(id domain.EngineID) (Runner, bool) {
	run, ok := r.byID[id]
	return run, ok
}

// Ordered returns runners in stable registration order.
func (r *Registry) Ordered() []Runner {
	out := make([]Runner, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
