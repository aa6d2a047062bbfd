// Package router implements the Auto-Router: selecting an engine and an
// optional resume token from an incoming message.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/engine"
)

// ErrNoEngines is returned when the registry has no runners registered.
var ErrNoEngines = errors.New("router: no engines registered")

// RunnerUnavailable is returned when an explicit /<engine_id> prefix names
// an engine with no registered runner.
type RunnerUnavailable struct {
	EngineID domain.EngineID
}

func (e *RunnerUnavailable) Error() string {
	return fmt.Sprintf("router: runner unavailable: %s", e.EngineID)
}

// Decision is the router's output: which runner to invoke, the resume
// token (if any) it matched, and the prompt with any engine prefix or
// resume line stripped.
type Decision struct {
	Runner      engine.Runner
	ResumeToken *domain.ResumeToken
	Prompt      string
}

// Router holds the default engine and delegates matching to the registry.
type Router struct {
	registry   *engine.Registry
	defaultEng domain.EngineID
}

func New(registry *engine.Registry, defaultEngine domain.EngineID) *Router {
	return &Router{registry: registry, defaultEng: defaultEngine}
}

// Route implements the first-match algorithm:
//  1. an explicit "/<engine_id>" prefix on the first line,
//  2. a resume-syntax match against text then replyText, tried against
//     each registered runner in stable order,
//  3. the configured default engine with no resume token.
func (r *Router) Route(text, replyText string) (Decision, error) {
	if r.registry.Len() == 0 {
		return Decision{}, ErrNoEngines
	}

	if id, rest, ok := stripEnginePrefix(text); ok {
		run, ok := r.registry.Get(id)
		if !ok {
			return Decision{}, &RunnerUnavailable{EngineID: id}
		}
		return Decision{Runner: run, Prompt: strings.TrimSpace(rest)}, nil
	}

	for _, run := range r.registry.Ordered() {
		if tok := run.ResolveResume(text); tok != nil {
			return Decision{Runner: run, ResumeToken: tok, Prompt: stripResumeLine(text, tok.Raw)}, nil
		}
		if tok := run.ResolveResume(replyText); tok != nil {
			return Decision{Runner: run, ResumeToken: tok, Prompt: strings.TrimSpace(text)}, nil
		}
	}

	run, ok := r.registry.Get(r.defaultEng)
	if !ok {
		return Decision{}, &RunnerUnavailable{EngineID: r.defaultEng}
	}
	return Decision{Runner: run, Prompt: strings.TrimSpace(text)}, nil
}

// stripEnginePrefix recognizes "/<engine_id>" as the first line of text.
func stripEnginePrefix(text string) (domain.EngineID, string, bool) {
	trimmed := strings.TrimLeft(text, " \t\n")
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	nl := strings.IndexByte(trimmed, '\n')
	firstLine := trimmed
	rest := ""
	if nl >= 0 {
		firstLine = trimmed[:nl]
		rest = trimmed[nl+1:]
	}
	id := strings.TrimSpace(strings.TrimPrefix(firstLine, "/"))
	if id == "" || !domain.EngineID(id).Valid() {
		return "", "", false
	}
	return domain.EngineID(id), rest, true
}

// stripResumeLine removes the matched resume line from the prompt if it
// appears inline; it is left untouched if the match only came from the
// reply text.
func stripResumeLine(text, raw string) string {
	idx := strings.Index(text, raw)
	if idx < 0 {
		return strings.TrimSpace(text)
	}
	before := text[:idx]
	after := text[idx+len(raw):]
	return strings.TrimSpace(before + after)
}
