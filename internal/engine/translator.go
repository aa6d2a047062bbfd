package engine

import (
	"fmt"
	"strings"

	"github.com/takopi-bot/takopi/internal/domain"
)

// Translator owns one engine's JSONL dialect. Translate handles a single
// JSONL record and returns zero or more domain events, in the order the
// child produced the underlying records — one record may map to 0..N
// events. Returning an error aborts the run: translation errors never
// skip-and-continue.
type Translator interface {
	Translate(factory *domain.EventFactory, line []byte) ([]domain.Event, error)

	// Answer returns the final agent answer text accumulated so far from
	// the JSONL records seen. Used to build the success Completed event
	// once the child exits 0.
	Answer() string
}

// successCompleted builds the success outcome once the child exited 0.
func successCompleted(factory *domain.EventFactory, answer string) domain.Event {
	return factory.Completed(true, answer, "")
}

// nonZeroExitEvents builds the two events required for a non-zero exit
// with no prior agent answer: a warning action carrying the truncated
// stderr tail, then the terminal Completed(ok=false).
func nonZeroExitEvents(factory *domain.EventFactory, exitCode int, stderrTail string) []domain.Event {
	summary := fmt.Sprintf("child exited with status %d", exitCode)
	return []domain.Event{
		factory.WarningActionLine(summary, truncateTail(stderrTail)),
		factory.Completed(false, "", summary),
	}
}

func truncateTail(s string) string {
	const max = 2000
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max:]
}
