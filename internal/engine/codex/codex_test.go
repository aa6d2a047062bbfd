package codex

import (
	"testing"

	"github.com/takopi-bot/takopi/internal/domain"
)

func TestResolveResume(t *testing.T) {
	tok := ResolveResume("please continue: codex resume abc123 thanks")
	if tok == nil {
		t.Fatal("expected a resume token")
	}
	if tok.SessionID != "abc123" {
		t.Fatalf("SessionID = %q, want abc123", tok.SessionID)
	}
	if tok.Raw != "codex resume abc123" {
		t.Fatalf("Raw = %q", tok.Raw)
	}

	if ResolveResume("nothing to see here") != nil {
		t.Fatal("expected nil for text with no resume syntax")
	}
}

func TestTranslateThreadStartedSetsResumeToken(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	events, err := tr.Translate(factory, []byte(`{"type":"thread.started","thread_id":"t1"}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("thread.started should emit no events, got %d", len(events))
	}
	if factory.Token() == nil || factory.Token().SessionID != "t1" {
		t.Fatalf("Token() = %+v, want session t1", factory.Token())
	}
}

func TestTranslateItemLifecycle(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	started, err := tr.Translate(factory, []byte(`{"type":"item.started","item":{"id":"i1","type":"command_execution","text":"ls"}}`))
	if err != nil {
		t.Fatalf("Translate started: %v", err)
	}
	if len(started) != 1 || started[0].Kind != domain.EventActionStarted {
		t.Fatalf("started events = %+v", started)
	}

	completed, err := tr.Translate(factory, []byte(`{"type":"item.completed","item":{"id":"i1","type":"command_execution"}}`))
	if err != nil {
		t.Fatalf("Translate completed: %v", err)
	}
	if len(completed) != 1 || completed[0].Kind != domain.EventActionCompleted {
		t.Fatalf("completed events = %+v", completed)
	}
}

func TestTranslateAgentMessageAccumulatesAnswer(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`{"type":"item.completed","item":{"id":"m1","type":"agent_message","text":"hello"}}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.Answer() != "hello" {
		t.Fatalf("Answer() = %q, want hello", tr.Answer())
	}
}

func TestTranslateErrorRecordReturnsError(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`{"type":"error","error":{"message":"boom"}}`))
	if err == nil {
		t.Fatal("expected an error from an error record")
	}
}

func TestTranslateMalformedJSON(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`not json`))
	if err == nil {
		t.Fatal("expected an error for malformed jsonl")
	}
}
