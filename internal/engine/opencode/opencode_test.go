package opencode

import (
	"testing"

	"github.com/takopi-bot/takopi/internal/domain"
)

func TestResolveResume(t *testing.T) {
	tok := ResolveResume("opencode run --continue sess-7")
	if tok == nil || tok.SessionID != "sess-7" {
		t.Fatalf("ResolveResume = %+v", tok)
	}
	if ResolveResume("unrelated") != nil {
		t.Fatal("expected nil for unrelated text")
	}
}

func TestTranslateSessionStartedSetsResumeToken(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`{"type":"session.started","session_id":"s1"}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if factory.Token() == nil || factory.Token().SessionID != "s1" {
		t.Fatalf("Token() = %+v", factory.Token())
	}
}

func TestTranslateStepLifecycleAndStatus(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	started, err := tr.Translate(factory, []byte(`{"type":"step.started","id":"s1","kind":"exec","title":"run tests"}`))
	if err != nil || len(started) != 1 {
		t.Fatalf("started = %+v, err = %v", started, err)
	}

	completed, err := tr.Translate(factory, []byte(`{"type":"step.completed","id":"s1","status":"error","error":"failed"}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(completed) != 1 || completed[0].ActionStatus != domain.StatusError {
		t.Fatalf("completed = %+v", completed)
	}
}

func TestTranslateDoneFailureReturnsError(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`{"type":"done","ok":false,"error":"oops"}`))
	if err == nil {
		t.Fatal("expected error for done ok=false")
	}
}

func TestTranslateMessageAccumulatesAnswer(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`{"type":"message","text":"hi there"}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.Answer() != "hi there" {
		t.Fatalf("Answer() = %q", tr.Answer())
	}
}
