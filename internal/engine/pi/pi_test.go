package pi

import (
	"testing"

	"github.com/takopi-bot/takopi/internal/domain"
)

func TestResolveResume(t *testing.T) {
	tok := ResolveResume("pi --session /tmp/sessions/abc.json")
	if tok == nil || tok.SessionPath != "/tmp/sessions/abc.json" {
		t.Fatalf("ResolveResume = %+v", tok)
	}
	if ResolveResume("unrelated") != nil {
		t.Fatal("expected nil for unrelated text")
	}
}

func TestTranslateSessionSetsResumeToken(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`{"event":"session","session_path":"/tmp/s.json"}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if factory.Token() == nil || factory.Token().SessionPath != "/tmp/s.json" {
		t.Fatalf("Token() = %+v", factory.Token())
	}
}

func TestTranslateStepLifecycle(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	started, err := tr.Translate(factory, []byte(`{"event":"step","id":"s1","label":"grep","state":"started"}`))
	if err != nil || len(started) != 1 || started[0].Kind != domain.EventActionStarted {
		t.Fatalf("started = %+v, err = %v", started, err)
	}

	done, err := tr.Translate(factory, []byte(`{"event":"step","id":"s1","state":"done"}`))
	if err != nil || len(done) != 1 || done[0].ActionStatus != domain.StatusDone {
		t.Fatalf("done = %+v, err = %v", done, err)
	}
}

func TestTranslateFinalFailureReturnsError(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`{"event":"final","failed":true,"reason":"timeout"}`))
	if err == nil {
		t.Fatal("expected error for final failed=true")
	}
}

func TestTranslateTextAccumulatesAnswer(t *testing.T) {
	factory := domain.NewEventFactory(EngineID)
	tr := newTranslator()

	_, err := tr.Translate(factory, []byte(`{"event":"text","text":"partial"}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.Answer() != "partial" {
		t.Fatalf("Answer() = %q", tr.Answer())
	}
}
