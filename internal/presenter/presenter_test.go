package presenter

import (
	"strings"
	"testing"
	"time"

	"github.com/takopi-bot/takopi/internal/domain"
)

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
		{-time.Second, "0s"},
	}
	for _, c := range cases {
		if got := formatElapsed(c.d); got != c.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestRenderHeaderCarriesEngineAndStatus(t *testing.T) {
	now := time.Now()
	state := domain.ProgressState{EngineID: "codex", StartedAt: now.Add(-30 * time.Second)}
	msg := Render(state, 0, now)

	if !strings.Contains(msg.Text, "codex") {
		t.Fatalf("rendered text missing engine id: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "running") {
		t.Fatalf("rendered text missing running status: %q", msg.Text)
	}
	if !msg.HTML {
		t.Fatal("Render must mark output as HTML")
	}
}

func TestRenderFinalOKIncludesAnswer(t *testing.T) {
	state := domain.ProgressState{EngineID: "claude", Final: true, OK: true, Answer: "the *answer*"}
	msg := Render(state, 0, time.Now())

	if !strings.Contains(msg.Text, "done") {
		t.Fatalf("missing done status: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "<i>answer</i>") {
		t.Fatalf("markdown emphasis not rendered to Telegram HTML: %q", msg.Text)
	}
}

func TestRenderFinalErrorIncludesMessage(t *testing.T) {
	state := domain.ProgressState{EngineID: "claude", Final: true, OK: false, Error: "boom"}
	msg := Render(state, 0, time.Now())

	if !strings.Contains(msg.Text, "error") || !strings.Contains(msg.Text, "boom") {
		t.Fatalf("missing error detail: %q", msg.Text)
	}
}

func TestTrimBodyPreservesHeadAndTail(t *testing.T) {
	body := strings.Repeat("a", 1000) + strings.Repeat("b", 1000)
	trimmed := trimBody(body, 500)

	if len(trimmed) > 500+len(truncationMarker) {
		t.Fatalf("trimmed body too long: %d bytes", len(trimmed))
	}
	if !strings.HasPrefix(trimmed, "aaa") {
		t.Fatalf("trimmed body lost its head: %q", trimmed[:20])
	}
	if !strings.HasSuffix(trimmed, "bbb") {
		t.Fatalf("trimmed body lost its tail: %q", trimmed[len(trimmed)-20:])
	}
	if !strings.Contains(trimmed, truncationMarker) {
		t.Fatal("trimmed body missing truncation marker")
	}
}

func TestTrimBodyNoOpUnderBudget(t *testing.T) {
	body := "short body"
	if got := trimBody(body, 500); got != body {
		t.Fatalf("trimBody modified a body under budget: %q", got)
	}
}

func TestRenderBodyShowsActionGlyphs(t *testing.T) {
	state := domain.ProgressState{
		EngineID: "codex",
		Actions: []domain.Action{
			{Title: "reading file", Status: domain.StatusRunning},
			{Title: "writing file", Status: domain.StatusDone},
		},
	}
	msg := Render(state, 0, time.Now())

	if !strings.Contains(msg.Text, "●") || !strings.Contains(msg.Text, "✓") {
		t.Fatalf("missing action glyphs: %q", msg.Text)
	}
}

func TestRenderFooterCarriesResumeToken(t *testing.T) {
	state := domain.ProgressState{
		EngineID:    "codex",
		ResumeToken: &domain.ResumeToken{EngineID: "codex", Raw: "codex resume abc123"},
	}
	msg := Render(state, 0, time.Now())

	if !strings.Contains(msg.Text, "<code>codex resume abc123</code>") {
		t.Fatalf("missing resume token footer: %q", msg.Text)
	}
}
