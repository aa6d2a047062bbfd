// Package pi adapts the Pi CLI's JSON event stream to domain events. Unlike
// the other engines, Pi resumes by session file path rather than an opaque
// id, so its ResumeToken carries SessionPath instead of SessionID.
package pi

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/engine"
)

const EngineID domain.EngineID = "pi"

// New returns a Runner for the Pi CLI. argv:
// `pi --print --mode json [--session <path>] <prompt>`.
func New(cmdPath, cwd string, extraArgs []string) *engine.ProcessRunner {
	return engine.NewProcessRunner(EngineID, cwd, buildArgv(cmdPath, extraArgs), newTranslator, ResolveResume)
}

func buildArgv(cmdPath string, extraArgs []string) engine.ArgvBuilder {
	if cmdPath == "" {
		cmdPath = "pi"
	}
	return func(prompt string, resume *domain.ResumeToken) ([]string, string) {
		argv := []string{cmdPath, "--print", "--mode", "json"}
		if resume != nil && resume.SessionPath != "" {
			argv = append(argv, "--session", resume.SessionPath)
		}
		argv = append(argv, extraArgs...)
		argv = append(argv, prompt)
		return argv, ""
	}
}

var resumeLineRE = regexp.MustCompile(`pi --session[= ](\S+)`)

// ResolveResume recognizes "pi --session <path>" anywhere in the text.
func ResolveResume(text string) *domain.ResumeToken {
	m := resumeLineRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &domain.ResumeToken{
		EngineID:    EngineID,
		Raw:         "pi --session " + m[1],
		SessionPath: m[1],
	}
}

type jsonlRecord struct {
	Event   string `json:"event"`
	Session string `json:"session_path"`
	ID      string `json:"id"`
	Label   string `json:"label"`
	State   string `json:"state"`
	Detail  string `json:"detail"`
	Text    string `json:"text"`
	Final   bool   `json:"final"`
	Failed  bool   `json:"failed"`
	Reason  string `json:"reason"`
}

type translator struct {
	answer strings.Builder
}

func newTranslator() engine.Translator { return &translator{} }

func (t *translator) Answer() string { return t.answer.String() }

func (t *translator) Translate(factory *domain.EventFactory, line []byte) ([]domain.Event, error) {
	var rec jsonlRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("pi: malformed json: %w", err)
	}

	switch rec.Event {
	case "session":
		if rec.Session != "" {
			factory.SetResumeToken(&domain.ResumeToken{
				EngineID:    EngineID,
				Raw:         "pi --session " + rec.Session,
				SessionPath: rec.Session,
			})
		}
		return nil, nil

	case "step":
		switch rec.State {
		case "started":
			return []domain.Event{factory.ActionStarted(rec.ID, rec.Label, stepTitle(rec))}, nil
		case "done", "error":
			status := domain.StatusDone
			if rec.State == "error" {
				status = domain.StatusError
			}
			return []domain.Event{factory.ActionCompleted(rec.ID, status, rec.Detail)}, nil
		default:
			return nil, nil
		}

	case "text":
		if rec.Text != "" {
			if t.answer.Len() > 0 {
				t.answer.WriteString("\n")
			}
			t.answer.WriteString(rec.Text)
		}
		return nil, nil

	case "final":
		if rec.Failed {
			reason := rec.Reason
			if reason == "" {
				reason = "pi reported failure"
			}
			return nil, fmt.Errorf("pi: %s", reason)
		}
		if rec.Text != "" {
			if t.answer.Len() > 0 {
				t.answer.WriteString("\n")
			}
			t.answer.WriteString(rec.Text)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

func stepTitle(rec jsonlRecord) string {
	if rec.Label != "" {
		return rec.Label
	}
	return rec.ID
}
