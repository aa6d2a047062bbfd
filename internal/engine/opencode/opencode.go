// Package opencode adapts the OpenCode CLI's JSON event stream to domain
// events.
package opencode

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/engine"
)

const EngineID domain.EngineID = "opencode"

// New returns a Runner for the OpenCode CLI. argv:
// `opencode run --format json [--continue <id>]`, prompt as an argument.
func New(cmdPath, cwd string, extraArgs []string) *engine.ProcessRunner {
	return engine.NewProcessRunner(EngineID, cwd, buildArgv(cmdPath, extraArgs), newTranslator, ResolveResume)
}

func buildArgv(cmdPath string, extraArgs []string) engine.ArgvBuilder {
	if cmdPath == "" {
		cmdPath = "opencode"
	}
	return func(prompt string, resume *domain.ResumeToken) ([]string, string) {
		argv := []string{cmdPath, "run", "--format", "json"}
		if resume != nil && resume.SessionID != "" {
			argv = append(argv, "--continue", resume.SessionID)
		}
		argv = append(argv, extraArgs...)
		argv = append(argv, prompt)
		return argv, ""
	}
}

var resumeLineRE = regexp.MustCompile(`opencode (?:run )?--continue[= ]([A-Za-z0-9._-]+)`)

// ResolveResume recognizes "opencode --continue <id>" anywhere in the text.
func ResolveResume(text string) *domain.ResumeToken {
	m := resumeLineRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &domain.ResumeToken{
		EngineID:  EngineID,
		Raw:       "opencode --continue " + m[1],
		SessionID: m[1],
	}
}

type jsonlRecord struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Text    string `json:"text"`
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Session string `json:"session_id"`
}

type translator struct {
	answer strings.Builder
}

func newTranslator() engine.Translator { return &translator{} }

func (t *translator) Answer() string { return t.answer.String() }

func (t *translator) Translate(factory *domain.EventFactory, line []byte) ([]domain.Event, error) {
	var rec jsonlRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("opencode: malformed json: %w", err)
	}

	switch rec.Type {
	case "session.started":
		if rec.Session != "" {
			factory.SetResumeToken(&domain.ResumeToken{
				EngineID:  EngineID,
				Raw:       "opencode --continue " + rec.Session,
				SessionID: rec.Session,
			})
		}
		return nil, nil

	case "step.started":
		return []domain.Event{factory.ActionStarted(rec.ID, rec.Kind, stepTitle(rec))}, nil

	case "step.completed":
		status := domain.StatusDone
		if rec.Status == "error" {
			status = domain.StatusError
		} else if rec.Status == "warning" {
			status = domain.StatusWarning
		}
		return []domain.Event{factory.ActionCompleted(rec.ID, status, rec.Error)}, nil

	case "message":
		if rec.Text != "" {
			if t.answer.Len() > 0 {
				t.answer.WriteString("\n")
			}
			t.answer.WriteString(rec.Text)
		}
		return nil, nil

	case "done":
		if !rec.OK {
			msg := rec.Error
			if msg == "" {
				msg = "opencode reported failure"
			}
			return nil, fmt.Errorf("opencode: %s", msg)
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
	if rec.Title != "" {
		return rec.Title
	}
	return rec.Kind
}
