// Package codex adapts the Codex CLI's "exec" JSONL dialect to domain
// events. A stateless translator driven by engine.ProcessRunner.
package codex

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/engine"
)

const EngineID domain.EngineID = "codex"

// New returns a Runner for the Codex CLI at cmdPath, run with cwd as its
// working directory. argv: `codex exec --json [resume <token>] -` with the
// prompt written to stdin.
func New(cmdPath, cwd string, extraArgs []string) *engine.ProcessRunner {
	return engine.NewProcessRunner(EngineID, cwd, buildArgv(cmdPath, extraArgs), newTranslator, ResolveResume)
}

func buildArgv(cmdPath string, extraArgs []string) engine.ArgvBuilder {
	if cmdPath == "" {
		cmdPath = "codex"
	}
	return func(prompt string, resume *domain.ResumeToken) ([]string, string) {
		argv := []string{cmdPath, "exec", "--json"}
		if resume != nil && resume.SessionID != "" {
			argv = append(argv, "resume", resume.SessionID)
		}
		argv = append(argv, extraArgs...)
		argv = append(argv, "-")
		return argv, prompt
	}
}

var resumeLineRE = regexp.MustCompile(`codex resume ([A-Za-z0-9._-]+)`)

// ResolveResume recognizes "codex resume <token>" anywhere in the text.
// Pure function, no I/O.
func ResolveResume(text string) *domain.ResumeToken {
	m := resumeLineRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &domain.ResumeToken{
		EngineID:  EngineID,
		Raw:       "codex resume " + m[1],
		SessionID: m[1],
	}
}

type jsonlRecord struct {
	Type     string      `json:"type"`
	ThreadID string      `json:"thread_id"`
	Item     *jsonlItem  `json:"item"`
	Error    *jsonlError `json:"error"`
}

type jsonlItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type jsonlError struct {
	Message string `json:"message"`
}

type translator struct {
	answer strings.Builder
}

func newTranslator() engine.Translator { return &translator{} }

func (t *translator) Answer() string { return t.answer.String() }

func (t *translator) Translate(factory *domain.EventFactory, line []byte) ([]domain.Event, error) {
	var rec jsonlRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("codex: malformed jsonl: %w", err)
	}

	switch rec.Type {
	case "thread.started":
		if rec.ThreadID != "" {
			factory.SetResumeToken(&domain.ResumeToken{
				EngineID:  EngineID,
				Raw:       "codex resume " + rec.ThreadID,
				SessionID: rec.ThreadID,
			})
		}
		return nil, nil

	case "item.started":
		if rec.Item == nil || rec.Item.Type == "agent_message" {
			return nil, nil
		}
		return []domain.Event{factory.ActionStarted(rec.Item.ID, rec.Item.Type, actionTitle(rec.Item))}, nil

	case "item.completed":
		if rec.Item == nil {
			return nil, nil
		}
		if rec.Item.Type == "agent_message" {
			if rec.Item.Text != "" {
				if t.answer.Len() > 0 {
					t.answer.WriteString("\n")
				}
				t.answer.WriteString(rec.Item.Text)
			}
			return nil, nil
		}
		return []domain.Event{factory.ActionCompleted(rec.Item.ID, domain.StatusDone, "")}, nil

	case "turn.completed", "turn.started":
		return nil, nil

	case "error":
		msg := "codex error"
		if rec.Error != nil && rec.Error.Message != "" {
			msg = rec.Error.Message
		}
		return nil, fmt.Errorf("codex: %s", msg)

	default:
		return nil, nil
	}
}

func actionTitle(item *jsonlItem) string {
	if item.Text != "" {
		return item.Text
	}
	return item.Type
}
