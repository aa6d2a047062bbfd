// Package claude adapts the Claude CLI's stream-json dialect to domain
// events.
package claude

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/engine"
)

const EngineID domain.EngineID = "claude"

// New returns a Runner for the Claude CLI. argv:
// `claude -p --output-format stream-json --verbose [--resume <id>]` with
// the prompt passed as an argument.
func New(cmdPath, cwd string, extraArgs []string) *engine.ProcessRunner {
	return engine.NewProcessRunner(EngineID, cwd, buildArgv(cmdPath, extraArgs), newTranslator, ResolveResume)
}

func buildArgv(cmdPath string, extraArgs []string) engine.ArgvBuilder {
	if cmdPath == "" {
		cmdPath = "claude"
	}
	return func(prompt string, resume *domain.ResumeToken) ([]string, string) {
		argv := []string{cmdPath, "-p", "--output-format", "stream-json", "--verbose"}
		if resume != nil && resume.SessionID != "" {
			argv = append(argv, "--resume", resume.SessionID)
		}
		argv = append(argv, extraArgs...)
		argv = append(argv, prompt)
		return argv, ""
	}
}

var resumeLineRE = regexp.MustCompile(`claude --resume[= ]([A-Za-z0-9._-]+)`)

// ResolveResume recognizes "claude --resume <id>" anywhere in the text.
func ResolveResume(text string) *domain.ResumeToken {
	m := resumeLineRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &domain.ResumeToken{
		EngineID:  EngineID,
		Raw:       "claude --resume " + m[1],
		SessionID: m[1],
	}
}

type jsonlRecord struct {
	Type      string           `json:"type"`
	Subtype   string           `json:"subtype"`
	SessionID string           `json:"session_id"`
	Message   *jsonlMessage    `json:"message"`
	Result    string           `json:"result"`
	IsError   bool             `json:"is_error"`
	ToolUseID string           `json:"tool_use_id"`
	ToolName  string           `json:"tool_name"`
	Content   []jsonlContentIn `json:"content"`
}

type jsonlMessage struct {
	Role    string          `json:"role"`
	Content []jsonlContentIn `json:"content"`
}

type jsonlContentIn struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type translator struct {
	answer       strings.Builder
	explicitFail string
}

func newTranslator() engine.Translator { return &translator{} }

func (t *translator) Answer() string { return t.answer.String() }

func (t *translator) Translate(factory *domain.EventFactory, line []byte) ([]domain.Event, error) {
	var rec jsonlRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("claude: malformed jsonl: %w", err)
	}

	switch rec.Type {
	case "system":
		if rec.Subtype == "init" && rec.SessionID != "" {
			factory.SetResumeToken(&domain.ResumeToken{
				EngineID:  EngineID,
				Raw:       "claude --resume " + rec.SessionID,
				SessionID: rec.SessionID,
			})
		}
		return nil, nil

	case "assistant":
		if rec.Message == nil {
			return nil, nil
		}
		var events []domain.Event
		for _, c := range rec.Message.Content {
			switch c.Type {
			case "text":
				if c.Text != "" {
					if t.answer.Len() > 0 {
						t.answer.WriteString("\n")
					}
					t.answer.WriteString(c.Text)
				}
			case "tool_use":
				events = append(events, factory.ActionStarted(c.ID, c.Name, toolTitle(c.Name)))
			}
		}
		return events, nil

	case "user":
		// tool_result content blocks close out a prior tool_use action.
		if rec.Message == nil {
			return nil, nil
		}
		var events []domain.Event
		for _, c := range rec.Message.Content {
			if c.Type == "tool_result" {
				status := domain.StatusDone
				events = append(events, factory.ActionCompleted(c.ID, status, ""))
			}
		}
		return events, nil

	case "result":
		if rec.IsError {
			t.explicitFail = rec.Result
			if t.explicitFail == "" {
				t.explicitFail = "claude reported an error"
			}
			return nil, fmt.Errorf("claude: %s", t.explicitFail)
		}
		if rec.Result != "" && t.answer.Len() == 0 {
			t.answer.WriteString(rec.Result)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

func toolTitle(name string) string {
	if name == "" {
		return "tool"
	}
	return name
}
