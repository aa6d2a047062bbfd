// Package presenter renders a domain.ProgressState into a
// transport.RenderedMessage. It is a pure function with no I/O: the same
// state always renders to the same bytes.
package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/transport"
)

// DefaultBodyBudget is the character budget for the action body.
const DefaultBodyBudget = 3500

const truncationMarker = "\n…(truncated)…\n"

// Render composes header (engine + elapsed), body (actions) and footer
// (resume hint, final answer excerpt), trimming only the body to budget
// bytes and leaving header/footer untouched.
func Render(state domain.ProgressState, budget int, now time.Time) transport.RenderedMessage {
	if budget <= 0 {
		budget = DefaultBodyBudget
	}

	header := renderHeader(state, now)
	footer := renderFooter(state)
	body := renderBody(state)
	body = trimBody(body, budget)

	var b strings.Builder
	b.WriteString(header)
	if body != "" {
		b.WriteString("\n\n")
		b.WriteString(body)
	}
	if footer != "" {
		b.WriteString("\n\n")
		b.WriteString(footer)
	}

	return transport.RenderedMessage{Text: strings.TrimSpace(b.String()), HTML: true}
}

func renderHeader(state domain.ProgressState, now time.Time) string {
	elapsed := now.Sub(state.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	status := "running"
	if state.Final {
		if state.OK {
			status = "done"
		} else {
			status = "error"
		}
	}
	return fmt.Sprintf("<b>%s</b> · %s · %s", escapeHTML(string(state.EngineID)), status, formatElapsed(elapsed))
}

func renderBody(state domain.ProgressState) string {
	if len(state.Actions) == 0 {
		return ""
	}
	var lines []string
	for _, a := range state.Actions {
		line := actionGlyph(a.Status) + " " + escapeHTML(actionLabel(a))
		if a.Detail != "" {
			line += "\n    " + renderMarkdownToTelegramHTML(a.Detail)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderFooter(state domain.ProgressState) string {
	var parts []string
	if state.ResumeToken != nil {
		parts = append(parts, "<code>"+escapeHTML(state.ResumeToken.Raw)+"</code>")
	}
	if state.Final {
		if state.OK && state.Answer != "" {
			parts = append(parts, renderMarkdownToTelegramHTML(state.Answer))
		} else if !state.OK {
			msg := state.Error
			if msg == "" {
				msg = "failed"
			}
			parts = append(parts, "<b>error:</b> "+escapeHTML(msg))
		}
	}
	return strings.Join(parts, "\n\n")
}

func actionLabel(a domain.Action) string {
	if a.Title != "" {
		return a.Title
	}
	return a.Kind
}

func actionGlyph(status domain.ActionStatus) string {
	switch status {
	case domain.StatusPending:
		return "○"
	case domain.StatusRunning:
		return "●"
	case domain.StatusDone:
		return "✓"
	case domain.StatusWarning:
		return "⚠"
	case domain.StatusError:
		return "✗"
	default:
		return "·"
	}
}

// formatElapsed renders a duration as "Xh Ym", "Xm Ys", or "Xs".
func formatElapsed(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// trimBody shortens body to at most budget bytes, cutting from the middle
// so the most recent (tail) actions stay visible alongside the first one.
func trimBody(body string, budget int) string {
	if len(body) <= budget {
		return body
	}
	headKeep := budget / 2
	tailKeep := budget - headKeep - len(truncationMarker)
	if tailKeep < 0 {
		return body[:budget]
	}
	return body[:headKeep] + truncationMarker + body[len(body)-tailKeep:]
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
