package daily

import (
	"context"
	"fmt"
	"strings"
)

// HandleCommand implements the "/schedule" chat command: list, add, remove,
// enable/disable, and run-now, all scoped to the calling thread. text is
// the full command text with the leading "/schedule" already present.
func (s *Scheduler) HandleCommand(ctx context.Context, threadID, text string) string {
	args := strings.Fields(strings.TrimPrefix(strings.TrimSpace(text), "/schedule"))
	if len(args) == 0 {
		return s.cmdList(ctx, threadID)
	}

	sub, rest := strings.ToLower(args[0]), args[1:]
	switch sub {
	case "ls", "list":
		return s.cmdList(ctx, threadID)
	case "add", "set":
		return s.cmdAdd(ctx, threadID, strings.Join(rest, " "))
	case "rm", "remove", "delete", "del":
		return s.cmdRemove(ctx, threadID, rest)
	case "on":
		return s.cmdSetEnabled(ctx, threadID, rest, true)
	case "off":
		return s.cmdSetEnabled(ctx, threadID, rest, false)
	case "run":
		return s.cmdRun(threadID, rest)
	default:
		return scheduleUsage
	}
}

const scheduleUsage = `usage:
/schedule list
/schedule add HH:MM <prompt>
/schedule add every day at 9am, <prompt>
/schedule rm <id>
/schedule on <id>
/schedule off <id>
/schedule run <id>`

func (s *Scheduler) cmdList(ctx context.Context, threadID string) string {
	rows, err := s.List(ctx, threadID)
	if err != nil {
		return fmt.Sprintf("schedule: %v", err)
	}
	if len(rows) == 0 {
		return "no schedules for this thread"
	}
	var b strings.Builder
	for _, r := range rows {
		state := "on"
		if !r.Enabled {
			state = "off"
		}
		fmt.Fprintf(&b, "%s  %-11s  %-3s  %s\n", r.ID, r.Cron, state, r.Prompt)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Scheduler) cmdAdd(ctx context.Context, threadID, rest string) string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return scheduleUsage
	}

	if cronExpr, prompt, ok := parseDailyNL(rest); ok {
		return s.finishAdd(ctx, threadID, cronExpr, prompt)
	}

	fields := strings.SplitN(rest, " ", 2)
	if len(fields) == 2 {
		if cronExpr, ok := parseClockTime(fields[0]); ok {
			return s.finishAdd(ctx, threadID, cronExpr, strings.TrimSpace(fields[1]))
		}
	}

	return "schedule: could not parse time; " + scheduleUsage
}

func (s *Scheduler) finishAdd(ctx context.Context, threadID, cronExpr, prompt string) string {
	id, err := s.Add(ctx, threadID, cronExpr, "", prompt)
	if err != nil {
		return fmt.Sprintf("schedule: %v", err)
	}
	return fmt.Sprintf("scheduled %s (%s)", id, cronExpr)
}

func (s *Scheduler) cmdRemove(ctx context.Context, threadID string, args []string) string {
	if len(args) != 1 {
		return "usage: /schedule rm <id>"
	}
	ok, err := s.Remove(ctx, threadID, args[0])
	if err != nil {
		return fmt.Sprintf("schedule: %v", err)
	}
	if !ok {
		return "schedule: no such id"
	}
	return "removed " + args[0]
}

func (s *Scheduler) cmdSetEnabled(ctx context.Context, threadID string, args []string, enabled bool) string {
	if len(args) != 1 {
		return "usage: /schedule on|off <id>"
	}
	ok, err := s.SetEnabled(ctx, threadID, args[0], enabled)
	if err != nil {
		return fmt.Sprintf("schedule: %v", err)
	}
	if !ok {
		return "schedule: no such id"
	}
	if enabled {
		return "enabled " + args[0]
	}
	return "disabled " + args[0]
}

func (s *Scheduler) cmdRun(threadID string, args []string) string {
	if len(args) != 1 {
		return "usage: /schedule run <id>"
	}
	if err := s.RunNow(threadID, args[0]); err != nil {
		return fmt.Sprintf("schedule: %v", err)
	}
	return "ran " + args[0]
}
