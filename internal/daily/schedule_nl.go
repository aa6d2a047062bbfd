package daily

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// clockRE matches a bare "HH:MM" or "H:MM" time.
var clockRE = regexp.MustCompile(`^([0-2]?[0-9]):([0-5][0-9])$`)

// parseClockTime converts "HH:MM" to a 5-field cron expression firing
// daily at that minute, or reports ok=false if s isn't a clock time.
func parseClockTime(s string) (cronExpr string, ok bool) {
	m := clockRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 {
		return "", false
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), true
}

// dailyNLRE matches "every day at <time>[, ]<prompt>", e.g.
// "every day at 9am, summarize my inbox" or "every day at 9:30pm do the thing".
var dailyNLRE = regexp.MustCompile(`(?i)^every\s+day\s+at\s+([0-9]{1,2})(?::([0-5][0-9]))?\s*(am|pm)?[,]?\s+(.+)$`)

// parseDailyNL recognizes the English natural-language scheduling phrase
// promised alongside the explicit "/schedule add" form: "every day at
// 9am, <prompt>". Returns ok=false if text doesn't match.
func parseDailyNL(text string) (cronExpr, prompt string, ok bool) {
	m := dailyNLRE.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 23 {
		return "", "", false
	}
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour != 12 {
			hour += 12
		}
	}
	if hour > 23 {
		return "", "", false
	}
	p := strings.TrimSpace(m[4])
	if p == "" {
		return "", "", false
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), p, true
}
