// Package toolenforcement provides the deterministic fallback path the
// agent loop takes when the model is required to call a specific tool
// (weather, cron, system diagnostics) but has repeatedly failed to do so.
// It parses the user's own message well enough to build the tool call
// itself, so the turn still produces the right action.
package toolenforcement

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kaivyy/agentd/internal/nlfallback"
)

// Executor runs a named tool with structured parameters and returns its
// textual result.
type Executor interface {
	Execute(ctx context.Context, name string, params map[string]any) (string, error)
}

// ExistingTitles returns the titles of currently grouped cron schedules, for
// collision-free naming of newly created ones.
type ExistingTitles func() []string

var (
	groupIDPattern = regexp.MustCompile(`\bgrp_[a-z0-9_-]+\b`)
	jobIDPattern   = regexp.MustCompile(`\b[a-f0-9]{8}\b`)
	countPattern   = regexp.MustCompile(`\b(\d{1,3})\b`)
	absoluteTime   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(?::\d{2})?(?:Z|[+-]\d{2}:?\d{2})?`)
)

// RequiredToolForQuery resolves which tool a query requires, given which
// tools are currently registered. Delegates to nlfallback's lexicon match.
func RequiredToolForQuery(question string, hasWeather, hasCron, hasSystemInfo, hasCleanup, hasProcessMemory bool) string {
	return nlfallback.RequiredToolForQuery(question, hasWeather, hasCron, hasSystemInfo, hasCleanup, hasProcessMemory)
}

// Execute runs the deterministic fallback for requiredTool against content,
// the user's original message text. now is injected for testability. It
// returns the human-readable result (either the tool's own output or a
// clarification message asking the user for a missing detail), or an error
// if tool execution itself failed.
func Execute(ctx context.Context, exec Executor, existingTitles ExistingTitles, requiredTool, content string, now time.Time) (string, error) {
	switch requiredTool {
	case "weather":
		return executeWeather(ctx, exec, content)
	case "get_system_info":
		return exec.Execute(ctx, "get_system_info", nil)
	case "get_process_memory":
		return executeProcessMemory(ctx, exec, content)
	case "cleanup_system":
		return executeCleanup(ctx, exec, content)
	case "cron":
		return executeCron(ctx, exec, existingTitles, content, now)
	default:
		return "", nil
	}
}

func executeWeather(ctx context.Context, exec Executor, content string) (string, error) {
	location, ok := nlfallback.ExtractWeatherLocation(content)
	if !ok {
		return "I couldn't tell which location you mean — could you name a city?", nil
	}
	return exec.Execute(ctx, "weather", map[string]any{
		"location":     location,
		"context_text": content,
	})
}

func executeProcessMemory(ctx context.Context, exec Executor, content string) (string, error) {
	limit := 15
	if m := countPattern.FindStringSubmatch(strings.ToLower(content)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	return exec.Execute(ctx, "get_process_memory", map[string]any{"limit": limit})
}

func executeCleanup(ctx context.Context, exec Executor, content string) (string, error) {
	lower := strings.ToLower(content)
	level := "standard"
	switch {
	case containsAny(lower, []string{"deep", "dalam", "mendalam", "full", "lengkap"}):
		level = "deep"
	case containsAny(lower, []string{"quick", "cepat", "ringan", "light"}):
		level = "quick"
	}
	return exec.Execute(ctx, "cleanup_system", map[string]any{"level": level})
}

func executeCron(ctx context.Context, exec Executor, existingTitles ExistingTitles, content string, now time.Time) (string, error) {
	run := func(payload map[string]any) (string, error) {
		if _, ok := payload["context_text"]; !ok {
			payload["context_text"] = content
		}
		return exec.Execute(ctx, "cron", payload)
	}

	lower := strings.ToLower(content)
	isManagement := containsAny(lower, nlfallback.CronManagementOps) && containsAny(lower, nlfallback.CronManagementTerms)

	if isManagement && containsAny(lower, []string{"list", "lihat", "show"}) {
		return run(map[string]any{"action": "list_groups"})
	}

	if isManagement && containsAny(lower, []string{"hapus", "delete", "remove"}) {
		if id := groupIDPattern.FindString(lower); id != "" {
			return run(map[string]any{"action": "remove_group", "group_id": id})
		}
		if title, ok := nlfallback.ExtractExplicitScheduleTitle(content); ok {
			return run(map[string]any{"action": "remove_group", "title": title})
		}
		if id := jobIDPattern.FindString(lower); id != "" {
			return run(map[string]any{"action": "remove", "job_id": id})
		}
		return "Tell me which schedule to remove — a name or group ID would help.", nil
	}

	if isManagement && containsAny(lower, []string{"edit", "ubah", "update"}) {
		payload := map[string]any{"action": "update_group"}
		hasSelector := false
		if id := groupIDPattern.FindString(lower); id != "" {
			payload["group_id"] = id
			hasSelector = true
		} else if title, ok := nlfallback.ExtractExplicitScheduleTitle(content); ok {
			payload["title"] = title
			hasSelector = true
		}
		if !hasSelector {
			return "Tell me which schedule to update — a name or group ID would help.", nil
		}

		changed := false
		if recurring, ok := nlfallback.ExtractRecurringSchedule(content); ok {
			applyRecurring(payload, recurring)
			changed = true
		}
		if newTitle, ok := nlfallback.ExtractNewScheduleTitle(content); ok {
			payload["new_title"] = nlfallback.MakeUniqueScheduleTitle(newTitle, titles(existingTitles))
			changed = true
		}
		if !changed {
			return "I found the schedule but not what to change about it.", nil
		}
		return run(payload)
	}

	if cycle, ok := nlfallback.ExtractCycleSchedule(content, now); ok {
		everySeconds := int64(cycle.PeriodDays) * 86400
		groupTitle := nlfallback.BuildCycleTitle(content, cycle.PeriodDays, titles(existingTitles))
		groupID := nlfallback.BuildGroupID(groupTitle, now.UnixMilli())
		created := 0
		for _, event := range cycle.Events {
			_, err := run(map[string]any{
				"action":        "add",
				"message":       event.Message,
				"title":         groupTitle,
				"group_id":      groupID,
				"every_seconds": everySeconds,
				"start_at":      event.StartAt,
				"one_shot":      false,
			})
			if err != nil {
				return "", err
			}
			created++
		}
		return fmt.Sprintf("Created cycle schedule %q (%s, %d jobs, every %d days).", groupTitle, groupID, created, cycle.PeriodDays), nil
	}

	reminderText := nlfallback.ExtractReminderMessage(content)
	if recurring, ok := nlfallback.ExtractRecurringSchedule(content); ok {
		defaultTitle := strings.TrimSpace("Recurring: " + truncate(reminderText, 40))
		groupTitle := nlfallback.MakeUniqueScheduleTitle(defaultTitle, titles(existingTitles))
		payload := map[string]any{
			"action":   "add",
			"message":  reminderText,
			"title":    groupTitle,
			"group_id": nlfallback.BuildGroupID(groupTitle, now.UnixMilli()),
		}
		applyRecurring(payload, recurring)
		return run(payload)
	}

	var targetMs int64
	haveTarget := false
	if relativeMs, ok := nlfallback.ParseRelativeTimeMs(content); ok {
		targetMs = now.UnixMilli() + relativeMs
		haveTarget = true
	} else if match := absoluteTime.FindString(content); match != "" {
		if ms, ok := nlfallback.ParseAbsoluteTimeMs(match); ok {
			targetMs = ms
			haveTarget = true
		}
	}

	if !haveTarget {
		return "I couldn't tell when you want this reminder — could you give a time?", nil
	}

	atTime := time.UnixMilli(targetMs).Local().Format(time.RFC3339)
	return run(map[string]any{
		"action":   "add",
		"message":  reminderText,
		"at_time":  atTime,
		"one_shot": true,
	})
}

func applyRecurring(payload map[string]any, recurring nlfallback.RecurringSchedule) {
	if recurring.HasInterval {
		payload["every_seconds"] = recurring.EverySeconds
	}
	if recurring.CronExpr != "" {
		payload["cron_expr"] = recurring.CronExpr
	}
	payload["one_shot"] = recurring.OneShot
}

func titles(fn ExistingTitles) []string {
	if fn == nil {
		return nil
	}
	return fn()
}

func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
