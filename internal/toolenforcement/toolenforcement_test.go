package toolenforcement

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingExecutor struct {
	calls []call
	fail  bool
}

type call struct {
	name   string
	params map[string]any
}

func (r *recordingExecutor) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	r.calls = append(r.calls, call{name: name, params: params})
	if r.fail {
		return "", errors.New("tool unavailable")
	}
	return "ok:" + name, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
}

func TestExecuteWeatherAsksForLocationWhenMissing(t *testing.T) {
	exec := &recordingExecutor{}
	got, err := Execute(context.Background(), exec, nil, "weather", "what's the weather like", fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatal("expected no tool call when location is missing")
	}
	if got == "" {
		t.Fatal("expected a clarification message")
	}
}

func TestExecuteWeatherCallsToolWithLocation(t *testing.T) {
	exec := &recordingExecutor{}
	_, err := Execute(context.Background(), exec, nil, "weather", "what's the weather in Jakarta", fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.calls) != 1 || exec.calls[0].name != "weather" {
		t.Fatalf("expected one weather call, got %+v", exec.calls)
	}
	if exec.calls[0].params["location"] != "Jakarta" {
		t.Fatalf("expected location Jakarta, got %v", exec.calls[0].params["location"])
	}
}

func TestExecuteGetSystemInfoCallsToolDirectly(t *testing.T) {
	exec := &recordingExecutor{}
	got, err := Execute(context.Background(), exec, nil, "get_system_info", "how's the server doing", fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok:get_system_info" {
		t.Fatalf("expected tool result passthrough, got %q", got)
	}
}

func TestExecuteProcessMemoryParsesLimit(t *testing.T) {
	exec := &recordingExecutor{}
	_, err := Execute(context.Background(), exec, nil, "get_process_memory", "show top 25 processes by memory", fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls[0].params["limit"] != 25 {
		t.Fatalf("expected limit 25, got %v", exec.calls[0].params["limit"])
	}
}

func TestExecuteProcessMemoryDefaultsLimitWhenAbsent(t *testing.T) {
	exec := &recordingExecutor{}
	_, _ = Execute(context.Background(), exec, nil, "get_process_memory", "what's using the most memory", fixedNow())
	if exec.calls[0].params["limit"] != 15 {
		t.Fatalf("expected default limit 15, got %v", exec.calls[0].params["limit"])
	}
}

func TestExecuteCleanupDetectsDeepLevel(t *testing.T) {
	exec := &recordingExecutor{}
	_, _ = Execute(context.Background(), exec, nil, "cleanup_system", "do a deep cleanup please", fixedNow())
	if exec.calls[0].params["level"] != "deep" {
		t.Fatalf("expected deep cleanup level, got %v", exec.calls[0].params["level"])
	}
}

func TestExecuteCronListGroupsForManagementQuery(t *testing.T) {
	exec := &recordingExecutor{}
	_, err := Execute(context.Background(), exec, nil, "cron", "show my scheduled reminders list", fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.calls) != 1 || exec.calls[0].params["action"] != "list_groups" {
		t.Fatalf("expected list_groups action, got %+v", exec.calls)
	}
}

func TestExecuteCronOneShotReminderWithRelativeTime(t *testing.T) {
	exec := &recordingExecutor{}
	_, err := Execute(context.Background(), exec, nil, "cron", "remind me to drink water in 30 minutes", fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected exactly one cron call, got %d", len(exec.calls))
	}
	if exec.calls[0].params["action"] != "add" {
		t.Fatalf("expected add action, got %v", exec.calls[0].params["action"])
	}
	if exec.calls[0].params["one_shot"] != true {
		t.Fatal("expected a one-shot reminder")
	}
}

func TestExecuteCronUnclearTimeAsksForClarification(t *testing.T) {
	exec := &recordingExecutor{}
	got, err := Execute(context.Background(), exec, nil, "cron", "remind me to drink water", fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatal("expected no cron call without a resolvable time")
	}
	if got == "" {
		t.Fatal("expected a clarification message")
	}
}

func TestExecuteUnknownToolReturnsNil(t *testing.T) {
	exec := &recordingExecutor{}
	got, err := Execute(context.Background(), exec, nil, "unrelated_tool", "anything", fixedNow())
	if err != nil || got != "" {
		t.Fatalf("expected no-op for unrecognized required tool, got (%q, %v)", got, err)
	}
}

func TestExecutePropagatesToolError(t *testing.T) {
	exec := &recordingExecutor{fail: true}
	_, err := Execute(context.Background(), exec, nil, "get_system_info", "status please", fixedNow())
	if err == nil {
		t.Fatal("expected tool execution error to propagate")
	}
}
