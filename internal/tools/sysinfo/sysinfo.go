// Package sysinfo provides hardware/OS inspection and safe disk cleanup
// tools: get_system_info, get_process_memory, and cleanup_system.
package sysinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/kaivyy/agentd/internal/agent"
	"github.com/prometheus/procfs"
)

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: message, IsError: true}
}

// InfoTool reports CPU/RAM/OS specifications of the host machine.
type InfoTool struct{}

// NewInfoTool builds the get_system_info tool.
func NewInfoTool() *InfoTool { return &InfoTool{} }

func (t *InfoTool) Name() string        { return "get_system_info" }
func (t *InfoTool) Description() string {
	return "Get comprehensive hardware (CPU, RAM) and OS specifications of the host machine."
}
func (t *InfoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *InfoTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "CPU cores: %d\n", runtime.NumCPU())

	if runtime.GOOS == "linux" {
		fs, err := procfs.NewDefaultFS()
		if err == nil {
			if mem, err := fs.Meminfo(); err == nil && mem.MemTotalBytes != nil {
				totalGB := float64(*mem.MemTotalBytes) / (1 << 30)
				sb.WriteString(fmt.Sprintf("RAM: %.2f GB total", totalGB))
				if mem.MemAvailableBytes != nil {
					availGB := float64(*mem.MemAvailableBytes) / (1 << 30)
					fmt.Fprintf(&sb, " (%.2f GB available)", availGB)
				}
				sb.WriteString("\n")
			}
		}
	}

	return &agent.ToolResult{Content: strings.TrimSpace(sb.String())}, nil
}

// ProcessMemoryTool reports the top processes by resident memory usage.
type ProcessMemoryTool struct{}

// NewProcessMemoryTool builds the get_process_memory tool.
func NewProcessMemoryTool() *ProcessMemoryTool { return &ProcessMemoryTool{} }

func (t *ProcessMemoryTool) Name() string { return "get_process_memory" }
func (t *ProcessMemoryTool) Description() string {
	return "List the top processes by resident memory usage."
}
func (t *ProcessMemoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","description":"Number of processes to show (1-200, default 15)"}}}`)
}

type procUsage struct {
	pid    int
	comm   string
	rssKiB int64
}

func (t *ProcessMemoryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Limit int `json:"limit"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 15
	}
	if limit > 200 {
		limit = 200
	}

	if runtime.GOOS != "linux" {
		return toolError(fmt.Sprintf("process memory listing is not supported on %s", runtime.GOOS)), nil
	}

	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return toolError(fmt.Sprintf("open procfs: %v", err)), nil
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return toolError(fmt.Sprintf("list processes: %v", err)), nil
	}

	usages := make([]procUsage, 0, len(procs))
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		usages = append(usages, procUsage{pid: p.PID, comm: stat.Comm, rssKiB: stat.RSS * int64(os.Getpagesize()) / 1024})
	}
	sort.Slice(usages, func(i, j int) bool { return usages[i].rssKiB > usages[j].rssKiB })
	if len(usages) > limit {
		usages = usages[:limit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Top %d processes by memory:\n", len(usages)))
	for _, u := range usages {
		fmt.Fprintf(&sb, "  %6d  %-20s %8.1f MB\n", u.pid, u.comm, float64(u.rssKiB)/1024)
	}
	return &agent.ToolResult{Content: strings.TrimSpace(sb.String())}, nil
}

// CleanupTool frees disk space by removing temp files, at a level of
// aggressiveness the caller selects.
type CleanupTool struct{}

// NewCleanupTool builds the cleanup_system tool.
func NewCleanupTool() *CleanupTool { return &CleanupTool{} }

func (t *CleanupTool) Name() string { return "cleanup_system" }
func (t *CleanupTool) Description() string {
	return "Free disk space by clearing temp files and caches. Levels: quick (temp dir only), standard (temp + user cache dir), deep (standard, recursively)."
}
func (t *CleanupTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"level":{"type":"string","enum":["quick","standard","deep"],"description":"Cleanup aggressiveness, default standard"}}}`)
}

func (t *CleanupTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Level string `json:"level"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	level := input.Level
	if level == "" {
		level = "standard"
	}

	dirs := []string{os.TempDir()}
	if level == "standard" || level == "deep" {
		if cacheDir, err := os.UserCacheDir(); err == nil {
			dirs = append(dirs, cacheDir)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Cleanup complete (level: %s)\n", level)
	var freedBytes int64
	for _, dir := range dirs {
		freed, err := clearDirContents(dir)
		if err != nil {
			fmt.Fprintf(&sb, "  %s: skipped (%v)\n", dir, err)
			continue
		}
		freedBytes += freed
		fmt.Fprintf(&sb, "  %s: freed %.2f MB\n", dir, float64(freed)/(1<<20))
	}
	fmt.Fprintf(&sb, "Total freed: %.2f MB\n", float64(freedBytes)/(1<<20))
	return &agent.ToolResult{Content: strings.TrimSpace(sb.String())}, nil
}

// clearDirContents removes the top-level entries of dir and returns the
// approximate number of bytes freed. Best-effort: entries that fail to
// remove (in use, permission denied) are skipped rather than aborting.
func clearDirContents(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var freed int64
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err == nil && !info.IsDir() {
			freed += info.Size()
		}
		_ = os.RemoveAll(path)
	}
	return freed, nil
}
