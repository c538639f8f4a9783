// Package contextbuilder assembles the system prompt and message list sent
// to an LLM provider for a single turn, splitting the available context
// window across system, memory, skills, history, and current-message
// budgets and truncating each component independently when it overflows.
package contextbuilder

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	agentcontext "github.com/kaivyy/agentd/internal/context"
	"github.com/kaivyy/agentd/pkg/models"
)

// Component names for budget allocation.
const (
	ComponentSystem  = "system"
	ComponentMemory  = "memory"
	ComponentSkills  = "skills"
	ComponentHistory = "history"
	ComponentCurrent = "current"
)

// reserveRatio is the fraction of the model's context window reserved for
// the model's own response plus a safety margin; only the remainder is
// divided across the components below.
const reserveRatio = 0.8

// componentShares divides the usable (post-reserve) budget across the
// five prompt components. Must sum to 1.0.
var componentShares = map[string]float64{
	ComponentSystem:  0.30,
	ComponentMemory:  0.15,
	ComponentSkills:  0.15,
	ComponentHistory: 0.30,
	ComponentCurrent: 0.10,
}

// Budget computes per-component token allowances for a given model context
// window.
type Budget struct {
	ModelContext int
	Available    int
}

// NewBudget derives a Budget from a model's total context window.
func NewBudget(modelContextTokens int) Budget {
	if modelContextTokens <= 0 {
		modelContextTokens = agentcontext.DefaultContextWindow
	}
	return Budget{
		ModelContext: modelContextTokens,
		Available:    int(float64(modelContextTokens) * reserveRatio),
	}
}

// For returns the token allowance for a named component.
func (b Budget) For(component string) int {
	share, ok := componentShares[component]
	if !ok {
		return 0
	}
	return int(float64(b.Available) * share)
}

// TruncateToBudget trims text to fit within component's token allowance,
// keeping the head and appending a note describing how much was dropped.
func TruncateToBudget(text, component string, budget Budget) (string, bool) {
	limit := budget.For(component)
	tokens := agentcontext.EstimateTokens(text)
	if tokens <= limit || limit <= 0 {
		return text, false
	}

	keepChars := int(float64(limit) / agentcontext.TokensPerChar)
	if keepChars < 0 {
		keepChars = 0
	}
	runes := []rune(text)
	if keepChars > len(runes) {
		keepChars = len(runes)
	}
	dropped := tokens - agentcontext.EstimateTokens(string(runes[:keepChars]))
	truncated := string(runes[:keepChars]) + fmt.Sprintf("\n\n[... truncated %d tokens to fit budget ...]", dropped)
	return truncated, true
}

// TruncateHistory keeps the most recent messages that fit within budget
// tokens, always preserving order. It never drops a pinned/system message.
func TruncateHistory(messages []*models.Message, budget int) ([]*models.Message, int) {
	if len(messages) == 0 || budget <= 0 {
		return messages, 0
	}

	kept := make([]*models.Message, 0, len(messages))
	used := 0
	dropped := 0
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		tokens := agentcontext.EstimateTokens(msg.Content) + 4
		if msg.Role == models.RoleSystem {
			kept = append(kept, msg)
			continue
		}
		if used+tokens > budget {
			dropped++
			continue
		}
		kept = append(kept, msg)
		used += tokens
	}

	// kept was built newest-first (for non-system) interleaved with system
	// messages encountered in reverse order; restore original chronological
	// order by reversing.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept, dropped
}

// Attachment describes a local file to inline as an image data URL.
type Attachment struct {
	Path string
}

// InlineImages base64-encodes local image files into data URLs, per the
// current-message budget's media allowance. Non-image or unreadable paths
// are silently skipped rather than failing the whole turn.
func InlineImages(paths []string) []string {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		mimeType := mime.TypeByExtension(filepath.Ext(p))
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		urls = append(urls, fmt.Sprintf("data:%s;base64,%s", mimeType, encoded))
	}
	return urls
}

// BuiltPrompt is the assembled result ready to hand to a provider.
type BuiltPrompt struct {
	System  string
	History []*models.Message
	Current *models.Message
	// Dropped counts messages removed from history to fit budget, for
	// logging/telemetry.
	Dropped int
}

// Sections assembles system-prompt parts: identity, profile instruction,
// memory context, and skills content, each already truncated to its own
// budget share.
type Sections struct {
	Identity string
	Profile  string
	Memory   string
	Skills   string
}

// Build assembles the final prompt from sections, history, and the current
// turn, truncating each component independently against budget.
func Build(sections Sections, history []*models.Message, current *models.Message, modelContextTokens int) BuiltPrompt {
	budget := NewBudget(modelContextTokens)

	parts := make([]string, 0, 4)
	if sections.Identity != "" {
		parts = append(parts, sections.Identity)
	}
	if sections.Profile != "" {
		parts = append(parts, sections.Profile)
	}
	if sections.Memory != "" {
		memory, _ := TruncateToBudget(sections.Memory, ComponentMemory, budget)
		parts = append(parts, "# Memory\n\n"+memory)
	}
	if sections.Skills != "" {
		skills, _ := TruncateToBudget(sections.Skills, ComponentSkills, budget)
		parts = append(parts, skills)
	}
	system := strings.Join(parts, "\n\n---\n\n")
	system, _ = TruncateToBudget(system, ComponentSystem, budget)

	truncatedHistory, dropped := TruncateHistory(history, budget.For(ComponentHistory))

	if current != nil {
		truncatedContent, _ := TruncateToBudget(current.Content, ComponentCurrent, budget)
		currentCopy := *current
		currentCopy.Content = truncatedContent
		current = &currentCopy
	}

	return BuiltPrompt{
		System:  system,
		History: truncatedHistory,
		Current: current,
		Dropped: dropped,
	}
}
