package contextbuilder

import (
	"strings"
	"testing"

	"github.com/kaivyy/agentd/pkg/models"
)

func TestBudgetSharesSumToAvailable(t *testing.T) {
	b := NewBudget(100000)
	total := b.For(ComponentSystem) + b.For(ComponentMemory) + b.For(ComponentSkills) + b.For(ComponentHistory) + b.For(ComponentCurrent)
	if total > b.Available {
		t.Fatalf("component shares exceed available budget: %d > %d", total, b.Available)
	}
	if b.Available != 80000 {
		t.Fatalf("expected 80%% of context reserved as available, got %d", b.Available)
	}
}

func TestNewBudgetDefaultsOnZero(t *testing.T) {
	b := NewBudget(0)
	if b.ModelContext <= 0 {
		t.Fatal("expected a positive default context window")
	}
}

func TestTruncateToBudgetNoopWhenUnderLimit(t *testing.T) {
	b := NewBudget(100000)
	text := "short text"
	out, truncated := TruncateToBudget(text, ComponentSystem, b)
	if truncated {
		t.Fatal("did not expect truncation for short text")
	}
	if out != text {
		t.Fatal("expected text to be unchanged")
	}
}

func TestTruncateToBudgetTrimsOversizedText(t *testing.T) {
	b := NewBudget(1000) // available=800, system share=240 tokens ~ 960 chars
	text := strings.Repeat("a", 5000)
	out, truncated := TruncateToBudget(text, ComponentSystem, b)
	if !truncated {
		t.Fatal("expected truncation for oversized text")
	}
	if !strings.Contains(out, "truncated") {
		t.Fatal("expected truncation notice in output")
	}
	if len(out) >= len(text) {
		t.Fatal("expected truncated output to be shorter than input")
	}
}

func TestTruncateHistoryKeepsMostRecent(t *testing.T) {
	messages := []*models.Message{
		{Role: models.RoleUser, Content: strings.Repeat("a", 400)},
		{Role: models.RoleAssistant, Content: strings.Repeat("b", 400)},
		{Role: models.RoleUser, Content: strings.Repeat("c", 400)},
	}
	kept, dropped := TruncateHistory(messages, 150)
	if dropped == 0 {
		t.Fatal("expected some messages dropped under a tight budget")
	}
	if len(kept) == 0 {
		t.Fatal("expected at least the most recent message kept")
	}
	if kept[len(kept)-1].Content != messages[len(messages)-1].Content {
		t.Fatal("expected the most recent message to survive truncation")
	}
}

func TestTruncateHistoryAlwaysKeepsSystemMessages(t *testing.T) {
	messages := []*models.Message{
		{Role: models.RoleSystem, Content: "system directive"},
		{Role: models.RoleUser, Content: strings.Repeat("x", 4000)},
	}
	kept, _ := TruncateHistory(messages, 1)
	found := false
	for _, m := range kept {
		if m.Role == models.RoleSystem {
			found = true
		}
	}
	if !found {
		t.Fatal("expected system message to survive even a near-zero budget")
	}
}

func TestTruncateHistoryPreservesChronologicalOrder(t *testing.T) {
	messages := []*models.Message{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "second"},
		{Role: models.RoleUser, Content: "third"},
	}
	kept, _ := TruncateHistory(messages, 1000)
	if len(kept) != 3 {
		t.Fatalf("expected all messages to fit, got %d", len(kept))
	}
	if kept[0].Content != "first" || kept[1].Content != "second" || kept[2].Content != "third" {
		t.Fatal("expected history order to be preserved")
	}
}

func TestInlineImagesSkipsMissingAndNonImageFiles(t *testing.T) {
	urls := InlineImages([]string{"/nonexistent/path.png", "/etc/hostname"})
	if len(urls) != 0 {
		t.Fatalf("expected no inlined images for missing/non-image paths, got %d", len(urls))
	}
}

func TestBuildAssemblesSystemAndHistory(t *testing.T) {
	sections := Sections{
		Identity: "# identity",
		Profile:  "# profile",
		Memory:   "some memory",
		Skills:   "# skills",
	}
	history := []*models.Message{
		{Role: models.RoleUser, Content: "earlier turn"},
	}
	current := &models.Message{Role: models.RoleUser, Content: "current turn"}

	built := Build(sections, history, current, 100000)
	if !strings.Contains(built.System, "identity") {
		t.Fatal("expected identity section in assembled system prompt")
	}
	if len(built.History) != 1 {
		t.Fatalf("expected history preserved, got %d messages", len(built.History))
	}
	if built.Current == nil || built.Current.Content != "current turn" {
		t.Fatal("expected current message to be present")
	}
}
