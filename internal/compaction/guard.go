package compaction

import (
	"context"
	"log/slog"
)

// DefaultKeepRecent is the number of most recent messages a Guard never
// summarizes away, regardless of budget pressure.
const DefaultKeepRecent = 10

// GuardResult reports what a Guard did to a history.
type GuardResult struct {
	// Compacted is true if summarization ran (successfully or not).
	Compacted bool

	// Summary is the generated summary, prepended ahead of the kept
	// recent messages. Empty if compaction didn't run or failed.
	Summary string

	// Kept are the messages retained verbatim after the summary.
	Kept []*Message

	// FailedOpen is true if summarization errored and the guard fell back
	// to returning the original history untouched rather than blocking
	// the turn.
	FailedOpen bool
}

// Guard decides when a conversation history needs compacting and drives the
// summarize-then-truncate pipeline, keeping the most recent messages intact
// and failing open (returning the original history) if summarization
// itself errors — a turn must never be blocked by a failed compaction.
type Guard struct {
	summarizer Summarizer
	keepRecent int
	log        *slog.Logger
}

// NewGuard builds a Guard. keepRecent defaults to DefaultKeepRecent when
// zero or negative.
func NewGuard(summarizer Summarizer, keepRecent int, log *slog.Logger) *Guard {
	if keepRecent <= 0 {
		keepRecent = DefaultKeepRecent
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guard{summarizer: summarizer, keepRecent: keepRecent, log: log.With("component", "compaction")}
}

// NeedsCompaction reports whether messages exceed the given token budget.
func (g *Guard) NeedsCompaction(messages []*Message, maxContextTokens int, maxHistoryShare float64) bool {
	if len(messages) <= g.keepRecent {
		return false
	}
	budget := int(float64(maxContextTokens) * maxHistoryShare)
	if budget <= 0 {
		budget = maxContextTokens
	}
	return EstimateMessagesTokens(messages) > budget
}

// Compact summarizes the oldest messages (everything before the last
// keepRecent) and returns the summary plus the retained tail. On
// summarization failure it fails open: the original history is returned
// unmodified and FailedOpen is set so callers can log/alert without
// aborting the turn.
func (g *Guard) Compact(ctx context.Context, messages []*Message, config *SummarizationConfig) GuardResult {
	if len(messages) <= g.keepRecent {
		return GuardResult{Kept: messages}
	}

	splitAt := len(messages) - g.keepRecent
	toSummarize := messages[:splitAt]
	kept := messages[splitAt:]

	if g.summarizer == nil {
		g.log.Warn("compaction guard has no summarizer configured, failing open")
		return GuardResult{Kept: messages, FailedOpen: true}
	}

	summary, err := SummarizeWithFallback(ctx, toSummarize, g.summarizer, config)
	if err != nil {
		g.log.Warn("compaction failed, failing open with untruncated history", "error", err)
		return GuardResult{Kept: messages, FailedOpen: true}
	}

	return GuardResult{
		Compacted: true,
		Summary:   summary,
		Kept:      kept,
	}
}
