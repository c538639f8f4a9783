// Package intent classifies an inbound message into a system-prompt profile
// and a simple/complex split that decides whether the agent loop runs its
// full tool-capable pass or a cheap simple response.
package intent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kaivyy/agentd/internal/nlfallback"
)

// Profile selects which system prompt variant a turn uses.
type Profile string

const (
	ProfileCoding   Profile = "CODING"
	ProfileChat     Profile = "CHAT"
	ProfileResearch Profile = "RESEARCH"
	ProfileGeneral  Profile = "GENERAL"
)

// shortMessageThreshold below which a message defaults to GENERAL/simple
// without ever reaching the classifier.
const shortMessageThreshold = 5

// Result is the intent router's decision for one turn.
type Result struct {
	Profile    Profile
	IsComplex  bool
}

// Classifier performs the one-shot LLM classification. Implementations wrap
// a specific low-latency model; Classify returns the raw category token the
// model replied with (e.g. "CODING").
type Classifier interface {
	Classify(ctx context.Context, content string) (string, error)
}

var categoryToken = regexp.MustCompile(`(?i)\b(CODING|CHAT|RESEARCH|GENERAL)\b`)

// Router classifies messages into a Profile and complexity flag.
type Router struct {
	log        *slog.Logger
	classifier Classifier
}

// New builds a Router. classifier may be nil, in which case every message
// past the short-message threshold falls back to GENERAL via regex alone.
func New(classifier Classifier, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log.With("component", "intent"), classifier: classifier}
}

// Classify returns {profile, is_complex} for content. Very short messages
// default to GENERAL/simple without consulting the classifier. Regardless of
// the classifier's result, a message matching the immediate-action lexicon
// (reminder/weather/stock/time terms) is always marked complex so the tool
// loop runs.
func (r *Router) Classify(ctx context.Context, content string) Result {
	trimmed := strings.TrimSpace(content)

	if len(trimmed) < shortMessageThreshold {
		return Result{Profile: ProfileGeneral, IsComplex: immediateAction(trimmed)}
	}

	profile := r.classifyProfile(ctx, trimmed)
	return Result{Profile: profile, IsComplex: immediateAction(trimmed)}
}

func (r *Router) classifyProfile(ctx context.Context, content string) Profile {
	if r.classifier == nil {
		return regexFallback(content)
	}

	preview := content
	if len(preview) > 1000 {
		preview = preview[:1000]
	}

	raw, err := r.classifier.Classify(ctx, preview)
	if err != nil {
		r.log.Warn("intent classification failed, defaulting to GENERAL", "error", err)
		return ProfileGeneral
	}

	if m := categoryToken.FindStringSubmatch(strings.ToUpper(raw)); m != nil {
		return Profile(m[1])
	}
	return ProfileGeneral
}

var (
	codingWords   = []string{"code", "function", "bug", "compile", "refactor", "error", "stack trace", "script"}
	chatWords      = []string{"hello", "hi", "how are you", "thanks", "lol"}
	researchWords = []string{"search", "find out", "news", "summarize", "summarise", "look up"}
)

// regexFallback is used when no classifier is configured (or it errors) and
// a best-effort profile guess is still useful, e.g. for tests and the
// intent router's own degraded mode.
func regexFallback(content string) Profile {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, codingWords):
		return ProfileCoding
	case containsAny(lower, researchWords):
		return ProfileResearch
	case containsAny(lower, chatWords):
		return ProfileChat
	default:
		return ProfileGeneral
	}
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// immediateAction reports whether content matches the immediate-action
// lexicon (reminder, weather, stock, crypto, or cron-management terms in any
// supported language) and so must force is_complex=true regardless of what
// the classifier said.
func immediateAction(content string) bool {
	lower := strings.ToLower(content)
	for _, terms := range [][]string{
		nlfallback.ReminderTerms,
		nlfallback.WeatherTerms,
		nlfallback.StockTerms,
		nlfallback.CryptoTerms,
	} {
		for _, term := range terms {
			if strings.Contains(lower, strings.ToLower(term)) {
				return true
			}
		}
	}
	return false
}

// ConfirmationElevation reports whether content is a short affirmative
// reply (in any supported language) that should force is_complex=true
// because the prior assistant turn offered an action awaiting confirmation.
func ConfirmationElevation(content string, priorTurnOfferedAction bool) bool {
	if !priorTurnOfferedAction {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(content))
	if lower == "" {
		return false
	}
	for _, term := range nlfallback.ConfirmationTerms {
		if lower == strings.ToLower(term) || strings.HasPrefix(lower, strings.ToLower(term)+" ") {
			return true
		}
	}
	return false
}
