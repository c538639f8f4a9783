// Package resilience implements the provider-facing recovery layer: API key
// rotation on auth/rate-limit errors and model fallback on server errors or
// connection failures, coordinated so a single bad key or a single
// overloaded model never takes a turn down.
package resilience

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const keyCooldown = 60 * time.Second

// KeyRotator manages a pool of API keys for one provider and rotates past
// ones that recently failed, giving each a cooldown before reuse.
type KeyRotator struct {
	mu           sync.Mutex
	keys         []string
	currentIndex int
	failedUntil  map[int]time.Time
}

// NewKeyRotator builds a rotator over keys. A single-element or empty pool
// still works; rotation is simply a no-op in that case.
func NewKeyRotator(keys []string) *KeyRotator {
	return &KeyRotator{keys: append([]string(nil), keys...), failedUntil: make(map[int]time.Time)}
}

// CurrentKey returns the active key, skipping past one still on cooldown.
func (r *KeyRotator) CurrentKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentKeyLocked()
}

func (r *KeyRotator) currentKeyLocked() string {
	if len(r.keys) == 0 {
		return ""
	}
	if until, onCooldown := r.failedUntil[r.currentIndex]; onCooldown {
		if time.Now().Before(until) {
			if next, ok := r.findAvailableLocked(); ok {
				return r.keys[next]
			}
		} else {
			delete(r.failedUntil, r.currentIndex)
		}
	}
	return r.keys[r.currentIndex]
}

// AddKey appends a new key to the rotation pool if not already present.
func (r *KeyRotator) AddKey(key string) {
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k == key {
			return
		}
	}
	r.keys = append(r.keys, key)
}

// Rotate marks the current key as failed (cooldown) and switches to the next
// available key. Returns "", false if no pool or the whole pool is on
// cooldown.
func (r *KeyRotator) Rotate(errorCode int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) <= 1 {
		return r.currentKeyLocked(), false
	}

	r.failedUntil[r.currentIndex] = time.Now().Add(keyCooldown)

	next, ok := r.findAvailableLocked()
	if !ok {
		return "", false
	}
	r.currentIndex = next
	return r.keys[r.currentIndex], true
}

func (r *KeyRotator) findAvailableLocked() (int, bool) {
	if len(r.keys) == 0 {
		return 0, false
	}
	now := time.Now()
	for i := 0; i < len(r.keys); i++ {
		idx := (r.currentIndex + 1 + i) % len(r.keys)
		until, onCooldown := r.failedUntil[idx]
		if !onCooldown || now.After(until) || now.Equal(until) {
			delete(r.failedUntil, idx)
			return idx, true
		}
	}
	return 0, false
}

// PoolSize reports the total number of keys in the pool.
func (r *KeyRotator) PoolSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// AvailableCount reports how many keys are not currently on cooldown.
func (r *KeyRotator) AvailableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	n := 0
	for i := range r.keys {
		until, onCooldown := r.failedUntil[i]
		if !onCooldown || now.After(until) {
			n++
		}
	}
	return n
}

// WithKey captures the rotator's current index, runs fn with the current
// key, and restores that index if fn panics — a panic mid-call must never
// leave the rotator parked on a key that Rotate only moved to transiently
// inside fn. A normal return, even with an error, keeps whatever index fn's
// own Rotate calls left behind.
func (r *KeyRotator) WithKey(fn func(key string) error) (err error) {
	r.mu.Lock()
	snapshot := r.currentIndex
	r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.mu.Lock()
			r.currentIndex = snapshot
			r.mu.Unlock()
			panic(p)
		}
	}()

	return fn(r.CurrentKey())
}

// ModelFallback is an ordered cascade of models: primary first, then each
// fallback in turn.
type ModelFallback struct {
	mu            sync.Mutex
	chain         []string
	currentIndex  int
	attemptCount  int
	lastError     string
}

// NewModelFallback builds a cascade starting at primary.
func NewModelFallback(primary string, fallbacks []string) *ModelFallback {
	chain := append([]string{primary}, fallbacks...)
	return &ModelFallback{chain: chain}
}

// CurrentModel returns the presently active model in the chain.
func (f *ModelFallback) CurrentModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chain[f.currentIndex]
}

// Fallback advances to the next model in the chain. Returns "", false if the
// chain is exhausted.
func (f *ModelFallback) Fallback(errText string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastError = errText
	f.attemptCount++

	if f.currentIndex+1 >= len(f.chain) {
		return "", false
	}
	f.currentIndex++
	return f.chain[f.currentIndex], true
}

// Reset returns the chain to its primary model, typically called after a
// successful response.
func (f *ModelFallback) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentIndex = 0
	f.attemptCount = 0
	f.lastError = ""
}

// IsUsingFallback reports whether the chain has moved past the primary.
func (f *ModelFallback) IsUsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentIndex > 0
}

// Action describes the recovery step a Layer decided to take for one error.
type Action string

const (
	ActionRotatedKey     Action = "rotated_key"
	ActionModelFallback  Action = "model_fallback"
	ActionExhausted      Action = "exhausted"
)

// Recovery is the outcome of Layer.HandleError.
type Recovery struct {
	Action   Action
	NewKey   string
	NewModel string
}

// Layer coordinates key rotation and model fallback behind one policy:
//   - 401/403/429: rotate the key, retry the same model.
//   - 5xx or no status code at all (connection/timeout errors): fall back to
//     the next model in the chain.
//   - anything else: neither mechanism applies; the caller must surface the
//     error.
// A status in the rotation set whose rotation is exhausted does NOT fall
// through to model fallback — that asymmetry matches the policy this is
// grounded on and is intentional, not an oversight.
type Layer struct {
	log           *slog.Logger
	KeyRotator    *KeyRotator
	ModelFallback *ModelFallback

	mu             sync.Mutex
	totalRetries   int
	totalFallbacks int
}

// NewLayer builds a combined resilience layer for one provider.
func NewLayer(keys []string, primaryModel string, fallbackModels []string, log *slog.Logger) *Layer {
	if log == nil {
		log = slog.Default()
	}
	return &Layer{
		log:           log.With("component", "resilience"),
		KeyRotator:    NewKeyRotator(keys),
		ModelFallback: NewModelFallback(primaryModel, fallbackModels),
	}
}

// HandleError decides a recovery action for one failed API call.
// statusCode is 0 when no HTTP status is available (e.g. a connection error
// or timeout before a response was received).
func (l *Layer) HandleError(err error, statusCode int) Recovery {
	errText := ""
	if err != nil {
		errText = err.Error()
	}

	if statusCode == 429 || statusCode == 401 || statusCode == 403 {
		if newKey, ok := l.KeyRotator.Rotate(statusCode); ok {
			l.mu.Lock()
			l.totalRetries++
			l.mu.Unlock()
			l.log.Warn("rotated api key", "status_code", statusCode)
			return Recovery{Action: ActionRotatedKey, NewKey: newKey}
		}
		return Recovery{Action: ActionExhausted}
	}

	if statusCode == 0 || statusCode == 500 || statusCode == 502 || statusCode == 503 || statusCode == 504 {
		if newModel, ok := l.ModelFallback.Fallback(errText); ok {
			l.mu.Lock()
			l.totalFallbacks++
			l.mu.Unlock()
			l.log.Warn("model fallback", "status_code", statusCode, "new_model", newModel, "error", truncate(errText, 200))
			return Recovery{Action: ActionModelFallback, NewModel: newModel}
		}
		return Recovery{Action: ActionExhausted}
	}

	return Recovery{Action: ActionExhausted}
}

// OnSuccess resets the model fallback chain to primary after a successful
// call.
func (l *Layer) OnSuccess() {
	l.ModelFallback.Reset()
}

// Status returns a human-readable summary for diagnostics commands.
func (l *Layer) Status() string {
	l.mu.Lock()
	retries, fallbacks := l.totalRetries, l.totalFallbacks
	l.mu.Unlock()

	state := "primary"
	if l.ModelFallback.IsUsingFallback() {
		state = "fallback"
	}
	return fmt.Sprintf(
		"resilience: keys %d/%d available, model chain %s (%s), retries=%d fallbacks=%d",
		l.KeyRotator.AvailableCount(), l.KeyRotator.PoolSize(), l.ModelFallback.CurrentModel(), state, retries, fallbacks,
	)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}
