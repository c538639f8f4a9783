// Package sentinel implements the crash-recovery black box: a single JSON
// record written atomically before each turn and removed on clean
// completion, so a restart can detect and announce a mid-turn crash.
package sentinel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kaivyy/agentd/pkg/models"
)

// Filename is the sentinel's on-disk name, joined to the configured state
// directory.
const Filename = "agent-sentinel.json"

// maxUserMessageChars bounds the recorded snippet of the in-flight message.
const maxUserMessageChars = 200

// Sentinel guards the single on-disk record. It holds no other state, so it
// can be constructed fresh per process and shared read-only across turns
// (writes are always for the session currently owning the turn).
type Sentinel struct {
	path string
	log  *slog.Logger
}

// New returns a Sentinel rooted at stateDir/agent-sentinel.json.
func New(stateDir string, log *slog.Logger) *Sentinel {
	if log == nil {
		log = slog.Default()
	}
	return &Sentinel{path: filepath.Join(stateDir, Filename), log: log.With("component", "sentinel")}
}

// Path returns the resolved sentinel file path.
func (s *Sentinel) Path() string { return s.path }

// MarkActive writes the record atomically (temp file + rename) before a turn
// begins. Write failures are logged and swallowed: processing must continue
// even if the sentinel can't be persisted.
func (s *Sentinel) MarkActive(sessionID, messageID, userMessage string) {
	record := models.SentinelRecord{
		SessionID:   sessionID,
		MessageID:   messageID,
		UserMessage: truncate(userMessage, maxUserMessageChars),
		PID:         os.Getpid(),
		Timestamp:   time.Now(),
	}

	if err := s.write(record); err != nil {
		s.log.Warn("failed to write sentinel", "error", err)
	}
}

func (s *Sentinel) write(record models.SentinelRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating sentinel dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sentinel: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing sentinel temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("renaming sentinel temp file: %w", err)
	}
	return nil
}

// Clear removes the sentinel record on clean turn completion. Failure is
// logged only.
func (s *Sentinel) Clear() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to clear sentinel", "error", err)
	}
}

// CheckForCrash reads any existing record left by a prior process and
// deletes it. A corrupted or empty file is deleted silently and treated as
// "no crash". Returns nil if there was nothing to recover.
func (s *Sentinel) CheckForCrash() *models.SentinelRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var record models.SentinelRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.log.Warn("discarding corrupted sentinel", "error", err)
		_ = os.Remove(s.path)
		return nil
	}

	_ = os.Remove(s.path)
	if record.SessionID == "" {
		return nil
	}
	return &record
}

// FormatRecoveryMessage builds the outbound text for a detected crash.
func FormatRecoveryMessage(record *models.SentinelRecord) string {
	return fmt.Sprintf(
		"Restarted after an unexpected stop while handling a message in session %s at %s. The previous request may not have completed; please resend it if needed.",
		record.SessionID,
		record.Timestamp.Format(time.RFC3339),
	)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
