package sessions

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kaivyy/agentd/pkg/models"
)

// backgroundPrefix and isolatedPrefix mark session keys that are exempt from
// persistence: ephemeral background jobs and one-off isolated turns (cron
// results, system notices) never need a durable conversation history.
const (
	backgroundPrefix = "background:"
	isolatedPrefix   = "isolated:"
)

// ExemptFromPersistence reports whether a session key opts out of durable
// storage.
func ExemptFromPersistence(sessionKey string) bool {
	return strings.HasPrefix(sessionKey, backgroundPrefix) || strings.HasPrefix(sessionKey, isolatedPrefix)
}

// Service wraps a Store with the create-or-get-by-key contract the agent
// loop depends on, plus best-effort persistence: a save failure is logged
// and swallowed rather than aborting the turn, and background/isolated
// session keys skip the store entirely.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService builds a Service over store.
func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log.With("component", "sessions")}
}

// GetOrCreate returns the session for sessionKey, creating it if absent.
// Exempt keys never touch the store; an ephemeral in-memory session record
// is synthesized instead so callers have a uniform Session to work with.
func (s *Service) GetOrCreate(ctx context.Context, sessionKey, agentID string, channel models.ChannelType, channelID string) (*models.Session, error) {
	if ExemptFromPersistence(sessionKey) {
		return &models.Session{Key: sessionKey, AgentID: agentID, Channel: channel, ChannelID: channelID}, nil
	}
	return s.store.GetOrCreate(ctx, sessionKey, agentID, channel, channelID)
}

// Save persists session updates. Exempt session keys are silently skipped.
// A persistence failure for a non-exempt key is logged and swallowed: the
// turn that produced this update must still complete.
func (s *Service) Save(ctx context.Context, session *models.Session) {
	if session == nil || ExemptFromPersistence(session.Key) {
		return
	}
	if err := s.store.Update(ctx, session); err != nil {
		s.log.Warn("session save failed, continuing without persistence", "session_key", session.Key, "error", err)
	}
}

// AppendMessage records one turn of history. Exempt session keys are
// silently skipped; failures for non-exempt keys are logged and swallowed.
func (s *Service) AppendMessage(ctx context.Context, sessionKey, sessionID string, msg *models.Message) {
	if ExemptFromPersistence(sessionKey) {
		return
	}
	if err := s.store.AppendMessage(ctx, sessionID, msg); err != nil {
		s.log.Warn("append message failed, continuing without persistence", "session_key", sessionKey, "error", err)
	}
}

// History returns stored history for a session, or an empty slice for
// exempt keys (which never accumulate durable history).
func (s *Service) History(ctx context.Context, sessionKey, sessionID string, limit int) []*models.Message {
	if ExemptFromPersistence(sessionKey) {
		return nil
	}
	history, err := s.store.GetHistory(ctx, sessionID, limit)
	if err != nil {
		s.log.Warn("history load failed, continuing with empty history", "session_key", sessionKey, "error", err)
		return nil
	}
	return history
}
