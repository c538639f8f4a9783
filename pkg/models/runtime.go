package models

import "time"

// PeerKind classifies the conversation surface an InboundMessage arrived on.
type PeerKind string

const (
	PeerDirect  PeerKind = "direct"
	PeerGroup   PeerKind = "group"
	PeerChannel PeerKind = "channel"
)

// InboundMessage is produced by a channel adapter and published to the bus.
// It is immutable once constructed: content is never mutated after
// publication, and routing fields are filled exactly once by the adapter
// that created it.
type InboundMessage struct {
	Channel   string
	SenderID  string
	ChatID    string
	Content   string
	Media     []Attachment
	Timestamp time.Time
	Metadata  map[string]any

	AccountID  string
	PeerKind   PeerKind
	PeerID     string
	GuildID    string
	TeamID     string
	ThreadID   string
	ParentPeer map[string]any

	// sessionKeyOverride, when non-empty, replaces the derived session key.
	// Set once by the routing resolver; never mutated afterward.
	sessionKeyOverride string
}

// SessionKey returns channel:chat_id unless an override was set by the
// routing resolver.
func (m *InboundMessage) SessionKey() string {
	if m.sessionKeyOverride != "" {
		return m.sessionKeyOverride
	}
	return m.Channel + ":" + m.ChatID
}

// SetSessionKeyOverride sets the routing-resolved session key. It may only
// be called once; subsequent calls are no-ops so the "filled once" invariant
// holds even if a handler is accidentally invoked twice.
func (m *InboundMessage) SetSessionKeyOverride(key string) {
	if m.sessionKeyOverride == "" {
		m.sessionKeyOverride = key
	}
}

// OutboundMessage is published to the bus for delivery to a channel adapter.
type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	ReplyTo  string
	Media    []Attachment
	Metadata map[string]any
}

// EventStream identifies which logical stream a SystemEvent belongs to.
type EventStream string

const (
	StreamLifecycle EventStream = "lifecycle"
	StreamTool      EventStream = "tool"
	StreamAssistant EventStream = "assistant"
	StreamError     EventStream = "error"
)

// SystemEvent carries a per-run, strictly increasing sequence number so
// subscribers can detect gaps or reordering.
type SystemEvent struct {
	RunID     string
	Seq       int64
	Stream    EventStream
	Timestamp time.Time
	Data      map[string]any
}

func lifecycleEvent(runID string, seq int64, data map[string]any) SystemEvent {
	return SystemEvent{RunID: runID, Seq: seq, Stream: StreamLifecycle, Timestamp: time.Now(), Data: data}
}

// NewLifecycleEvent builds a lifecycle-stream SystemEvent. The caller supplies
// seq (obtained from the bus's per-run counter).
func NewLifecycleEvent(runID string, seq int64, data map[string]any) SystemEvent {
	return lifecycleEvent(runID, seq, data)
}

// NewToolEvent builds a tool-stream SystemEvent.
func NewToolEvent(runID string, seq int64, data map[string]any) SystemEvent {
	return SystemEvent{RunID: runID, Seq: seq, Stream: StreamTool, Timestamp: time.Now(), Data: data}
}

// NewAssistantEvent builds an assistant-stream SystemEvent.
func NewAssistantEvent(runID string, seq int64, data map[string]any) SystemEvent {
	return SystemEvent{RunID: runID, Seq: seq, Stream: StreamAssistant, Timestamp: time.Now(), Data: data}
}

// NewErrorEvent builds an error-stream SystemEvent.
func NewErrorEvent(runID string, seq int64, data map[string]any) SystemEvent {
	return SystemEvent{RunID: runID, Seq: seq, Stream: StreamError, Timestamp: time.Now(), Data: data}
}

// ConversationMessage is one turn of a Session's history. It generalizes
// CompletionMessage with the fields the orchestrator needs to persist and
// replay a conversation: tool_call_id/name for tool turns, and an optional
// chain-of-thought blob the model returned alongside its answer.
type ConversationMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ToolCallID       string `json:"tool_call_id,omitempty"`
	Name             string `json:"name,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

// ToolSpec is the explicit dynamic-dispatch record for a registered tool:
// name, JSON-schema parameters, and an async handler. Names are stable
// identifiers the model recalls from memory; renaming one breaks recall.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  []byte // JSON schema
	Handler     func(ctx ToolContext, args []byte) (string, error)
}

// ToolContext is the thin, non-cyclic capability handed to a tool handler in
// place of a reference to the full agent loop: a BusPort for status
// publication and a SessionPort for reading session-scoped metadata.
type ToolContext struct {
	SessionKey     string
	Channel        string
	ChatID         string
	AgentID        string
	ApprovedByUser bool
	ContextText    string
	RunID          string
}

// PendingApproval represents an exec-tool command awaiting user sign-off.
// Consumption is idempotent: at most one consumable approval exists per
// (session_key, id) at a time.
type PendingApproval struct {
	ID         string
	SessionKey string
	Command    string
	WorkingDir string
	CreatedAt  time.Time
}

// Plan is the optional pre-execution outline injected as a user message once
// per complex turn, then discarded.
type Plan struct {
	Steps     []string
	RawPrompt string
}

// SentinelRecord is the on-disk black-box marker: present iff a turn is in
// progress, or the last process crashed mid-turn.
type SentinelRecord struct {
	SessionID   string    `json:"session_id"`
	MessageID   string    `json:"message_id"`
	UserMessage string    `json:"user_message,omitempty"`
	PID         int       `json:"pid"`
	Timestamp   time.Time `json:"timestamp"`
}
