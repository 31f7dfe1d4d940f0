package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNilState        = errors.New("conversation state is nil")
	ErrInvalidThread   = errors.New("thread id is empty")
	ErrInvalidRole     = errors.New("invalid user role")
	ErrImmutableRole   = errors.New("user role cannot change mid-conversation")
	ErrUntypedResponse = errors.New("final response contains an untyped block")
)

// ConversationState is the unit of persistence and the sole value threaded
// through the workflow. One record per thread; loaded at turn start, mutated
// locally, written back whole.
type ConversationState struct {
	// Identity
	ThreadID   string `json:"thread_id"`
	UserID     string `json:"user_id"`
	UserRole   Role   `json:"user_role"`
	TerminalID string `json:"terminal_id,omitempty"` // OPERATOR data scope
	CarrierID  string `json:"carrier_id,omitempty"`  // CARRIER data scope

	// Conversation
	Messages []MessageEntry `json:"messages"`
	Intent   Intent         `json:"intent,omitempty"`
	Language string         `json:"language,omitempty"`

	// RouteLock pins the next turn back to the handler that asked a
	// clarification question, bypassing classification.
	RouteLock Intent `json:"route_lock,omitempty"`

	// Turn-scoped scratch space. Cleared by BeginTurn, never persisted.
	PendingToolCalls []ToolCall     `json:"-"`
	ToolResults      []ToolResult   `json:"-"`
	DraftResponse    string         `json:"-"`
	FinalResponse    []ContentBlock `json:"-"`
	UISignal         string         `json:"-"`
	UIPayload        map[string]any `json:"-"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversationState(threadID, userID string, role Role, now time.Time) *ConversationState {
	return &ConversationState{
		ThreadID:  threadID,
		UserID:    userID,
		UserRole:  role,
		Messages:  make([]MessageEntry, 0, 8),
		UpdatedAt: now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// BeginTurn clears the transient turn fields. History, intent, language, and
// route lock survive across turns; everything else is per-turn scratch.
func (s *ConversationState) BeginTurn() {
	s.PendingToolCalls = nil
	s.ToolResults = nil
	s.DraftResponse = ""
	s.FinalResponse = nil
	s.UISignal = ""
	s.UIPayload = nil
}

// AppendMessage appends one entry to the history. The history is append-only;
// nothing in the core ever truncates it.
func (s *ConversationState) AppendMessage(role MessageRole, content, toolName string, now time.Time) {
	s.Messages = append(s.Messages, MessageEntry{
		Role:      role,
		Content:   content,
		ToolName:  toolName,
		Timestamp: now.UTC(),
	})
}

// LastUserMessage returns the most recent user entry, or "" on a fresh state.
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == MessageRoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// RecentHistory returns up to n trailing entries.
func (s *ConversationState) RecentHistory(n int) []MessageEntry {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// RecordToolExchange appends a dispatched call and its result to both the
// turn scratch space and the durable history.
func (s *ConversationState) RecordToolExchange(call ToolCall, result ToolResult, now time.Time) {
	s.PendingToolCalls = append(s.PendingToolCalls, call)
	s.ToolResults = append(s.ToolResults, result)

	content := ""
	if result.Failure != nil {
		content = result.Failure.Error()
	} else {
		content = fmt.Sprint(result.Result)
	}
	s.AppendMessage(MessageRoleTool, content, call.Tool, now)
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilState
	}
	if strings.TrimSpace(s.ThreadID) == "" {
		return ErrInvalidThread
	}
	if _, ok := ParseRole(string(s.UserRole)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, s.UserRole)
	}
	if s.Intent != "" {
		if _, ok := ParseIntent(string(s.Intent)); !ok {
			return fmt.Errorf("invalid intent %q", s.Intent)
		}
	}
	for _, b := range s.FinalResponse {
		if b.Type != BlockTypeText {
			return fmt.Errorf("%w: %q", ErrUntypedResponse, b.Type)
		}
	}
	return nil
}

// Clone returns a deep copy via the JSON round trip the stores use anyway,
// so a caller can never hold a live reference into a persisted state.
func (s *ConversationState) Clone() (*ConversationState, error) {
	if s == nil {
		return nil, ErrNilState
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone state: %w", err)
	}
	var out ConversationState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone state: %w", err)
	}
	return &out, nil
}
