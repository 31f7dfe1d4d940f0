package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role identifies the caller's position in the port. It is fixed for the
// lifetime of a conversation and gates which tools a handler may dispatch.
type Role string

const (
	RoleCarrier  Role = "CARRIER"
	RoleOperator Role = "OPERATOR"
	RoleAdmin    Role = "ADMIN"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleCarrier, RoleOperator, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}

// Intent is the classified purpose of a user's message. Exactly one intent is
// assigned per turn; the router never sees anything outside this set.
type Intent string

const (
	IntentBooking    Intent = "BOOKING"
	IntentCapacity   Intent = "CAPACITY"
	IntentHelp       Intent = "HELP"
	IntentOutOfScope Intent = "OUT_OF_SCOPE"
)

func ParseIntent(raw string) (Intent, bool) {
	switch Intent(raw) {
	case IntentBooking, IntentCapacity, IntentHelp, IntentOutOfScope:
		return Intent(raw), true
	default:
		return "", false
	}
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// MessageEntry is one turn entry in the append-only conversation history.
type MessageEntry struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	ToolName  string      `json:"tool_name,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ContentBlock is the typed unit of a terminal response. Only recognized
// kinds ever reach the caller.
type ContentBlock struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

const BlockTypeText = "text"

func TextBlock(content string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Content: content}
}

// UI signals emitted by domain handlers and forwarded verbatim by the
// finalizer.
const UISignalOpenBookingForm = "OPEN_BOOKING_FORM"

// ToolCall is a structured request a handler issues through the dispatcher.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult carries either a result payload or a typed failure, never both.
type ToolResult struct {
	Tool    string   `json:"tool"`
	Result  any      `json:"result,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func (r ToolResult) Failed() bool {
	return r.Failure != nil
}

// FailureKind is the closed taxonomy surfaced by the tool dispatcher and the
// checkpoint store. Handlers reason about these, never about raw transport
// errors.
type FailureKind string

const (
	FailureUnauthorized       FailureKind = "UNAUTHORIZED"
	FailureNotFound           FailureKind = "NOT_FOUND"
	FailureValidation         FailureKind = "VALIDATION_FAILED"
	FailureBackendUnavailable FailureKind = "BACKEND_UNAVAILABLE"
	FailureTimeout            FailureKind = "TIMEOUT"
	FailureInternal           FailureKind = "INTERNAL_ERROR"
)

// Failure is a typed tool or store failure. It is an error so call sites can
// wrap it and errors.As their way back to the kind.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Tool    string      `json:"tool,omitempty"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	if f.Tool != "" {
		return fmt.Sprintf("%s: tool=%s: %s", f.Kind, f.Tool, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func NewFailure(kind FailureKind, tool, message string) *Failure {
	return &Failure{Kind: kind, Tool: tool, Message: message}
}

// FailureFrom maps an arbitrary error into the taxonomy. Context deadline
// errors become Timeout; an existing *Failure passes through unchanged.
func FailureFrom(err error, tool string) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		if f.Tool == "" && tool != "" {
			return &Failure{Kind: f.Kind, Tool: tool, Message: f.Message}
		}
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewFailure(FailureTimeout, tool, err.Error())
	}
	return NewFailure(FailureInternal, tool, err.Error())
}
