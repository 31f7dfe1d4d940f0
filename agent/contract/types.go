package contract

import (
	statex "github.com/quayside/portagent/agent/state"
)

// AgentKind names an LLM-backed actor for per-agent model configuration.
type AgentKind string

const (
	AgentKindClassifier AgentKind = "classifier"
	AgentKindBooking    AgentKind = "booking"
	AgentKindCapacity   AgentKind = "capacity"
	AgentKindGuardian   AgentKind = "guardian"
	AgentKindSuggest    AgentKind = "suggest"
)

// Draft is a domain handler's output: a pre-finalization answer plus an
// optional out-of-band UI instruction.
type Draft struct {
	Text      string
	UISignal  string
	UIPayload map[string]any
}

// ClassifierResult pairs the assigned intent with the detected language of
// the user's message. Language is advisory; intent is always one of the
// closed set.
type ClassifierResult struct {
	Intent   statex.Intent
	Language string
}

// FinalizeRequest is everything the guardian needs to produce the terminal
// response for a turn.
type FinalizeRequest struct {
	Draft       string
	UserMessage string
	Language    string
	Role        statex.Role
	Intent      statex.Intent
	UISignal    string
	UIPayload   map[string]any
}

// FinalizeResult is the only value permitted to reach the caller.
type FinalizeResult struct {
	Blocks    []statex.ContentBlock
	UISignal  string
	UIPayload map[string]any
}

// Scope carries per-conversation identity the backend needs for row-level
// filtering. Resolved once per conversation, not per call.
type Scope struct {
	UserID     string
	TerminalID string
	CarrierID  string
}
