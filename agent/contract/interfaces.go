package contract

import (
	"context"

	statex "github.com/quayside/portagent/agent/state"
)

// Classifier assigns exactly one intent to the latest user message. It must
// not mutate history and must not call tools; a failed or ambiguous
// classification defaults to OUT_OF_SCOPE at the engine.
type Classifier interface {
	Classify(ctx context.Context, st *statex.ConversationState) (ClassifierResult, error)
}

// Handler is a domain node owning a bounded, role-gated tool set. It runs the
// tool-call loop and produces a draft; it never emits the terminal response.
type Handler interface {
	Handle(ctx context.Context, st *statex.ConversationState) (Draft, error)
}

// Finalizer is the single node allowed to produce the value returned to the
// caller. It forwards UI signals untouched.
type Finalizer interface {
	Finalize(ctx context.Context, req FinalizeRequest) (FinalizeResult, error)
}

// Dispatcher executes named tool calls against the external backend and maps
// every outcome into the closed failure taxonomy.
type Dispatcher interface {
	Call(ctx context.Context, call statex.ToolCall, role statex.Role, scope Scope) statex.ToolResult
	CallAll(ctx context.Context, calls []statex.ToolCall, role statex.Role, scope Scope) []statex.ToolResult
}
