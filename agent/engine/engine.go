package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/quayside/portagent/agent/contract"
	statex "github.com/quayside/portagent/agent/state"
)

// ScopeResolver resolves the per-conversation backend identity (operator
// terminal, carrier) once, when a thread is created.
type ScopeResolver interface {
	ResolveTerminalID(ctx context.Context, userID string) (string, error)
	ResolveCarrierID(ctx context.Context, userID string) (string, error)
}

// Config wires the engine. Handlers must cover BOOKING and CAPACITY; Scopes
// is optional.
type Config struct {
	Store       statex.Store
	Classifier  contractx.Classifier
	Handlers    map[statex.Intent]contractx.Handler
	Finalizer   contractx.Finalizer
	Scopes      ScopeResolver
	Clock       func() time.Time
	NewThreadID func() string
}

// Engine drives one turn through the workflow: load state, classify, route,
// run the domain handler, finalize, persist. Turns on the same thread are
// serialized; different threads run independently.
type Engine struct {
	store       statex.Store
	classifier  contractx.Classifier
	handlers    map[statex.Intent]contractx.Handler
	finalizer   contractx.Finalizer
	scopes      ScopeResolver
	clock       func() time.Time
	newThreadID func() string
	locks       *threadLocks
}

func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: engine needs a checkpoint store", contractx.ErrValidation)
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("%w: engine needs a classifier", contractx.ErrValidation)
	}
	if cfg.Finalizer == nil {
		return nil, fmt.Errorf("%w: engine needs a finalizer", contractx.ErrValidation)
	}
	for _, intent := range []statex.Intent{statex.IntentBooking, statex.IntentCapacity} {
		if _, ok := cfg.Handlers[intent]; !ok {
			return nil, fmt.Errorf("%w: engine needs a %s handler", contractx.ErrValidation, intent)
		}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newThreadID := cfg.NewThreadID
	if newThreadID == nil {
		newThreadID = uuid.NewString
	}
	return &Engine{
		store:       cfg.Store,
		classifier:  cfg.Classifier,
		handlers:    cfg.Handlers,
		finalizer:   cfg.Finalizer,
		scopes:      cfg.Scopes,
		clock:       clock,
		newThreadID: newThreadID,
		locks:       newThreadLocks(),
	}, nil
}

// TurnRequest is one user message addressed to one thread. An empty ThreadID
// starts a new conversation.
type TurnRequest struct {
	ThreadID string
	UserID   string
	Role     statex.Role
	Message  string
}

// TurnResponse is the terminal value of a turn. Blocks are always non-empty
// and typed.
type TurnResponse struct {
	ThreadID  string
	Blocks    []statex.ContentBlock
	UISignal  string
	UIPayload map[string]any
	Intent    statex.Intent
	RouteLock statex.Intent
	Language  string
}

func (e *Engine) RunTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return TurnResponse{}, fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	}
	role, ok := statex.ParseRole(string(req.Role))
	if !ok {
		return TurnResponse{}, fmt.Errorf("%w: %q", statex.ErrInvalidRole, req.Role)
	}

	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = e.newThreadID()
	}

	release := e.locks.acquire(threadID)
	defer release()

	st, err := e.loadOrCreate(ctx, threadID, req.UserID, role)
	if err != nil {
		if errors.Is(err, statex.ErrImmutableRole) {
			return TurnResponse{}, err
		}
		// A store outage still gets a structured answer; nothing is
		// persisted, so the thread resumes cleanly once the store is back.
		log.Error().Err(err).Str("thread_id", threadID).Msg("checkpoint load failed, returning fallback response")
		return TurnResponse{
			ThreadID: threadID,
			Blocks:   []statex.ContentBlock{statex.TextBlock(fallbackText("English"))},
			Language: "English",
		}, nil
	}

	now := e.clock()
	st.BeginTurn()
	st.AppendMessage(statex.MessageRoleUser, req.Message, "", now)

	intent, language, fatal := e.route(ctx, st)
	st.Intent = intent
	st.Language = language

	logger := log.With().Str("thread_id", threadID).Str("intent", string(intent)).Logger()

	// A fatal classification failure ends the turn with the fixed fallback
	// response; the state is still persisted and the thread id preserved.
	if fatal {
		return e.finishTurn(ctx, st, contractx.FinalizeResult{
			Blocks: []statex.ContentBlock{statex.TextBlock(fallbackText(language))},
		}), nil
	}

	var draft contractx.Draft
	switch intent {
	case statex.IntentHelp:
		draft = contractx.Draft{Text: helpDraft(st.UserRole)}
	case statex.IntentOutOfScope:
		draft = contractx.Draft{Text: outOfScopeDraft}
	default:
		draft, err = e.handlers[intent].Handle(ctx, st)
		if err != nil {
			// The fallback draft still flows through the finalizer, which
			// stays the sole terminal emitter on this path.
			logger.Error().Err(err).Msg("handler failed, continuing with fallback draft")
			draft = contractx.Draft{Text: fallbackText(language)}
		}
	}

	result, err := e.finalizer.Finalize(ctx, contractx.FinalizeRequest{
		Draft:       draft.Text,
		UserMessage: st.LastUserMessage(),
		Language:    language,
		Role:        st.UserRole,
		Intent:      intent,
		UISignal:    draft.UISignal,
		UIPayload:   draft.UIPayload,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("finalizer failed, returning draft verbatim")
		result = contractx.FinalizeResult{
			Blocks:    []statex.ContentBlock{statex.TextBlock(draft.Text)},
			UISignal:  draft.UISignal,
			UIPayload: draft.UIPayload,
		}
	}
	if len(result.Blocks) == 0 {
		result.Blocks = []statex.ContentBlock{statex.TextBlock(fallbackText(language))}
	}

	return e.finishTurn(ctx, st, result), nil
}

// loadOrCreate fetches the thread's checkpoint or mints a fresh state. The
// role is fixed at creation; a mismatch on a later turn is rejected.
func (e *Engine) loadOrCreate(ctx context.Context, threadID, userID string, role statex.Role) (*statex.ConversationState, error) {
	st, err := e.store.Load(ctx, threadID)
	switch {
	case err == nil:
		if st.UserRole != role {
			return nil, fmt.Errorf("%w: thread=%s role=%s", statex.ErrImmutableRole, threadID, st.UserRole)
		}
		return st, nil
	case errors.Is(err, statex.ErrStateNotFound):
		st = statex.NewConversationState(threadID, userID, role, e.clock())
		e.resolveScope(ctx, st)
		return st, nil
	default:
		return nil, fmt.Errorf("load checkpoint: %w", statex.FailureFrom(err, ""))
	}
}

// resolveScope binds the backend identity once per conversation. Failure
// degrades to an unscoped conversation rather than blocking the turn.
func (e *Engine) resolveScope(ctx context.Context, st *statex.ConversationState) {
	if e.scopes == nil || st.UserID == "" {
		return
	}
	switch st.UserRole {
	case statex.RoleOperator:
		terminalID, err := e.scopes.ResolveTerminalID(ctx, st.UserID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", st.UserID).Msg("operator terminal resolution failed")
			return
		}
		st.TerminalID = terminalID
	case statex.RoleCarrier:
		carrierID, err := e.scopes.ResolveCarrierID(ctx, st.UserID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", st.UserID).Msg("carrier resolution failed")
			return
		}
		st.CarrierID = carrierID
	}
}

// route picks the turn's intent. A pinned route from a prior clarification
// wins over classification; a failed classification degrades to OUT_OF_SCOPE
// and flags the turn fatal so the engine answers with the fixed fallback.
func (e *Engine) route(ctx context.Context, st *statex.ConversationState) (statex.Intent, string, bool) {
	if lock, ok := statex.ParseIntent(string(st.RouteLock)); ok {
		st.RouteLock = ""
		return lock, bestLanguage(st), false
	}

	result, err := e.classifier.Classify(ctx, st)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("classification failed, defaulting to OUT_OF_SCOPE")
		return statex.IntentOutOfScope, bestLanguage(st), true
	}
	return result.Intent, result.Language, false
}

// bestLanguage is the best guess available without a classifier verdict.
func bestLanguage(st *statex.ConversationState) string {
	if st.Language != "" {
		return st.Language
	}
	return "English"
}

// finishTurn records the final response in the history, persists the state
// whole, and shapes the caller-facing value. A persist failure is logged and
// the response still returned; the turn's answer is already correct.
func (e *Engine) finishTurn(ctx context.Context, st *statex.ConversationState, result contractx.FinalizeResult) TurnResponse {
	now := e.clock()

	st.FinalResponse = result.Blocks
	st.UISignal = result.UISignal
	st.UIPayload = result.UIPayload

	texts := make([]string, 0, len(result.Blocks))
	for _, b := range result.Blocks {
		texts = append(texts, b.Content)
	}
	st.AppendMessage(statex.MessageRoleAssistant, strings.Join(texts, "\n\n"), "", now)
	st.Touch(now)

	if err := st.Validate(); err != nil {
		log.Error().Err(err).Str("thread_id", st.ThreadID).Msg("state failed validation before save")
	} else if err := e.store.Save(ctx, st); err != nil {
		failure := statex.FailureFrom(err, "")
		log.Error().Err(err).Str("thread_id", st.ThreadID).Str("kind", string(failure.Kind)).
			Msg("checkpoint save failed")
	}

	return TurnResponse{
		ThreadID:  st.ThreadID,
		Blocks:    result.Blocks,
		UISignal:  result.UISignal,
		UIPayload: result.UIPayload,
		Intent:    st.Intent,
		RouteLock: st.RouteLock,
		Language:  st.Language,
	}
}
