package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/quayside/portagent/agent/contract"
	promptx "github.com/quayside/portagent/agent/prompt"
	statex "github.com/quayside/portagent/agent/state"
	toolx "github.com/quayside/portagent/agent/tool"
	openrouterx "github.com/quayside/portagent/pkg/openrouter"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

const (
	defaultMaxToolRounds = 4
	historyWindow        = 10
)

// Chatter is the tool-binding LLM surface a handler needs.
type Chatter interface {
	Chat(ctx context.Context, system string, msgs []openrouterx.Message, tools []openrouterx.ToolDef) (openrouterx.Completion, error)
}

// ToolBinder is a dispatcher that can also render the model-facing
// definitions of a role-gated tool subset.
type ToolBinder interface {
	contractx.Dispatcher
	DefsFor(role statex.Role, names []string) []openrouterx.ToolDef
}

// TerminalLister provides the terminal name-to-UUID map prefetched into every
// handler prompt.
type TerminalLister interface {
	Terminals(ctx context.Context) ([]portapix.Terminal, error)
}

// Config wires one domain handler.
type Config struct {
	Kind          contractx.AgentKind
	Intent        statex.Intent
	LLM           Chatter
	Tools         ToolBinder
	ToolNames     []string
	Terminals     TerminalLister
	MaxToolRounds int
	Clock         func() time.Time
}

// Handler runs the bounded tool-call loop for one domain and produces a
// draft. It never emits the terminal response.
type Handler struct {
	kind      contractx.AgentKind
	intent    statex.Intent
	llm       Chatter
	tools     ToolBinder
	toolNames []string
	terminals TerminalLister
	maxRounds int
	clock     func() time.Time
}

func New(cfg Config) (*Handler, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("%w: handler %s needs an llm client", contractx.ErrValidation, cfg.Kind)
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("%w: handler %s needs a tool dispatcher", contractx.ErrValidation, cfg.Kind)
	}
	if len(cfg.ToolNames) == 0 {
		return nil, fmt.Errorf("%w: handler %s has no tools bound", contractx.ErrValidation, cfg.Kind)
	}
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		kind:      cfg.Kind,
		intent:    cfg.Intent,
		llm:       cfg.LLM,
		tools:     cfg.Tools,
		toolNames: cfg.ToolNames,
		terminals: cfg.Terminals,
		maxRounds: maxRounds,
		clock:     clock,
	}, nil
}

// BookingToolNames is the booking handler's tool set. Role gating inside the
// dispatcher narrows it per caller.
func BookingToolNames() []string {
	return []string{
		toolx.ToolBookingsByUser,
		toolx.ToolAllBookings,
		toolx.ToolBookingsByTerminal,
		toolx.ToolTerminalSchedule,
		toolx.ToolCapacityByTerminal,
		toolx.ToolPrepareBookingForm,
		toolx.ToolAskUser,
	}
}

// CapacityToolNames is the capacity handler's tool set.
func CapacityToolNames() []string {
	return []string{
		toolx.ToolCheckAvailability,
		toolx.ToolCapacitySummary,
		toolx.ToolTerminalDetails,
		toolx.ToolCapacityByTerminal,
		toolx.ToolAskUser,
	}
}

func (h *Handler) Handle(ctx context.Context, st *statex.ConversationState) (contractx.Draft, error) {
	if st == nil {
		return contractx.Draft{}, statex.ErrNilState
	}

	system, err := h.systemPrompt(ctx, st)
	if err != nil {
		return contractx.Draft{}, err
	}

	defs := h.tools.DefsFor(st.UserRole, h.toolNames)
	allowed := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		allowed[d.Name] = struct{}{}
	}
	scope := contractx.Scope{
		UserID:     st.UserID,
		TerminalID: st.TerminalID,
		CarrierID:  st.CarrierID,
	}

	msgs := historyMessages(st.RecentHistory(historyWindow))

	for round := 0; round < h.maxRounds; round++ {
		out, err := h.llm.Chat(ctx, system, msgs, defs)
		if err != nil {
			return contractx.Draft{}, fmt.Errorf("%w: %s handler: %v", contractx.ErrModelInvoke, h.kind, err)
		}

		if len(out.ToolCalls) == 0 {
			text := strings.TrimSpace(out.Content)
			if text == "" {
				return contractx.Draft{}, fmt.Errorf("%w: %s handler produced an empty reply", contractx.ErrSchemaViolation, h.kind)
			}
			return contractx.Draft{Text: text}, nil
		}

		calls, err := decodeToolCalls(out.ToolCalls)
		if err != nil {
			return contractx.Draft{}, err
		}

		// Clarifications and form handoffs end the loop immediately.
		if draft, done := h.interceptLocal(ctx, st, calls, allowed, scope); done {
			return draft, nil
		}

		msgs = append(msgs, assistantToolMessage(out))
		results := h.dispatchGated(ctx, allowed, calls, st.UserRole, scope)
		for i, call := range calls {
			st.RecordToolExchange(call, results[i], h.clock())
			msgs = append(msgs, openrouterx.Message{
				Role:       openrouterx.RoleTool,
				Content:    renderResult(results[i]),
				ToolCallID: call.ID,
			})
		}

		// Every other failure kind is narrated back to the model; an
		// authorization breach ends the turn with a plain refusal.
		for _, result := range results {
			if result.Failed() && result.Failure.Kind == statex.FailureUnauthorized {
				log.Warn().Str("handler", string(h.kind)).Str("tool", result.Tool).
					Str("role", string(st.UserRole)).Msg("unauthorized tool request rejected")
				return contractx.Draft{
					Text: "You don't have permission to access that data with your current role.",
				}, nil
			}
		}
	}

	// Round budget exhausted: ask for a final answer with no tools bound.
	out, err := h.llm.Chat(ctx, system, append(msgs, openrouterx.Message{
		Role:    openrouterx.RoleUser,
		Content: "Summarize the information gathered so far and answer the user directly. Do not request any more data.",
	}), nil)
	if err != nil {
		return contractx.Draft{}, fmt.Errorf("%w: %s handler summary: %v", contractx.ErrModelInvoke, h.kind, err)
	}
	text := strings.TrimSpace(out.Content)
	if text == "" {
		return contractx.Draft{}, fmt.Errorf("%w: %s handler summary is empty", contractx.ErrSchemaViolation, h.kind)
	}
	return contractx.Draft{Text: text}, nil
}

// interceptLocal handles the tools that never cross the dispatcher boundary
// as plain backend calls: ask_user pins the route lock for the follow-up
// turn, prepare_booking_form ends the turn with a UI signal.
func (h *Handler) interceptLocal(ctx context.Context, st *statex.ConversationState, calls []statex.ToolCall, allowed map[string]struct{}, scope contractx.Scope) (contractx.Draft, bool) {
	for _, call := range calls {
		switch call.Tool {
		case toolx.ToolAskUser:
			message := strings.TrimSpace(argString(call.Args, "message"))
			if message == "" {
				message = "Could you share a bit more detail so I can help?"
			}
			st.RouteLock = h.intent
			return contractx.Draft{Text: message}, true

		case toolx.ToolPrepareBookingForm:
			// The intercepted form call obeys the same role-bound set as
			// dispatched tools: a call outside it never reaches the dispatcher.
			if _, ok := allowed[call.Tool]; !ok {
				failure := statex.NewFailure(statex.FailureUnauthorized, call.Tool,
					fmt.Sprintf("tool is not available to role %s", st.UserRole))
				st.RecordToolExchange(call, statex.ToolResult{Tool: call.Tool, Failure: failure}, h.clock())
				log.Warn().Str("handler", string(h.kind)).Str("tool", call.Tool).
					Str("role", string(st.UserRole)).Msg("unauthorized tool request rejected")
				return contractx.Draft{
					Text: "You don't have permission to access that data with your current role.",
				}, true
			}
			result := h.tools.Call(ctx, call, st.UserRole, scope)
			st.RecordToolExchange(call, result, h.clock())
			if result.Failed() {
				log.Warn().Str("handler", string(h.kind)).Str("kind", string(result.Failure.Kind)).
					Msg("booking form preparation failed")
				return contractx.Draft{Text: "I could not prepare the booking form: " + result.Failure.Message}, true
			}
			payload := decodeFormPayload(result.Result)
			return contractx.Draft{
				Text:      formDraftText(payload),
				UISignal:  statex.UISignalOpenBookingForm,
				UIPayload: payload,
			}, true
		}
	}
	return contractx.Draft{}, false
}

// dispatchGated enforces the handler's allowed set before the dispatcher ever
// sees a call. Rejected calls become typed failures the model can read;
// authorized calls fan out concurrently and merge back in request order.
func (h *Handler) dispatchGated(ctx context.Context, allowed map[string]struct{}, calls []statex.ToolCall, role statex.Role, scope contractx.Scope) []statex.ToolResult {
	results := make([]statex.ToolResult, len(calls))

	authorized := make([]statex.ToolCall, 0, len(calls))
	positions := make([]int, 0, len(calls))
	for i, call := range calls {
		if _, ok := allowed[call.Tool]; !ok {
			results[i] = statex.ToolResult{
				Tool:    call.Tool,
				Failure: statex.NewFailure(statex.FailureUnauthorized, call.Tool, fmt.Sprintf("tool is not available to role %s", role)),
			}
			continue
		}
		authorized = append(authorized, call)
		positions = append(positions, i)
	}

	for i, result := range h.tools.CallAll(ctx, authorized, role, scope) {
		results[positions[i]] = result
	}
	return results
}

func (h *Handler) systemPrompt(ctx context.Context, st *statex.ConversationState) (string, error) {
	now := h.clock().UTC()
	data := promptx.HandlerData{
		Now:              now.Format("2006-01-02 15:04:05"),
		Today:            now.Format("2006-01-02"),
		Tomorrow:         now.AddDate(0, 0, 1).Format("2006-01-02"),
		Role:             string(st.UserRole),
		TerminalsSection: h.terminalsSection(ctx),
	}
	if st.UserRole == statex.RoleOperator && st.TerminalID != "" {
		data.OperatorTerminal = "Terminal UUID: " + st.TerminalID
	}

	switch h.kind {
	case contractx.AgentKindCapacity:
		return promptx.Capacity(data)
	default:
		return promptx.Booking(data)
	}
}

// terminalsSection renders the name-to-UUID map. A fetch failure degrades to
// an empty section; the model then has to ask instead of inventing IDs.
func (h *Handler) terminalsSection(ctx context.Context) string {
	if h.terminals == nil {
		return ""
	}
	terminals, err := h.terminals.Terminals(ctx)
	if err != nil {
		log.Warn().Err(err).Str("handler", string(h.kind)).Msg("terminal map prefetch failed")
		return ""
	}
	if len(terminals) == 0 {
		return ""
	}
	lines := make([]string, 0, len(terminals)+1)
	lines = append(lines, "Terminal Name -> Terminal UUID:")
	for _, t := range terminals {
		name := t.Name
		if name == "" {
			name = t.Code
		}
		lines = append(lines, fmt.Sprintf("- %q -> %s", name, t.ID))
	}
	return strings.Join(lines, "\n")
}

func historyMessages(entries []statex.MessageEntry) []openrouterx.Message {
	msgs := make([]openrouterx.Message, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case statex.MessageRoleUser:
			msgs = append(msgs, openrouterx.Message{Role: openrouterx.RoleUser, Content: e.Content})
		case statex.MessageRoleAssistant:
			msgs = append(msgs, openrouterx.Message{Role: openrouterx.RoleAssistant, Content: e.Content})
		}
	}
	return msgs
}

func assistantToolMessage(out openrouterx.Completion) openrouterx.Message {
	return openrouterx.Message{
		Role:      openrouterx.RoleAssistant,
		Content:   out.Content,
		ToolCalls: out.ToolCalls,
	}
}

func decodeToolCalls(calls []openrouterx.ToolCall) ([]statex.ToolCall, error) {
	out := make([]statex.ToolCall, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid args for tool=%s: %v", contractx.ErrSchemaViolation, name, err)
			}
		}
		out = append(out, statex.ToolCall{ID: call.ID, Tool: name, Args: args})
	}
	return out, nil
}

func renderResult(result statex.ToolResult) string {
	if result.Failed() {
		return "ERROR " + result.Failure.Error()
	}
	switch v := result.Result.(type) {
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

func decodeFormPayload(result any) map[string]any {
	raw, ok := result.(string)
	if !ok {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload
}

func formDraftText(payload map[string]any) string {
	prefill, _ := payload["prefill"].(map[string]any)
	if prefill == nil {
		return "The booking form is ready. Please confirm the details to proceed."
	}
	return fmt.Sprintf("Booking form prepared: date %v, time %v, terminal %v. Ask the user to confirm and proceed.",
		prefill["date"], prefill["time"], prefill["terminal"])
}

func argString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}
