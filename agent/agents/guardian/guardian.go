package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/quayside/portagent/agent/contract"
	promptx "github.com/quayside/portagent/agent/prompt"
	statex "github.com/quayside/portagent/agent/state"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

const emptyDraftApology = "I'm sorry, I could not produce an answer for that. Could you rephrase your request?"

// Completer is the single-exchange LLM surface the guardian needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// TerminalLister resolves terminal IDs to names for the form-confirmation
// prompt.
type TerminalLister interface {
	Terminals(ctx context.Context) ([]portapix.Terminal, error)
}

// Guardian is the only node allowed to produce the terminal response. It
// rewrites the draft into the user's language and format, forwards UI
// signals untouched, and never invents content.
type Guardian struct {
	llm       Completer
	terminals TerminalLister
}

func New(llm Completer, terminals TerminalLister) *Guardian {
	return &Guardian{llm: llm, terminals: terminals}
}

func (g *Guardian) Finalize(ctx context.Context, req contractx.FinalizeRequest) (contractx.FinalizeResult, error) {
	draft := strings.TrimSpace(req.Draft)
	if draft == "" {
		return contractx.FinalizeResult{
			Blocks: []statex.ContentBlock{statex.TextBlock(emptyDraftApology)},
		}, nil
	}

	system, err := g.systemPrompt(ctx, req, draft)
	if err != nil {
		return contractx.FinalizeResult{}, err
	}

	polished, err := g.llm.Complete(ctx, system, req.UserMessage)
	if err != nil {
		// The draft is still a correct answer; formatting is best-effort.
		log.Warn().Err(err).Msg("guardian polish failed, returning raw draft")
		polished = draft
	}
	polished = strings.TrimSpace(polished)
	if polished == "" {
		polished = draft
	}

	return contractx.FinalizeResult{
		Blocks:    []statex.ContentBlock{statex.TextBlock(polished)},
		UISignal:  req.UISignal,
		UIPayload: req.UIPayload,
	}, nil
}

func (g *Guardian) systemPrompt(ctx context.Context, req contractx.FinalizeRequest, draft string) (string, error) {
	data := promptx.GuardianData{
		LanguageInstruction: promptx.LanguageInstruction(req.Language),
		Role:                string(req.Role),
		Intent:              string(req.Intent),
		Draft:               draft,
	}

	if req.UISignal != statex.UISignalOpenBookingForm {
		return promptx.Guardian(data)
	}

	data.TerminalsSection = g.terminalsSection(ctx)
	if raw, err := json.Marshal(req.UIPayload); err == nil {
		data.UIPayload = string(raw)
	}
	return promptx.GuardianForm(data)
}

func (g *Guardian) terminalsSection(ctx context.Context) string {
	if g.terminals == nil {
		return ""
	}
	terminals, err := g.terminals.Terminals(ctx)
	if err != nil || len(terminals) == 0 {
		return ""
	}
	lines := make([]string, 0, len(terminals)+1)
	lines = append(lines, "TERMINALS MAP (name to id):")
	for _, t := range terminals {
		name := t.Name
		if name == "" {
			name = t.Code
		}
		lines = append(lines, fmt.Sprintf("- %q -> %s", name, t.ID))
	}
	return strings.Join(lines, "\n")
}
