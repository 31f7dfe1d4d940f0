package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/quayside/portagent/agent/contract"
	promptx "github.com/quayside/portagent/agent/prompt"
	statex "github.com/quayside/portagent/agent/state"
)

const historyWindow = 5

// Completer is the single-exchange LLM surface the classifier needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Classifier assigns exactly one intent and a language to the latest user
// message. It never calls tools and never mutates state.
type Classifier struct {
	llm Completer
}

func New(llm Completer) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) Classify(ctx context.Context, st *statex.ConversationState) (contractx.ClassifierResult, error) {
	if st == nil {
		return contractx.ClassifierResult{}, statex.ErrNilState
	}
	userMessage := st.LastUserMessage()
	if strings.TrimSpace(userMessage) == "" {
		return contractx.ClassifierResult{}, fmt.Errorf("%w: empty user message", contractx.ErrValidation)
	}

	system, err := promptx.Classifier(promptx.ClassifierData{
		History:        formatHistory(st.RecentHistory(historyWindow)),
		ActiveRoute:    orNone(string(st.RouteLock)),
		PreviousIntent: orNone(string(st.Intent)),
	})
	if err != nil {
		return contractx.ClassifierResult{}, err
	}

	raw, err := c.llm.Complete(ctx, system, userMessage)
	if err != nil {
		return contractx.ClassifierResult{}, fmt.Errorf("%w: classify: %v", contractx.ErrModelInvoke, err)
	}
	return parseResult(raw)
}

type classifierOutput struct {
	Intent   string `json:"intent"`
	Language string `json:"language"`
}

// parseResult decodes the router's JSON reply. Anything outside the closed
// intent set is a schema violation; the engine maps that to OUT_OF_SCOPE.
func parseResult(raw string) (contractx.ClassifierResult, error) {
	cleaned := stripCodeFences(raw)

	var out classifierOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return contractx.ClassifierResult{}, fmt.Errorf("%w: classifier output is not valid JSON: %v", contractx.ErrSchemaViolation, err)
	}

	intent, ok := statex.ParseIntent(strings.ToUpper(strings.TrimSpace(out.Intent)))
	if !ok {
		return contractx.ClassifierResult{}, fmt.Errorf("%w: unknown intent %q", contractx.ErrSchemaViolation, out.Intent)
	}

	language := strings.TrimSpace(out.Language)
	if language == "" {
		language = "English"
	}
	return contractx.ClassifierResult{Intent: intent, Language: language}, nil
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func formatHistory(entries []statex.MessageEntry) string {
	if len(entries) == 0 {
		return "(no history)"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Role == statex.MessageRoleTool {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", e.Role, e.Content))
	}
	if len(lines) == 0 {
		return "(no history)"
	}
	return strings.Join(lines, "\n")
}

func orNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return "NONE"
	}
	return v
}
