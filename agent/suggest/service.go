package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/quayside/portagent/agent/contract"
	promptx "github.com/quayside/portagent/agent/prompt"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

// Completer is the single-exchange LLM surface the advisor needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Analytics is the slice of the backend the advisor reads. Standalone from
// the chat workflow; it never touches conversation state.
type Analytics interface {
	Overview(ctx context.Context) (map[string]any, error)
	Utilization(ctx context.Context, startDate, endDate string) ([]portapix.UtilizationEntry, error)
	DaySummary(ctx context.Context, terminalID, date string) ([]portapix.TerminalDaySummary, error)
}

// Suggestion is one prioritized admin recommendation.
type Suggestion struct {
	Priority   string `json:"priority"`
	Icon       string `json:"icon"`
	Category   string `json:"category"`
	Terminal   string `json:"terminal"`
	Suggestion string `json:"suggestion"`
}

// Report is the advisor's output, sorted high priority first.
type Report struct {
	Suggestions []Suggestion `json:"suggestions"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Service fetches a full week of capacity analytics and asks the model for
// actionable admin suggestions.
type Service struct {
	llm   Completer
	api   Analytics
	clock func() time.Time
}

func New(llm Completer, api Analytics, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{llm: llm, api: api, clock: clock}
}

func (s *Service) Generate(ctx context.Context) (Report, error) {
	snapshot := s.buildSnapshot(ctx)

	system, err := promptx.Suggest(promptx.SuggestData{Data: snapshot})
	if err != nil {
		return Report{}, err
	}

	raw, err := s.llm.Complete(ctx, system, "Generate the suggestions now.")
	if err != nil {
		return Report{}, fmt.Errorf("%w: suggestions: %v", contractx.ErrModelInvoke, err)
	}

	return Report{
		Suggestions: parseSuggestions(raw),
		GeneratedAt: s.clock().UTC(),
	}, nil
}

// buildSnapshot renders the week's analytics as a text block for the model.
// Every fetch is best-effort; missing data is stated, not fatal.
func (s *Service) buildSnapshot(ctx context.Context) string {
	today := s.clock().UTC()
	monday := weekStart(today)
	start := monday.Format("2006-01-02")
	end := monday.AddDate(0, 0, 6).Format("2006-01-02")

	var parts []string

	parts = append(parts, fmt.Sprintf("=== SYSTEM OVERVIEW (as of %s) ===", today.Format("2006-01-02")))
	overview, err := s.api.Overview(ctx)
	if err != nil || len(overview) == 0 {
		if err != nil {
			log.Warn().Err(err).Msg("overview fetch failed")
		}
		parts = append(parts, "  No overview data available.")
	} else {
		keys := make([]string, 0, len(overview))
		for k := range overview {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("  %s: %v", k, overview[k]))
		}
	}

	parts = append(parts, fmt.Sprintf("\n=== CAPACITY UTILIZATION THIS WEEK (%s to %s) ===", start, end))
	utilization, err := s.api.Utilization(ctx, start, end)
	if err != nil || len(utilization) == 0 {
		if err != nil {
			log.Warn().Err(err).Msg("utilization fetch failed")
		}
		parts = append(parts, "  No utilization data available.")
	} else {
		for _, u := range utilization {
			parts = append(parts, fmt.Sprintf("  %s: %.1f%% utilization | booked %d/%d | %d slots",
				u.Name, u.UtilizationRate, u.BookedCapacity, u.TotalCapacity, u.SlotsCount))
		}
	}

	parts = append(parts, fmt.Sprintf("\n=== DAILY SLOT BREAKDOWN (week of %s to %s) ===", start, end))
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		dayStr := day.Format("2006-01-02")
		label := day.Weekday().String()
		if dayStr == today.Format("2006-01-02") {
			label = "TODAY"
		}
		parts = append(parts, fmt.Sprintf("\n  [%s — %s]", dayStr, label))

		summaries, err := s.api.DaySummary(ctx, "", dayStr)
		if err != nil || len(summaries) == 0 {
			parts = append(parts, "    No data available.")
			continue
		}
		for _, summary := range summaries {
			parts = append(parts, "    "+summarizeDay(summary))
		}
	}

	return strings.Join(parts, "\n")
}

func summarizeDay(summary portapix.TerminalDaySummary) string {
	code := summary.Terminal.Code
	if code == "" {
		code = summary.Terminal.Name
	}
	full, booked, capacity := 0, 0, 0
	for _, s := range summary.Slots {
		if !s.IsAvailable || s.Available <= 0 {
			full++
		}
		booked += s.Booked
		capacity += s.Capacity
	}
	rate := 0.0
	if capacity > 0 {
		rate = float64(booked) / float64(capacity) * 100
	}
	return fmt.Sprintf("Terminal %s: %d/%d slots FULL | booked %d/%d (%.1f%%)",
		code, full, len(summary.Slots), booked, capacity, rate)
}

// weekStart returns the Monday of the given day's week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
}

var priorityIcons = map[string]string{
	"high":   "🔴",
	"medium": "🟡",
	"low":    "🟢",
}

var priorityOrder = map[string]int{
	"high":   0,
	"medium": 1,
	"low":    2,
}

// parseSuggestions extracts the JSON array from the model reply. An
// unparseable reply degrades to a single medium-priority suggestion carrying
// the raw text.
func parseSuggestions(raw string) []Suggestion {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var items []Suggestion
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil || len(items) == 0 {
		return []Suggestion{{
			Priority:   "medium",
			Icon:       priorityIcons["medium"],
			Category:   "General",
			Terminal:   "—",
			Suggestion: strings.TrimSpace(raw),
		}}
	}

	for i := range items {
		priority := strings.ToLower(strings.TrimSpace(items[i].Priority))
		if _, ok := priorityOrder[priority]; !ok {
			priority = "medium"
		}
		items[i].Priority = priority
		items[i].Icon = priorityIcons[priority]
		if items[i].Category == "" {
			items[i].Category = "General"
		}
		if items[i].Terminal == "" {
			items[i].Terminal = "—"
		}
	}

	sort.SliceStable(items, func(a, b int) bool {
		return priorityOrder[items[a].Priority] < priorityOrder[items[b].Priority]
	})
	return items
}
