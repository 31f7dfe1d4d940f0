package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/quayside/portagent/agent/contract"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastSystem string
}

func (f *fakeCompleter) Complete(_ context.Context, system, _ string) (string, error) {
	f.lastSystem = system
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeAnalytics struct {
	overview    map[string]any
	overviewErr error
	utilization []portapix.UtilizationEntry
	summaries   map[string][]portapix.TerminalDaySummary
	summaryErr  error
}

func (f *fakeAnalytics) Overview(context.Context) (map[string]any, error) {
	return f.overview, f.overviewErr
}

func (f *fakeAnalytics) Utilization(context.Context, string, string) ([]portapix.UtilizationEntry, error) {
	return f.utilization, nil
}

func (f *fakeAnalytics) DaySummary(_ context.Context, _ string, date string) ([]portapix.TerminalDaySummary, error) {
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.summaries[date], nil
}

// Wednesday 2025-03-12; the week runs Monday 2025-03-10 to Sunday 2025-03-16.
func midweekClock() time.Time {
	return time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
}

func TestWeekStart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		day  time.Time
		want string
	}{
		{time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), "2025-03-10"}, // Monday
		{time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), "2025-03-10"}, // Wednesday
		{time.Date(2025, 3, 16, 9, 0, 0, 0, time.UTC), "2025-03-10"}, // Sunday
		{time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), "2025-03-17"}, // next Monday
	}
	for _, tc := range tests {
		if got := weekStart(tc.day).Format("2006-01-02"); got != tc.want {
			t.Errorf("weekStart(%s) = %s, want %s", tc.day.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	api := &fakeAnalytics{
		overview: map[string]any{"totalBookings": 42, "activeTerminals": 3},
		utilization: []portapix.UtilizationEntry{
			{Name: "East Gate", UtilizationRate: 91.5, BookedCapacity: 183, TotalCapacity: 200, SlotsCount: 20},
		},
		summaries: map[string][]portapix.TerminalDaySummary{
			"2025-03-12": {{
				Terminal: portapix.Terminal{Code: "EG"},
				Slots: []portapix.SummarySlot{
					{StartTime: "08:00", EndTime: "09:00", Booked: 10, Capacity: 10, Available: 0, IsAvailable: false},
					{StartTime: "09:00", EndTime: "10:00", Booked: 4, Capacity: 10, Available: 6, IsAvailable: true},
				},
			}},
		},
	}
	llm := &fakeCompleter{reply: `[
		{"priority": "low", "category": "Capacity", "terminal": "EG", "suggestion": "Spread morning load."},
		{"priority": "HIGH", "category": "Capacity", "terminal": "EG", "suggestion": "08:00 slot is saturated."}
	]`}

	svc := New(llm, api, midweekClock)
	report, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if len(report.Suggestions) != 2 {
		t.Fatalf("suggestions = %+v", report.Suggestions)
	}
	if report.Suggestions[0].Priority != "high" || report.Suggestions[1].Priority != "low" {
		t.Fatalf("not sorted high first: %+v", report.Suggestions)
	}
	if report.Suggestions[0].Icon != "🔴" || report.Suggestions[1].Icon != "🟢" {
		t.Fatalf("icons = %q, %q", report.Suggestions[0].Icon, report.Suggestions[1].Icon)
	}
	if !report.GeneratedAt.Equal(midweekClock().UTC()) {
		t.Fatalf("GeneratedAt = %v", report.GeneratedAt)
	}

	// The prompt must carry the assembled snapshot.
	if !strings.Contains(llm.lastSystem, "totalBookings: 42") {
		t.Fatal("overview missing from the snapshot")
	}
	if !strings.Contains(llm.lastSystem, "91.5% utilization") {
		t.Fatal("utilization missing from the snapshot")
	}
	if !strings.Contains(llm.lastSystem, "2025-03-10 to 2025-03-16") {
		t.Fatal("week window missing from the snapshot")
	}
	if !strings.Contains(llm.lastSystem, "TODAY") {
		t.Fatal("today marker missing from the snapshot")
	}
	if !strings.Contains(llm.lastSystem, "Terminal EG: 1/2 slots FULL | booked 14/20 (70.0%)") {
		t.Fatalf("day summary line missing, snapshot:\n%s", llm.lastSystem)
	}
}

func TestGenerateModelFailure(t *testing.T) {
	t.Parallel()

	svc := New(&fakeCompleter{err: errors.New("model down")}, &fakeAnalytics{}, midweekClock)
	if _, err := svc.Generate(context.Background()); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Generate() = %v, want ErrModelInvoke", err)
	}
}

func TestBuildSnapshotDegradesGracefully(t *testing.T) {
	t.Parallel()

	api := &fakeAnalytics{
		overviewErr: errors.New("overview down"),
		summaryErr:  errors.New("analytics down"),
	}
	svc := New(&fakeCompleter{}, api, midweekClock)

	snapshot := svc.buildSnapshot(context.Background())
	if !strings.Contains(snapshot, "No overview data available.") {
		t.Fatal("overview failure not stated")
	}
	if !strings.Contains(snapshot, "No utilization data available.") {
		t.Fatal("empty utilization not stated")
	}
	if !strings.Contains(snapshot, "No data available.") {
		t.Fatal("day summary failure not stated")
	}
}

func TestParseSuggestions(t *testing.T) {
	t.Parallel()

	t.Run("fenced json", func(t *testing.T) {
		t.Parallel()
		raw := "```json\n[{\"priority\": \"medium\", \"suggestion\": \"x\"}]\n```"
		items := parseSuggestions(raw)
		if len(items) != 1 || items[0].Priority != "medium" || items[0].Icon != "🟡" {
			t.Fatalf("items = %+v", items)
		}
	})

	t.Run("defaults filled", func(t *testing.T) {
		t.Parallel()
		items := parseSuggestions(`[{"priority": "URGENT", "suggestion": "y"}]`)
		if items[0].Priority != "medium" {
			t.Fatalf("unknown priority normalized to %q, want medium", items[0].Priority)
		}
		if items[0].Category != "General" || items[0].Terminal != "—" {
			t.Fatalf("defaults = %+v", items[0])
		}
	})

	t.Run("stable sort", func(t *testing.T) {
		t.Parallel()
		items := parseSuggestions(`[
			{"priority": "medium", "suggestion": "m1"},
			{"priority": "high", "suggestion": "h1"},
			{"priority": "medium", "suggestion": "m2"},
			{"priority": "high", "suggestion": "h2"}
		]`)
		got := make([]string, 0, len(items))
		for _, s := range items {
			got = append(got, s.Suggestion)
		}
		want := []string{"h1", "h2", "m1", "m2"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order = %v, want %v", got, want)
			}
		}
	})

	t.Run("unparsable degrades", func(t *testing.T) {
		t.Parallel()
		items := parseSuggestions("I could not find anything actionable this week.")
		if len(items) != 1 || items[0].Priority != "medium" {
			t.Fatalf("items = %+v", items)
		}
		if !strings.Contains(items[0].Suggestion, "actionable") {
			t.Fatalf("raw text lost: %+v", items[0])
		}
	})

	t.Run("empty array degrades", func(t *testing.T) {
		t.Parallel()
		if items := parseSuggestions("[]"); len(items) != 1 {
			t.Fatalf("items = %+v", items)
		}
	})
}
