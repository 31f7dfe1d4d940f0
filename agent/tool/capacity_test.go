package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	contractx "github.com/quayside/portagent/agent/contract"
	statex "github.com/quayside/portagent/agent/state"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

func TestCheckAvailabilityRequiresTerminal(t *testing.T) {
	t.Parallel()

	d, err := NewDispatcher(Catalog(nil, fixedClock))
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}

	result := d.Call(context.Background(),
		statex.ToolCall{Tool: ToolCheckAvailability, Args: map[string]any{"start_date": "TODAY"}},
		statex.RoleCarrier, contractx.Scope{},
	)
	if !result.Failed() || result.Failure.Kind != statex.FailureValidation {
		t.Fatalf("result = %+v, want VALIDATION_FAILED", result)
	}
}

func TestCheckAvailabilityReport(t *testing.T) {
	t.Parallel()

	api := newBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/slots/available" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"availability": []portapix.AvailabilityDay{
			{
				Date: "2025-03-10",
				Slots: []portapix.AvailabilitySlot{
					{StartTime: "08:00", EndTime: "09:00", IsAvailable: false, AvailableCapacity: 0, Capacity: 10},
					{StartTime: "09:00", EndTime: "10:00", IsAvailable: true, AvailableCapacity: 2, Capacity: 10},
					{StartTime: "10:00", EndTime: "11:00", IsAvailable: true, AvailableCapacity: 8, Capacity: 10},
				},
			},
			{Date: "2025-03-11", IsClosed: true},
		}})
	}))

	d, err := NewDispatcher(Catalog(api, fixedClock))
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}

	result := d.Call(context.Background(), statex.ToolCall{
		Tool: ToolCheckAvailability,
		Args: map[string]any{"terminal_id": "uuid-east", "start_date": "TODAY", "end_date": "TOMORROW"},
	}, statex.RoleCarrier, contractx.Scope{})
	if result.Failed() {
		t.Fatalf("call failed: %+v", result.Failure)
	}

	report := result.Result.(string)
	if !strings.Contains(report, "AVAILABILITY REPORT: 2025-03-10 to 2025-03-11") {
		t.Fatalf("report header missing:\n%s", report)
	}
	// 10 of 30 free across the open day.
	if !strings.Contains(report, "2025-03-10 | 67% booked | 10/30 free") {
		t.Fatalf("day summary missing:\n%s", report)
	}
	if !strings.Contains(report, "08:00-09:00 | FULL") {
		t.Fatalf("full slot missing:\n%s", report)
	}
	if !strings.Contains(report, "09:00-10:00 | 2/10 slots (LOW)") {
		t.Fatalf("low slot missing:\n%s", report)
	}
	if !strings.Contains(report, "10:00-11:00 | 8/10 slots (OK)") {
		t.Fatalf("ok slot missing:\n%s", report)
	}
	if !strings.Contains(report, "Best slot: 10:00-11:00 (8 available)") {
		t.Fatalf("best slot missing:\n%s", report)
	}
	if !strings.Contains(report, "2025-03-11: TERMINAL CLOSED") {
		t.Fatalf("closed day missing:\n%s", report)
	}
}

func TestCapacitySummaryUsesOperatorScope(t *testing.T) {
	t.Parallel()

	var gotPath string
	api := newBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"summaries": []portapix.TerminalDaySummary{
			{
				Terminal: portapix.Terminal{Code: "EG"},
				Slots: []portapix.SummarySlot{
					{StartTime: "08:00", EndTime: "09:00", Booked: 10, Capacity: 10, Available: 0, IsAvailable: false},
				},
			},
		}})
	}))

	d, err := NewDispatcher(Catalog(api, fixedClock))
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}

	result := d.Call(context.Background(),
		statex.ToolCall{Tool: ToolCapacitySummary, Args: map[string]any{"date": "TODAY"}},
		statex.RoleOperator, contractx.Scope{TerminalID: "uuid-east"},
	)
	if result.Failed() {
		t.Fatalf("call failed: %+v", result.Failure)
	}
	if gotPath != "/api/analytics/terminals/uuid-east/day-summary" {
		t.Fatalf("path = %q, want the operator's terminal", gotPath)
	}

	report := result.Result.(string)
	if !strings.Contains(report, "SCHEDULE REPORT FOR 2025-03-10") {
		t.Fatalf("header missing:\n%s", report)
	}
	if !strings.Contains(report, "08:00 - 09:00 | booked: 10 | available: 0 | max: 10 | FULL") {
		t.Fatalf("slot line missing:\n%s", report)
	}
}

func TestCapacitySummaryAllTerminals(t *testing.T) {
	t.Parallel()

	var gotPath string
	api := newBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"summaries": []portapix.TerminalDaySummary{}})
	}))

	d, err := NewDispatcher(Catalog(api, fixedClock))
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}

	result := d.Call(context.Background(),
		statex.ToolCall{Tool: ToolCapacitySummary, Args: map[string]any{"date": "TODAY", "terminal_id": "ALL"}},
		statex.RoleAdmin, contractx.Scope{},
	)
	if result.Failed() {
		t.Fatalf("call failed: %+v", result.Failure)
	}
	if gotPath != "/api/analytics/terminals/all/day-summary" {
		t.Fatalf("path = %q, want the all-terminals summary", gotPath)
	}
	if !strings.Contains(result.Result.(string), "No data available.") {
		t.Fatalf("empty report = %q", result.Result)
	}
}

func TestCapacityByTerminalClosedDate(t *testing.T) {
	t.Parallel()

	api := newBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/capacity-for-date") {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(portapix.CapacityForDate{
			Date:         "2025-03-10",
			IsClosed:     true,
			ClosedReason: "Public holiday",
		})
	}))

	d, err := NewDispatcher(Catalog(api, fixedClock))
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}

	result := d.Call(context.Background(),
		statex.ToolCall{Tool: ToolCapacityByTerminal, Args: map[string]any{"terminal_id": "uuid-east", "date": "TODAY"}},
		statex.RoleAdmin, contractx.Scope{},
	)
	if result.Failed() {
		t.Fatalf("call failed: %+v", result.Failure)
	}
	if result.Result != "Terminal is CLOSED on 2025-03-10. Reason: Public holiday" {
		t.Fatalf("closed message = %q", result.Result)
	}
}

func TestCapacityByTerminalOpenDate(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/terminals/uuid-east/capacity-for-date", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(portapix.CapacityForDate{
			Date:             "2025-03-10",
			Source:           "date_override",
			OperatingStart:   "06:00",
			OperatingEnd:     "22:00",
			SlotDurationMin:  60,
			MaxTrucksPerSlot: 12,
		})
	})
	mux.HandleFunc("/api/analytics/terminals/uuid-east/day-summary", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"summaries": []portapix.TerminalDaySummary{
			{
				Terminal: portapix.Terminal{Code: "EG"},
				Slots: []portapix.SummarySlot{
					{StartTime: "06:00", EndTime: "07:00", Booked: 3, Capacity: 12, Available: 9, IsAvailable: true},
				},
			},
		}})
	})
	api := newBackendClient(t, mux)

	d, err := NewDispatcher(Catalog(api, fixedClock))
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}

	result := d.Call(context.Background(),
		statex.ToolCall{Tool: ToolCapacityByTerminal, Args: map[string]any{"date": "TODAY"}},
		statex.RoleOperator, contractx.Scope{TerminalID: "uuid-east"},
	)
	if result.Failed() {
		t.Fatalf("call failed: %+v", result.Failure)
	}

	report := result.Result.(string)
	for _, want := range []string{
		"CAPACITY FOR 2025-03-10",
		"Source: date_override",
		"Operating hours: 06:00 - 22:00",
		"Slot duration: 60 min",
		"Max trucks per slot: 12",
		"06:00 - 07:00 | booked: 3 | available: 9 | max: 12 | AVAILABLE",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestCapacityByTerminalRequiresTerminal(t *testing.T) {
	t.Parallel()

	d, err := NewDispatcher(Catalog(nil, fixedClock))
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}

	result := d.Call(context.Background(),
		statex.ToolCall{Tool: ToolCapacityByTerminal, Args: map[string]any{"date": "TODAY"}},
		statex.RoleAdmin, contractx.Scope{},
	)
	if !result.Failed() || result.Failure.Kind != statex.FailureValidation {
		t.Fatalf("result = %+v, want VALIDATION_FAILED", result)
	}
}
