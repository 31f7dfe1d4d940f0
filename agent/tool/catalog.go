package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/quayside/portagent/agent/contract"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

// Tool names. Handlers reference these when binding their role-gated sets.
const (
	ToolBookingsByUser     = "bookings_by_user"
	ToolAllBookings        = "all_bookings"
	ToolBookingsByTerminal = "bookings_by_terminal"
	ToolTerminalSchedule   = "terminal_schedule"
	ToolPrepareBookingForm = "prepare_booking_form"
	ToolAskUser            = "ask_user"

	ToolCheckAvailability  = "check_availability"
	ToolCapacitySummary    = "capacity_summary"
	ToolTerminalDetails    = "terminal_details"
	ToolCapacityByTerminal = "capacity_by_terminal"
)

// Catalog builds every tool spec against the given backend client. The clock
// is injectable so relative dates stay deterministic in tests; nil means
// time.Now.
func Catalog(api *portapix.Client, clock func() time.Time) []Spec {
	if clock == nil {
		clock = time.Now
	}
	specs := []Spec{askUserSpec()}
	specs = append(specs, bookingSpecs(api, clock)...)
	specs = append(specs, capacitySpecs(api, clock)...)
	return specs
}

// askUserSpec is the clarification tool. It never reaches the backend: the
// handler intercepts it, but the executor still answers sensibly if invoked.
func askUserSpec() Spec {
	return Spec{
		Name:        ToolAskUser,
		Description: "Ask the user a clarification or follow-up question when required information is missing. Use this instead of guessing.",
		Parameters: objectSchema([]string{"message"}, map[string]any{
			"message":        stringProp("The question to show the user."),
			"needs_followup": map[string]any{"type": "boolean", "description": "True if the user must respond before continuing."},
			"missing_fields": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Field names still needed, e.g. [\"date\", \"terminal\"].",
			},
		}),
		Execute: func(_ context.Context, args map[string]any, _ contractx.Scope) (any, error) {
			return map[string]any{
				"type":           "communication",
				"message":        argString(args, "message"),
				"needs_followup": argBool(args, "needs_followup"),
				"missing_fields": args["missing_fields"],
			}, nil
		},
	}
}

/* ------------------------------- helpers -------------------------------- */

func argString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if s, ok := args[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func argBool(args map[string]any, key string) bool {
	if args == nil {
		return false
	}
	b, _ := args[key].(bool)
	return b
}

// resolveDate converts the relative tokens the model is allowed to emit into
// concrete YYYY-MM-DD dates. Anything else passes through unchanged.
func resolveDate(clock func() time.Time, value string) string {
	today := clock().UTC()
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "TODAY":
		return today.Format("2006-01-02")
	case "TOMORROW":
		return today.AddDate(0, 0, 1).Format("2006-01-02")
	case "YESTERDAY":
		return today.AddDate(0, 0, -1).Format("2006-01-02")
	default:
		return strings.TrimSpace(value)
	}
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// trimDatePart strips the time component from ISO timestamps the backend
// sometimes returns in slot dates.
func trimDatePart(raw string) string {
	if i := strings.IndexByte(raw, 'T'); i > 0 {
		return raw[:i]
	}
	return raw
}

func truncateLines(lines []string, max int, unit string) string {
	if len(lines) <= max {
		return strings.Join(lines, "\n")
	}
	out := strings.Join(lines[:max], "\n")
	return out + fmt.Sprintf("\n...and %d more %s.", len(lines)-max, unit)
}
