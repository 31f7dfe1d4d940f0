package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contractx "github.com/quayside/portagent/agent/contract"
	statex "github.com/quayside/portagent/agent/state"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

func bookingSpecs(api *portapix.Client, clock func() time.Time) []Spec {
	return []Spec{
		{
			Name: ToolBookingsByUser,
			Description: "Fetch the caller's own bookings. Carriers see only their carrier's bookings; " +
				"the caller identity is injected by the system, never guess it.",
			Parameters: objectSchema(nil, map[string]any{
				"status":     stringProp("Filter by status: PENDING, CONFIRMED, CONSUMED, CANCELLED, REJECTED (UPPERCASE)."),
				"start_date": stringProp("Filter from date (YYYY-MM-DD, or TODAY/TOMORROW/YESTERDAY). Defaults to today."),
				"end_date":   stringProp("Filter to date (YYYY-MM-DD). Defaults to today + 7 days."),
			}),
			Roles: []statex.Role{statex.RoleCarrier, statex.RoleAdmin},
			Execute: func(ctx context.Context, args map[string]any, scope contractx.Scope) (any, error) {
				today := clock().UTC()
				q := portapix.BookingQuery{
					Status:    argString(args, "status"),
					CarrierID: scope.CarrierID,
					StartDate: resolveDateOr(clock, argString(args, "start_date"), today),
					EndDate:   resolveDateOr(clock, argString(args, "end_date"), today.AddDate(0, 0, 7)),
				}
				bookings, err := api.Bookings(ctx, q)
				if err != nil {
					return nil, err
				}
				if len(bookings) == 0 {
					return "No bookings found matching your filters.", nil
				}
				lines := make([]string, 0, len(bookings))
				for _, b := range bookings {
					lines = append(lines, formatBookingLine(b, false))
				}
				return truncateLines(lines, 15, "bookings"), nil
			},
		},
		{
			Name: ToolAllBookings,
			Description: "ADMIN ONLY: fetch all bookings system-wide across every terminal and carrier. " +
				"Use the optional filters to narrow results.",
			Parameters: objectSchema(nil, map[string]any{
				"status":      stringProp("Filter by status: PENDING, CONFIRMED, CONSUMED, CANCELLED, REJECTED (UPPERCASE)."),
				"terminal_id": stringProp("Filter by a specific terminal UUID. Omit for all terminals."),
				"carrier_id":  stringProp("Filter by a specific carrier UUID. Omit for all carriers."),
				"start_date":  stringProp("Filter from date (YYYY-MM-DD). Defaults to today."),
				"end_date":    stringProp("Filter to date (YYYY-MM-DD). Defaults to today + 3 days."),
			}),
			Roles: []statex.Role{statex.RoleAdmin},
			Execute: func(ctx context.Context, args map[string]any, _ contractx.Scope) (any, error) {
				today := clock().UTC()
				q := portapix.BookingQuery{
					Status:     argString(args, "status"),
					TerminalID: argString(args, "terminal_id"),
					CarrierID:  argString(args, "carrier_id"),
					StartDate:  resolveDateOr(clock, argString(args, "start_date"), today),
					EndDate:    resolveDateOr(clock, argString(args, "end_date"), today.AddDate(0, 0, 3)),
				}
				bookings, err := api.Bookings(ctx, q)
				if err != nil {
					return nil, err
				}
				if len(bookings) == 0 {
					return fmt.Sprintf("No bookings found (%s to %s).", q.StartDate, q.EndDate), nil
				}
				lines := make([]string, 0, len(bookings))
				for _, b := range bookings {
					lines = append(lines, formatBookingLine(b, true))
				}
				header := fmt.Sprintf("Total bookings: %d\n", len(lines))
				return header + truncateLines(lines, 25, "bookings"), nil
			},
		},
		{
			Name: ToolBookingsByTerminal,
			Description: "Fetch bookings for one terminal. Operators are scoped to their assigned terminal " +
				"automatically; admins may pass any terminal UUID.",
			Parameters: objectSchema(nil, map[string]any{
				"terminal_id": stringProp("Terminal UUID. Operators may omit this; their terminal is used."),
				"status":      stringProp("Filter by status: PENDING, CONFIRMED, CONSUMED, CANCELLED, REJECTED (UPPERCASE)."),
				"start_date":  stringProp("Filter from date (YYYY-MM-DD). Defaults to today."),
				"end_date":    stringProp("Filter to date (YYYY-MM-DD). Defaults to today + 7 days."),
			}),
			Roles: []statex.Role{statex.RoleOperator, statex.RoleAdmin},
			Execute: func(ctx context.Context, args map[string]any, scope contractx.Scope) (any, error) {
				terminalID := argString(args, "terminal_id")
				if terminalID == "" {
					terminalID = scope.TerminalID
				}
				if terminalID == "" {
					return nil, statex.NewFailure(statex.FailureValidation, ToolBookingsByTerminal, "terminal_id is required")
				}
				today := clock().UTC()
				q := portapix.BookingQuery{
					TerminalID: terminalID,
					Status:     argString(args, "status"),
					StartDate:  resolveDateOr(clock, argString(args, "start_date"), today),
					EndDate:    resolveDateOr(clock, argString(args, "end_date"), today.AddDate(0, 0, 7)),
				}
				bookings, err := api.Bookings(ctx, q)
				if err != nil {
					return nil, err
				}
				if len(bookings) == 0 {
					return fmt.Sprintf("No bookings found for this terminal (%s to %s).", q.StartDate, q.EndDate), nil
				}
				lines := make([]string, 0, len(bookings))
				for _, b := range bookings {
					lines = append(lines, formatBookingLine(b, true))
				}
				return truncateLines(lines, 20, "bookings"), nil
			},
		},
		{
			Name:        ToolTerminalSchedule,
			Description: "Return the schedule and booking density for a terminal on one date.",
			Parameters: objectSchema(nil, map[string]any{
				"date":        stringProp("Date in YYYY-MM-DD, or TODAY / TOMORROW."),
				"terminal_id": stringProp("Terminal UUID, or ALL for every terminal."),
			}),
			Roles: []statex.Role{statex.RoleOperator, statex.RoleAdmin},
			Execute: func(ctx context.Context, args map[string]any, scope contractx.Scope) (any, error) {
				date := resolveDate(clock, argString(args, "date"))
				terminalID := argString(args, "terminal_id")
				if strings.EqualFold(terminalID, "ALL") {
					terminalID = ""
				}
				if terminalID == "" && scope.TerminalID != "" {
					terminalID = scope.TerminalID
				}
				summaries, err := api.DaySummary(ctx, terminalID, date)
				if err != nil {
					return nil, err
				}
				return formatDaySummaries(fmt.Sprintf("--- SCHEDULE FOR %s ---", date), summaries), nil
			},
		},
		{
			Name: ToolPrepareBookingForm,
			Description: "Generate the structured payload that opens the booking form for the user. " +
				"Only call this when date, time, and terminal are ALL known. This never creates a booking.",
			Parameters: objectSchema([]string{"date", "time", "terminal"}, map[string]any{
				"date":     stringProp("Booking date in YYYY-MM-DD format."),
				"time":     stringProp("Booking start time in HH:mm format."),
				"terminal": stringProp("Terminal name or UUID."),
			}),
			Roles: []statex.Role{statex.RoleCarrier},
			Execute: func(ctx context.Context, args map[string]any, _ contractx.Scope) (any, error) {
				date := resolveDate(clock, argString(args, "date"))
				startTime := argString(args, "time")
				terminal := argString(args, "terminal")
				if date == "" || startTime == "" || terminal == "" {
					return nil, statex.NewFailure(statex.FailureValidation, ToolPrepareBookingForm, "date, time, and terminal are all required")
				}

				terminalID := terminal
				if terminals, err := api.Terminals(ctx); err == nil {
					for _, t := range terminals {
						if strings.EqualFold(t.Name, terminal) || strings.EqualFold(t.Code, terminal) || t.ID == terminal {
							terminalID = t.ID
							break
						}
					}
				}

				payload, err := json.Marshal(map[string]any{
					"ui_action": statex.UISignalOpenBookingForm,
					"prefill": map[string]string{
						"date":        date,
						"time":        startTime,
						"terminal":    terminal,
						"terminal_id": terminalID,
					},
				})
				if err != nil {
					return nil, fmt.Errorf("encode booking form payload: %w", err)
				}
				return string(payload), nil
			},
		},
	}
}

// resolveDateOr resolves a relative date, falling back when the model omitted
// the argument entirely.
func resolveDateOr(clock func() time.Time, value string, fallback time.Time) string {
	if strings.TrimSpace(value) == "" {
		return fallback.Format("2006-01-02")
	}
	return resolveDate(clock, value)
}

func formatBookingLine(b portapix.Booking, verbose bool) string {
	terminalName := b.Terminal.Name
	if terminalName == "" {
		terminalName = b.Terminal.Code
	}
	line := fmt.Sprintf("- [%s] %s %s-%s | Terminal: %s",
		b.Status, trimDatePart(b.TimeSlot.Date), b.TimeSlot.StartTime, b.TimeSlot.EndTime, terminalName)
	if b.Carrier.CompanyName != "" {
		line += " | Carrier: " + b.Carrier.CompanyName
	}
	if b.Truck.PlateNumber != "" {
		line += " | Truck: " + b.Truck.PlateNumber
	}
	if verbose && b.Truck.DriverName != "" {
		line += " | Driver: " + b.Truck.DriverName
	}
	return line + " | ID: " + b.ID
}
