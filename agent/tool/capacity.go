package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	contractx "github.com/quayside/portagent/agent/contract"
	statex "github.com/quayside/portagent/agent/state"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

func capacitySpecs(api *portapix.Client, clock func() time.Time) []Spec {
	summaryExec := capacitySummaryExecutor(api, clock)

	return []Spec{
		{
			Name:        ToolCheckAvailability,
			Description: "Check slot availability for a terminal over a date range.",
			Parameters: objectSchema([]string{"terminal_id", "start_date", "end_date"}, map[string]any{
				"terminal_id": stringProp("Terminal UUID."),
				"start_date":  stringProp("Start date in YYYY-MM-DD format, or TODAY / TOMORROW."),
				"end_date":    stringProp("End date in YYYY-MM-DD format."),
			}),
			Execute: func(ctx context.Context, args map[string]any, _ contractx.Scope) (any, error) {
				terminalID := argString(args, "terminal_id")
				if terminalID == "" {
					return nil, statex.NewFailure(statex.FailureValidation, ToolCheckAvailability, "terminal_id is required")
				}
				start := resolveDate(clock, argString(args, "start_date"))
				end := resolveDate(clock, argString(args, "end_date"))

				days, err := api.Availability(ctx, terminalID, start, end)
				if err != nil {
					return nil, err
				}
				if len(days) == 0 {
					return "No availability data found for the given dates.", nil
				}
				return formatAvailability(start, end, days), nil
			},
		},
		{
			Name: ToolCapacitySummary,
			Description: "Fetch the capacity and schedule summary for one or all terminals on a given date. " +
				"Use this for a general overview or a schedule check.",
			Parameters: objectSchema(nil, map[string]any{
				"date":        stringProp("Date in YYYY-MM-DD format, or TODAY / TOMORROW."),
				"terminal_id": stringProp("Terminal UUID, or ALL for every terminal."),
			}),
			Execute: summaryExec,
		},
		{
			Name: ToolTerminalDetails,
			Description: "Fetch detailed slot-level data for one terminal on a given date. " +
				"Prefer this when the user asks about a single terminal in depth.",
			Parameters: objectSchema([]string{"terminal_id"}, map[string]any{
				"date":        stringProp("Date in YYYY-MM-DD format, or TODAY / TOMORROW."),
				"terminal_id": stringProp("Terminal UUID."),
			}),
			Execute: summaryExec,
		},
		{
			Name: ToolCapacityByTerminal,
			Description: "Fetch the capacity configuration of one terminal on a date, including closures, " +
				"operating hours, and a slot-level breakdown. Operators are scoped to their own terminal.",
			Parameters: objectSchema(nil, map[string]any{
				"terminal_id": stringProp("Terminal UUID. Operators may omit this; their terminal is used."),
				"date":        stringProp("Date in YYYY-MM-DD format, or TODAY / TOMORROW."),
			}),
			Roles: []statex.Role{statex.RoleOperator, statex.RoleAdmin},
			Execute: func(ctx context.Context, args map[string]any, scope contractx.Scope) (any, error) {
				terminalID := argString(args, "terminal_id")
				if terminalID == "" {
					terminalID = scope.TerminalID
				}
				if terminalID == "" {
					return nil, statex.NewFailure(statex.FailureValidation, ToolCapacityByTerminal, "terminal_id is required")
				}
				date := resolveDate(clock, argString(args, "date"))

				capacity, err := api.CapacityForDate(ctx, terminalID, date)
				if err != nil {
					return nil, err
				}
				if capacity.IsClosed {
					reason := capacity.ClosedReason
					if reason == "" {
						reason = "No reason provided"
					}
					return fmt.Sprintf("Terminal is CLOSED on %s. Reason: %s", date, reason), nil
				}

				out := []string{
					fmt.Sprintf("--- CAPACITY FOR %s ---", date),
					"Source: " + capacity.Source,
					fmt.Sprintf("Operating hours: %s - %s", capacity.OperatingStart, capacity.OperatingEnd),
					fmt.Sprintf("Slot duration: %d min", capacity.SlotDurationMin),
					fmt.Sprintf("Max trucks per slot: %d", capacity.MaxTrucksPerSlot),
				}

				// Slot analytics are enrichment; a failure here does not fail the call.
				if summaries, err := api.DaySummary(ctx, terminalID, date); err == nil && len(summaries) > 0 {
					if slots := summaries[0].Slots; len(slots) > 0 {
						out = append(out, "", "Slot breakdown:")
						for _, s := range slots {
							out = append(out, "  "+formatSummarySlot(s))
						}
					}
				}
				return strings.Join(out, "\n"), nil
			},
		},
	}
}

func capacitySummaryExecutor(api *portapix.Client, clock func() time.Time) func(context.Context, map[string]any, contractx.Scope) (any, error) {
	return func(ctx context.Context, args map[string]any, scope contractx.Scope) (any, error) {
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
		return formatDaySummaries(fmt.Sprintf("--- SCHEDULE REPORT FOR %s ---", date), summaries), nil
	}
}

func formatDaySummaries(header string, summaries []portapix.TerminalDaySummary) string {
	if len(summaries) == 0 {
		return header + "\nNo data available."
	}
	out := []string{header}
	for _, summary := range summaries {
		code := summary.Terminal.Code
		if code == "" {
			code = summary.Terminal.Name
		}
		out = append(out, "", "Terminal "+code+":")
		if len(summary.Slots) == 0 {
			out = append(out, "  No slots available.")
			continue
		}
		for _, s := range summary.Slots {
			out = append(out, "  "+formatSummarySlot(s))
		}
	}
	return strings.Join(out, "\n")
}

func formatSummarySlot(s portapix.SummarySlot) string {
	status := "AVAILABLE"
	if !s.IsAvailable || s.Available <= 0 {
		status = "FULL"
	}
	return fmt.Sprintf("%s - %s | booked: %d | available: %d | max: %d | %s",
		s.StartTime, s.EndTime, s.Booked, s.Available, s.Capacity, status)
}

func formatAvailability(start, end string, days []portapix.AvailabilityDay) string {
	out := []string{fmt.Sprintf("--- AVAILABILITY REPORT: %s to %s ---", start, end)}

	for _, day := range days {
		if day.IsClosed {
			out = append(out, "", day.Date+": TERMINAL CLOSED")
			continue
		}
		if len(day.Slots) == 0 {
			out = append(out, "", day.Date+": No slots configured.")
			continue
		}

		totalCapacity, totalAvailable := 0, 0
		bestAvail := 0
		bestSlot := ""
		slotLines := make([]string, 0, len(day.Slots))

		for _, slot := range day.Slots {
			totalCapacity += slot.Capacity
			if slot.IsAvailable && slot.AvailableCapacity > 0 {
				totalAvailable += slot.AvailableCapacity
			}

			if !slot.IsAvailable || slot.AvailableCapacity <= 0 {
				slotLines = append(slotLines, fmt.Sprintf("  %s-%s | FULL", slot.StartTime, slot.EndTime))
				continue
			}
			tag := "OK"
			if slot.Capacity > 0 && float64(slot.AvailableCapacity)/float64(slot.Capacity)*100 < 30 {
				tag = "LOW"
			}
			slotLines = append(slotLines, fmt.Sprintf("  %s-%s | %d/%d slots (%s)",
				slot.StartTime, slot.EndTime, slot.AvailableCapacity, slot.Capacity, tag))
			if slot.AvailableCapacity > bestAvail {
				bestAvail = slot.AvailableCapacity
				bestSlot = slot.StartTime + "-" + slot.EndTime
			}
		}

		saturation := 0.0
		if totalCapacity > 0 {
			saturation = float64(totalCapacity-totalAvailable) / float64(totalCapacity) * 100
		}
		out = append(out, "", fmt.Sprintf("%s | %.0f%% booked | %d/%d free",
			day.Date, saturation, totalAvailable, totalCapacity))
		out = append(out, slotLines...)
		if bestSlot != "" {
			out = append(out, fmt.Sprintf("  Best slot: %s (%d available)", bestSlot, bestAvail))
		}
	}
	return strings.Join(out, "\n")
}
