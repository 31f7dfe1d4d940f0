package handler

import (
	"time"

	contractx "github.com/quayside/portagent/agent/contract"
	statex "github.com/quayside/portagent/agent/state"
)

// NewBooking builds the booking-domain handler.
func NewBooking(llm Chatter, tools ToolBinder, terminals TerminalLister, clock func() time.Time) (*Handler, error) {
	return New(Config{
		Kind:      contractx.AgentKindBooking,
		Intent:    statex.IntentBooking,
		LLM:       llm,
		Tools:     tools,
		ToolNames: BookingToolNames(),
		Terminals: terminals,
		Clock:     clock,
	})
}

// NewCapacity builds the capacity-domain handler.
func NewCapacity(llm Chatter, tools ToolBinder, terminals TerminalLister, clock func() time.Time) (*Handler, error) {
	return New(Config{
		Kind:      contractx.AgentKindCapacity,
		Intent:    statex.IntentCapacity,
		LLM:       llm,
		Tools:     tools,
		ToolNames: CapacityToolNames(),
		Terminals: terminals,
		Clock:     clock,
	})
}
