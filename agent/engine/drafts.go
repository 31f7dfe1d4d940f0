package engine

import (
	"strings"

	statex "github.com/quayside/portagent/agent/state"
)

const outOfScopeDraft = "I'm sorry, I can only help with port logistics — bookings, terminal capacity, and scheduling. " +
	"I can't assist with that topic. Is there anything else I can help you with?"

// helpDraft describes the assistant's abilities for the caller's role. It is
// a draft like any other; the guardian still localizes and formats it.
func helpDraft(role statex.Role) string {
	lines := []string{
		"I'm the **Port Logistics Assistant**. Here's what I can help you with:",
		"",
	}
	switch role {
	case statex.RoleAdmin:
		lines = append(lines,
			"- **Bookings** — View all bookings across every terminal, search by carrier, status, or terminal, and manage booking operations.",
			"- **Capacity** — Check real-time capacity, slot availability, and utilization for any terminal on any date.",
			"- **Terminals** — Get an overview of all terminals in the system.",
		)
	case statex.RoleOperator:
		lines = append(lines,
			"- **Bookings** — View and manage bookings for your terminal.",
			"- **Capacity** — Check slot availability and capacity status for your terminal on any date.",
		)
	default:
		lines = append(lines,
			"- **Bookings** — View your bookings, check booking status, or start a new booking.",
			"- **Capacity** — Check available time slots and terminal capacity for any date.",
		)
	}
	lines = append(lines,
		"",
		"Just ask me a question and I'll take care of the rest!",
	)
	return strings.Join(lines, "\n")
}

// fallbackText is the fixed terminal-failure response, pre-translated for the
// languages the classifier commonly detects. No model call happens on the
// fatal path.
func fallbackText(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "french", "français":
		return "Désolé, je rencontre un problème technique. Veuillez réessayer dans un instant."
	case "spanish", "español":
		return "Lo siento, tengo un problema técnico. Por favor, inténtelo de nuevo en un momento."
	case "german", "deutsch":
		return "Entschuldigung, es liegt ein technisches Problem vor. Bitte versuchen Sie es gleich noch einmal."
	case "arabic", "العربية":
		return "عذراً، أواجه مشكلة تقنية. يرجى المحاولة مرة أخرى بعد قليل."
	case "portuguese", "português":
		return "Desculpe, estou com um problema técnico. Tente novamente em instantes."
	case "chinese", "中文":
		return "抱歉，系统遇到技术问题，请稍后再试。"
	default:
		return "Sorry, I'm having a technical problem right now. Please try again in a moment."
	}
}
