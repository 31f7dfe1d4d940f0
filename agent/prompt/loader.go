package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/booking.txt
	bookingRaw string

	//go:embed template/capacity.txt
	capacityRaw string

	//go:embed template/guardian.txt
	guardianRaw string

	//go:embed template/guardian_form.txt
	guardianFormRaw string

	//go:embed template/suggest.txt
	suggestRaw string
)

var (
	classifierTmpl   = mustParse("classifier", classifierRaw)
	bookingTmpl      = mustParse("booking", bookingRaw)
	capacityTmpl     = mustParse("capacity", capacityRaw)
	guardianTmpl     = mustParse("guardian", guardianRaw)
	guardianFormTmpl = mustParse("guardian_form", guardianFormRaw)
	suggestTmpl      = mustParse("suggest", suggestRaw)
)

func mustParse(name, raw string) *template.Template {
	return template.Must(template.New(name).Parse(strings.TrimSpace(raw)))
}

// ClassifierData feeds the router prompt. ActiveRoute and PreviousIntent are
// "NONE" when unset so the follow-up rules read naturally.
type ClassifierData struct {
	History        string
	ActiveRoute    string
	PreviousIntent string
}

// HandlerData feeds the booking and capacity prompts. TerminalsSection is the
// prefetched name-to-UUID map rendered as text; OperatorTerminal is the
// operator's assignment, empty for other roles.
type HandlerData struct {
	Now              string
	Today            string
	Tomorrow         string
	Role             string
	TerminalsSection string
	OperatorTerminal string
}

// GuardianData feeds the finalizer prompt.
type GuardianData struct {
	LanguageInstruction string
	Role                string
	Intent              string
	Draft               string
	TerminalsSection    string
	UIPayload           string
}

type SuggestData struct {
	Data string
}

func Classifier(d ClassifierData) (string, error) { return render(classifierTmpl, d) }
func Booking(d HandlerData) (string, error)       { return render(bookingTmpl, d) }
func Capacity(d HandlerData) (string, error)      { return render(capacityTmpl, d) }
func Guardian(d GuardianData) (string, error)     { return render(guardianTmpl, d) }
func GuardianForm(d GuardianData) (string, error) { return render(guardianFormTmpl, d) }
func Suggest(d SuggestData) (string, error)       { return render(suggestTmpl, d) }

// LanguageInstruction returns the guardian's language directive. English gets
// the short form; anything else gets the explicit translation order.
func LanguageInstruction(language string) string {
	lang := strings.TrimSpace(language)
	if lang == "" || strings.EqualFold(lang, "en") || strings.EqualFold(lang, "english") {
		return "Respond in English."
	}
	return fmt.Sprintf(`The user's language is: %[1]s.
You MUST translate the ENTIRE response into %[1]s.
Do NOT respond in English. The user expects a response in their native language.
Translate all text including greetings, explanations, and table headers.
Keep technical terms (terminal names, booking IDs, status codes) as-is.`, lang)
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
