package llm

import (
	"errors"
	"testing"

	contractx "github.com/quayside/portagent/agent/contract"
)

func baseConfig() Config {
	return Config{
		BaseURL:     "https://openrouter.ai/api/v1",
		APIKey:      "key",
		Model:       "default/model",
		Temperature: 0.5,

		ClassifierTemperature: -1,
		BookingTemperature:    -1,
		CapacityTemperature:   -1,
		GuardianTemperature:   -1,
		SuggestTemperature:    -1,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	cfg.APIKey = " "
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("missing key = %v, want ErrValidation", err)
	}

	cfg = baseConfig()
	cfg.Model = ""
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("missing model = %v, want ErrValidation", err)
	}
}

func TestOpenRouterForDefaults(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	out := cfg.OpenRouterFor(contractx.AgentKindBooking)
	if out.Model != "default/model" || out.Temperature != 0.5 {
		t.Fatalf("unexpected defaults: %+v", out)
	}
}

func TestOpenRouterForOverrides(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.ClassifierModel = "fast/model"
	cfg.ClassifierTemperature = 0
	cfg.GuardianModel = "polish/model"

	classifier := cfg.OpenRouterFor(contractx.AgentKindClassifier)
	if classifier.Model != "fast/model" {
		t.Fatalf("classifier model = %q", classifier.Model)
	}
	if classifier.Temperature != 0 {
		t.Fatalf("classifier temperature = %v, want the explicit zero", classifier.Temperature)
	}

	guardian := cfg.OpenRouterFor(contractx.AgentKindGuardian)
	if guardian.Model != "polish/model" {
		t.Fatalf("guardian model = %q", guardian.Model)
	}
	if guardian.Temperature != 0.5 {
		t.Fatalf("guardian temperature = %v, want the shared default", guardian.Temperature)
	}

	booking := cfg.OpenRouterFor(contractx.AgentKindBooking)
	if booking.Model != "default/model" {
		t.Fatalf("booking model = %q, want untouched default", booking.Model)
	}
}
