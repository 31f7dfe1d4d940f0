package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/quayside/portagent/agent/contract"
	openrouterx "github.com/quayside/portagent/pkg/openrouter"
)

// Config holds the shared OpenRouter settings plus per-agent model and
// temperature overrides. An unset override falls back to the default model.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	BookingModel          string  `envconfig:"BOOKING_MODEL" split_words:"true"`
	CapacityModel         string  `envconfig:"CAPACITY_MODEL" split_words:"true"`
	GuardianModel         string  `envconfig:"GUARDIAN_MODEL" split_words:"true"`
	SuggestModel          string  `envconfig:"SUGGEST_MODEL" split_words:"true"`
	ClassifierTemperature float64 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"-1"`
	BookingTemperature    float64 `envconfig:"BOOKING_TEMPERATURE" split_words:"true" default:"-1"`
	CapacityTemperature   float64 `envconfig:"CAPACITY_TEMPERATURE" split_words:"true" default:"-1"`
	GuardianTemperature   float64 `envconfig:"GUARDIAN_TEMPERATURE" split_words:"true" default:"-1"`
	SuggestTemperature    float64 `envconfig:"SUGGEST_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the effective OpenRouter config for one agent.
func (c Config) OpenRouterFor(kind contractx.AgentKind) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, temperature float64) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if temperature >= 0 {
			temp = temperature
		}
	}

	switch kind {
	case contractx.AgentKindClassifier:
		override(c.ClassifierModel, c.ClassifierTemperature)
	case contractx.AgentKindBooking:
		override(c.BookingModel, c.BookingTemperature)
	case contractx.AgentKindCapacity:
		override(c.CapacityModel, c.CapacityTemperature)
	case contractx.AgentKindGuardian:
		override(c.GuardianModel, c.GuardianTemperature)
	case contractx.AgentKindSuggest:
		override(c.SuggestModel, c.SuggestTemperature)
	}

	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: c.MaxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
