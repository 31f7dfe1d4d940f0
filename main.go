package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quayside/portagent/agent/agents/classifier"
	"github.com/quayside/portagent/agent/agents/guardian"
	"github.com/quayside/portagent/agent/agents/handler"
	contractx "github.com/quayside/portagent/agent/contract"
	enginex "github.com/quayside/portagent/agent/engine"
	llmx "github.com/quayside/portagent/agent/llm"
	statex "github.com/quayside/portagent/agent/state"
	suggestx "github.com/quayside/portagent/agent/suggest"
	toolx "github.com/quayside/portagent/agent/tool"
	configx "github.com/quayside/portagent/pkg/config"
	_ "github.com/quayside/portagent/pkg/logger/autoload"
	portapix "github.com/quayside/portagent/pkg/portapi"
)

type AppConfig struct {
	Mode        string `envconfig:"MODE" split_words:"true" default:"chat"` // chat | suggest
	UserID      string `envconfig:"USER_ID" split_words:"true" default:"guest"`
	UserRole    string `envconfig:"USER_ROLE" split_words:"true" default:"CARRIER"`
	StoreKind   string `envconfig:"STORE" split_words:"true" default:"memory"` // memory | postgres | redis
	PostgresDSN string `envconfig:"POSTGRES_DSN" split_words:"true"`
	RedisURL    string `envconfig:"REDIS_URL" split_words:"true"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("AGENT")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	apiCfg := configx.MustNew[portapix.Config]("PORTAPI")

	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	ctx := context.Background()

	api, err := portapix.NewClient(*apiCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build backend client")
	}
	if err := api.Login(ctx); err != nil {
		log.Warn().Err(err).Msg("backend login failed, requests may be unauthorized")
	}

	if strings.EqualFold(strings.TrimSpace(appCfg.Mode), "suggest") {
		svc := suggestx.New(llmCfg.OpenRouterFor(contractx.AgentKindSuggest).MustNew(), api, nil)
		runSuggest(ctx, svc)
		return
	}

	store, err := buildStore(ctx, *appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build checkpoint store")
	}

	dispatcher, err := toolx.NewDispatcher(toolx.Catalog(api, nil))
	if err != nil {
		log.Fatal().Err(err).Msg("build tool dispatcher")
	}

	bookingHandler, err := handler.NewBooking(llmCfg.OpenRouterFor(contractx.AgentKindBooking).MustNew(), dispatcher, api, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("build booking handler")
	}
	capacityHandler, err := handler.NewCapacity(llmCfg.OpenRouterFor(contractx.AgentKindCapacity).MustNew(), dispatcher, api, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("build capacity handler")
	}

	eng, err := enginex.New(enginex.Config{
		Store:      store,
		Classifier: classifier.New(llmCfg.OpenRouterFor(contractx.AgentKindClassifier).MustNew()),
		Handlers: map[statex.Intent]contractx.Handler{
			statex.IntentBooking:  bookingHandler,
			statex.IntentCapacity: capacityHandler,
		},
		Finalizer: guardian.New(llmCfg.OpenRouterFor(contractx.AgentKindGuardian).MustNew(), api),
		Scopes:    api,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	role, ok := statex.ParseRole(strings.ToUpper(strings.TrimSpace(appCfg.UserRole)))
	if !ok {
		log.Fatal().Str("role", appCfg.UserRole).Msg("invalid user role")
	}

	runChat(ctx, eng, appCfg.UserID, role)
}

func buildStore(ctx context.Context, cfg AppConfig) (statex.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreKind)) {
	case "postgres":
		store, err := statex.NewPostgresStore(statex.PostgresConfig{DSN: cfg.PostgresDSN})
		if err != nil {
			return nil, err
		}
		if err := store.Setup(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		return statex.NewRedisStore(statex.RedisConfig{URL: cfg.RedisURL})
	default:
		return statex.NewMemoryStore(), nil
	}
}

// runSuggest prints one prioritized advisory report and exits. Meant for
// admins and cron, not the chat loop.
func runSuggest(ctx context.Context, svc *suggestx.Service) {
	genCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	report, err := svc.Generate(genCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("generate suggestions")
	}

	fmt.Printf("Capacity suggestions (%s)\n", report.GeneratedAt.Format(time.RFC3339))
	for _, s := range report.Suggestions {
		fmt.Printf("%s [%s] %s | %s\n    %s\n", s.Icon, strings.ToUpper(s.Priority), s.Category, s.Terminal, s.Suggestion)
	}
}

func runChat(ctx context.Context, eng *enginex.Engine, userID string, role statex.Role) {
	in := bufio.NewScanner(os.Stdin)

	fmt.Println("Port Logistics Assistant (type 'exit' to quit)")
	fmt.Print("Thread ID (leave blank for new): ")
	threadID := ""
	if in.Scan() {
		threadID = strings.TrimSpace(in.Text())
	}
	if threadID != "" {
		fmt.Printf("Resuming thread: %s\n", threadID)
	}

	for {
		fmt.Print("\nYou: ")
		if !in.Scan() {
			return
		}
		text := strings.TrimSpace(in.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "exit") || strings.EqualFold(text, "quit") {
			fmt.Println("Goodbye.")
			return
		}

		turnCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		resp, err := eng.RunTurn(turnCtx, enginex.TurnRequest{
			ThreadID: threadID,
			UserID:   userID,
			Role:     role,
			Message:  text,
		})
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			continue
		}
		threadID = resp.ThreadID

		for _, block := range resp.Blocks {
			fmt.Printf("Assistant: %s\n", block.Content)
		}
		if resp.UISignal != "" {
			payload, _ := json.Marshal(resp.UIPayload)
			fmt.Printf("[UI %s] %s\n", resp.UISignal, payload)
		}
	}
}
