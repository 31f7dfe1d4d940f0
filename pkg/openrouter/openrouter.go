package openrouter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a transport-neutral chat message. Assistant messages may carry
// tool calls; tool messages must carry the id of the call they answer.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDef describes one callable tool in JSON-schema terms.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Completion is one model turn: either content, tool calls, or both.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is a chat-completion client pinned to one model and sampling
// profile. Safe for concurrent use.
type Client struct {
	api         openaisdk.Client
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
}

func (c Config) New() (*Client, error) {
	apiKey := strings.TrimSpace(c.APIKey)
	if apiKey == "" {
		return nil, errors.New("openrouter api key is required")
	}
	model := strings.TrimSpace(c.Model)
	if model == "" {
		return nil, errors.New("openrouter model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if trimmed := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if c.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", c.SiteURL))
	}
	if c.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", c.SiteName))
	}

	maxTokens := int64(c.MaxCompletionToken)
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		api:         openaisdk.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: c.Temperature,
		timeout:     timeout,
	}, nil
}

func (c Config) MustNew() *Client {
	client, err := c.New()
	if err != nil {
		panic(err)
	}
	return client
}

// Complete runs a single system+user exchange and returns the text reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	out, err := c.Chat(ctx, system, []Message{{Role: RoleUser, Content: user}}, nil)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// Chat runs one completion over a full transcript, optionally binding tools.
func (c *Client) Chat(ctx context.Context, system string, msgs []Message, tools []ToolDef) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openaisdk.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toMessageParams(system, msgs),
		MaxTokens:   openaisdk.Int(c.maxTokens),
		Temperature: openaisdk.Float(c.temperature),
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  openaisdk.FunctionParameters(t.Parameters),
			},
		})
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("openrouter: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("openrouter: empty completion")
	}

	msg := resp.Choices[0].Message
	out := Completion{Content: strings.TrimSpace(msg.Content)}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func toMessageParams(system string, msgs []Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, openaisdk.SystemMessage(system))
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openaisdk.AssistantMessage(m.Content))
				continue
			}
			assistant := openaisdk.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openaisdk.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			out = append(out, openaisdk.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openaisdk.UserMessage(m.Content))
		}
	}
	return out
}
