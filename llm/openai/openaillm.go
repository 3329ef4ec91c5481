// Package openai implements llms.Model on top of the OpenAI chat completions
// API, including tool calling and forced tool choice. Any OpenAI-compatible
// endpoint works via WithBaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
)

var (
	// ErrEmptyResponse is returned when the API answers with no choices.
	ErrEmptyResponse = errors.New("openai: empty response")

	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("openai: missing API key")
)

// LLM is an OpenAI chat completion client implementing llms.Model.
type LLM struct {
	client *goopenai.Client
	model  string
}

var _ llms.Model = (*LLM)(nil)

// New returns an OpenAI-backed model client.
//
// Authentication options:
//  1. WithAPIKey(apiKey) - pass the API key directly
//  2. Set the OPENAI_API_KEY environment variable
func New(opts ...Option) (*LLM, error) {
	o := &options{
		apiKey: getEnvOrDefault("OPENAI_API_KEY", ""),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.apiKey == "" {
		return nil, fmt.Errorf(`%w
You can pass auth info by using openai.New(openai.WithAPIKey("{API Key}"))
or
export OPENAI_API_KEY={API Key}`, ErrMissingAPIKey)
	}

	config := goopenai.DefaultConfig(o.apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		config.HTTPClient = o.httpClient
	}

	return &LLM{
		client: goopenai.NewClientWithConfig(config),
		model:  o.model,
	}, nil
}

// Call generates a response for a single prompt.
func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := &llms.CallOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := goopenai.ChatCompletionRequest{
		Model:       o.modelFor(opts),
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}

	for _, tool := range opts.Tools {
		if tool.Function == nil {
			continue
		}
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	if tc := toOpenAIToolChoice(opts.ToolChoice); tc != nil {
		req.ToolChoice = tc
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
		}
		for _, tc := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		if resp.Usage.TotalTokens > 0 {
			choice.GenerationInfo = map[string]any{
				"prompt_tokens":     resp.Usage.PromptTokens,
				"completion_tokens": resp.Usage.CompletionTokens,
				"total_tokens":      resp.Usage.TotalTokens,
			}
		}
		choices = append(choices, choice)
	}

	return &llms.ContentResponse{Choices: choices}, nil
}

func (o *LLM) modelFor(opts *llms.CallOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return o.model
}

func toOpenAIMessages(messages []llms.MessageContent) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := goopenai.ChatCompletionMessage{Role: toOpenAIRole(msg.Role)}
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				m.Content += p.Text
			case llms.ToolCall:
				if p.FunctionCall == nil {
					continue
				}
				m.ToolCalls = append(m.ToolCalls, goopenai.ToolCall{
					ID:   p.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      p.FunctionCall.Name,
						Arguments: p.FunctionCall.Arguments,
					},
				})
			case llms.ToolCallResponse:
				m.Role = goopenai.ChatMessageRoleTool
				m.ToolCallID = p.ToolCallID
				m.Name = p.Name
				m.Content = p.Content
			}
		}
		out = append(out, m)
	}
	return out
}

func toOpenAIRole(role llms.ChatMessageType) string {
	switch role {
	case llms.ChatMessageTypeSystem:
		return goopenai.ChatMessageRoleSystem
	case llms.ChatMessageTypeAI:
		return goopenai.ChatMessageRoleAssistant
	case llms.ChatMessageTypeTool:
		return goopenai.ChatMessageRoleTool
	default:
		return goopenai.ChatMessageRoleUser
	}
}

// toOpenAIToolChoice translates the langchaingo tool-choice value. Strings
// ("auto", "none") pass through; a llms.ToolChoice forces a named function.
func toOpenAIToolChoice(choice any) any {
	switch tc := choice.(type) {
	case nil:
		return nil
	case string:
		return tc
	case llms.ToolChoice:
		if tc.Function == nil {
			return nil
		}
		return goopenai.ToolChoice{
			Type:     goopenai.ToolTypeFunction,
			Function: goopenai.ToolFunction{Name: tc.Function.Name},
		}
	default:
		// Unknown shapes are passed through as-is; the API rejects them
		// with a descriptive error.
		return choice
	}
}
