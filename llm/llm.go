// Package llm bridges conversation history and the langchaingo model
// interface. Agents and the classifier speak conversation.Message; model
// providers speak llms.MessageContent. The converters here translate between
// the two, preserving tool-call metadata in both directions.
package llm

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/conversation"
)

// ToModelMessages converts conversation history into the message format
// expected by llms.Model implementations. An optional system prompt is
// prepended when non-empty.
func ToModelMessages(systemPrompt string, messages []conversation.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, msg := range messages {
		out = append(out, toModelMessage(msg))
	}
	return out
}

func toModelMessage(msg conversation.Message) llms.MessageContent {
	switch msg.Role {
	case conversation.RoleAssistant:
		mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if msg.Content != "" {
			mc.Parts = append(mc.Parts, llms.TextContent{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			mc.Parts = append(mc.Parts, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return mc
	case conversation.RoleTool:
		return llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.ToolName,
					Content:    msg.Content,
				},
			},
		}
	case conversation.RoleSystem:
		return llms.TextParts(llms.ChatMessageTypeSystem, msg.Content)
	default:
		return llms.TextParts(llms.ChatMessageTypeHuman, msg.Content)
	}
}

// ToolCallsFromChoice extracts tool-call requests from a model choice into
// the conversation representation.
func ToolCallsFromChoice(choice *llms.ContentChoice) []conversation.ToolCall {
	if choice == nil || len(choice.ToolCalls) == 0 {
		return nil
	}
	calls := make([]conversation.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		calls = append(calls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	return calls
}

// WithTimeout wraps a model so that every GenerateContent call is bounded by
// the given timeout. A zero or negative timeout returns the model unchanged.
func WithTimeout(model llms.Model, timeout time.Duration) llms.Model {
	if timeout <= 0 {
		return model
	}
	return &timeoutModel{inner: model, timeout: timeout}
}

type timeoutModel struct {
	inner   llms.Model
	timeout time.Duration
}

func (m *timeoutModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.inner.GenerateContent(ctx, messages, options...)
}

func (m *timeoutModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return llms.GenerateFromSinglePrompt(ctx, m.inner, prompt, options...)
}
