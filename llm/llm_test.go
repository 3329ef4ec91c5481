package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/conversation"
)

func TestToModelMessages(t *testing.T) {
	t.Parallel()

	history := []conversation.Message{
		conversation.UserMessage("my blood pressure is 120 over 80"),
		{
			Role: conversation.RoleAssistant,
			ToolCalls: []conversation.ToolCall{
				{ID: "call_1", Name: "record_blood_pressure", Arguments: `{"systolic":120,"diastolic":80}`},
			},
		},
		conversation.ToolMessage("call_1", "record_blood_pressure", `{"status":"recorded"}`),
		conversation.AssistantMessage("Recorded 120/80 for you."),
	}

	out := ToModelMessages("You are a health assistant.", history)
	assert.Len(t, out, 5)

	assert.Equal(t, llms.ChatMessageTypeSystem, out[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, out[1].Role)

	assert.Equal(t, llms.ChatMessageTypeAI, out[2].Role)
	call, ok := out[2].Parts[0].(llms.ToolCall)
	assert.True(t, ok)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "record_blood_pressure", call.FunctionCall.Name)

	assert.Equal(t, llms.ChatMessageTypeTool, out[3].Role)
	resp, ok := out[3].Parts[0].(llms.ToolCallResponse)
	assert.True(t, ok)
	assert.Equal(t, "call_1", resp.ToolCallID)

	assert.Equal(t, llms.ChatMessageTypeAI, out[4].Role)
}

func TestToModelMessages_NoSystemPrompt(t *testing.T) {
	t.Parallel()

	out := ToModelMessages("", []conversation.Message{conversation.UserMessage("hi")})
	assert.Len(t, out, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, out[0].Role)
}

func TestToolCallsFromChoice(t *testing.T) {
	t.Parallel()

	choice := &llms.ContentChoice{
		ToolCalls: []llms.ToolCall{
			{ID: "call_1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "book_appointment", Arguments: `{"date":"2026-09-01"}`}},
			{ID: "call_2", Type: "function"}, // malformed, no function payload
		},
	}

	calls := ToolCallsFromChoice(choice)
	assert.Len(t, calls, 1)
	assert.Equal(t, "book_appointment", calls[0].Name)

	assert.Nil(t, ToolCallsFromChoice(nil))
	assert.Nil(t, ToolCallsFromChoice(&llms.ContentChoice{Content: "plain reply"}))
}

type slowModel struct{}

func (slowModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "late"}}}, nil
	}
}

func (slowModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", nil
}

var _ llms.Model = slowModel{}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	model := WithTimeout(slowModel{}, 10*time.Millisecond)
	_, err := model.GenerateContent(context.Background(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Zero timeout leaves the model unwrapped.
	assert.Equal(t, slowModel{}, WithTimeout(slowModel{}, 0))
}
