package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/conversation"
)

// routingModel answers every call with one canned route tool call.
type routingModel struct {
	arguments string
	err       error

	gotMessages []llms.MessageContent
	gotOptions  llms.CallOptions
}

func (m *routingModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.gotMessages = messages
	for _, opt := range options {
		opt(&m.gotOptions)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				StopReason: "tool_calls",
				ToolCalls: []llms.ToolCall{
					{
						ID:           "call_route",
						Type:         "function",
						FunctionCall: &llms.FunctionCall{Name: "route", Arguments: m.arguments},
					},
				},
			},
		},
	}, nil
}

func (m *routingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", nil
}

var _ llms.Model = (*routingModel)(nil)

func routeJSON(intent string, confidence float64, domainSwitch bool) string {
	return fmt.Sprintf(`{"intent":%q,"confidence":%v,"domain_switch":%v}`, intent, confidence, domainSwitch)
}

func TestClassify_FirstMessage(t *testing.T) {
	t.Parallel()

	model := &routingModel{arguments: routeJSON("health_metric", 0.92, false)}
	c := New(model)

	state := conversation.NewState("conv-1")
	state.Append(conversation.UserMessage("my blood pressure today was 120 over 80"))

	result := c.Classify(context.Background(), state)
	assert.Equal(t, conversation.IntentHealthMetric, result.Intent)
	assert.False(t, result.Ambiguous)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)

	// The model is forced onto the route function.
	tc, ok := model.gotOptions.ToolChoice.(llms.ToolChoice)
	assert.True(t, ok)
	assert.Equal(t, "route", tc.Function.Name)
	assert.Len(t, model.gotOptions.Tools, 1)
}

func TestClassify_StickyRouting(t *testing.T) {
	t.Parallel()

	state := conversation.NewState("conv-1")
	state.SetIntent(conversation.IntentHealthMetric, "health_metric_agent")
	state.Append(conversation.UserMessage("and yesterday it was 130 over 85"))

	// A candidate in another domain without an explicit switch stays put.
	model := &routingModel{arguments: routeJSON("general_assistant", 0.8, false)}
	result := New(model).Classify(context.Background(), state)
	assert.Equal(t, conversation.IntentHealthMetric, result.Intent)

	// An explicit switch moves the conversation.
	model = &routingModel{arguments: routeJSON("appointment", 0.9, true)}
	result = New(model).Classify(context.Background(), state)
	assert.Equal(t, conversation.IntentAppointment, result.Intent)
}

func TestClassify_LowConfidenceBecomesUnclear(t *testing.T) {
	t.Parallel()

	model := &routingModel{arguments: routeJSON("appointment", 0.3, false)}
	c := New(model)

	state := conversation.NewState("conv-1")
	state.Append(conversation.UserMessage("hmm maybe"))

	result := c.Classify(context.Background(), state)
	assert.Equal(t, conversation.IntentUnclear, result.Intent)
	assert.True(t, result.Ambiguous)
	assert.Equal(t, DefaultClarification, result.Clarification)
}

func TestClassify_UnclearKeepsModelClarification(t *testing.T) {
	t.Parallel()

	model := &routingModel{
		arguments: `{"intent":"unclear","confidence":0.9,"clarification":"Did you mean recording a reading or booking a visit?"}`,
	}
	c := New(model)

	state := conversation.NewState("conv-1")
	state.Append(conversation.UserMessage("the thing from before"))

	result := c.Classify(context.Background(), state)
	assert.True(t, result.Ambiguous)
	assert.Equal(t, "Did you mean recording a reading or booking a visit?", result.Clarification)
}

func TestClassify_DegradesOnFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		model *routingModel
	}{
		{name: "model error", model: &routingModel{err: errors.New("upstream down")}},
		{name: "malformed arguments", model: &routingModel{arguments: `{"intent":`}},
		{name: "unknown intent", model: &routingModel{arguments: routeJSON("billing", 0.95, false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := conversation.NewState("conv-1")
			state.Append(conversation.UserMessage("hello"))

			result := New(tt.model).Classify(context.Background(), state)
			assert.Equal(t, conversation.IntentUnclear, result.Intent)
			assert.True(t, result.Ambiguous)
			assert.NotEmpty(t, result.Clarification)
		})
	}
}

func TestClassify_WindowLimitsHistory(t *testing.T) {
	t.Parallel()

	model := &routingModel{arguments: routeJSON("general_assistant", 0.9, false)}
	c := New(model, WithWindow(2))

	state := conversation.NewState("conv-1")
	for i := 0; i < 6; i++ {
		state.Append(conversation.UserMessage(fmt.Sprintf("message %d", i)))
	}

	c.Classify(context.Background(), state)
	// System prompt plus the trailing window.
	assert.Len(t, model.gotMessages, 3)
}

func TestClassify_WindowSkipsToolExchanges(t *testing.T) {
	t.Parallel()

	model := &routingModel{arguments: routeJSON("health_metric", 0.9, false)}
	c := New(model)

	// A previous turn with two tool rounds pushes the raw 5-message window
	// into the middle of a tool exchange. The model must still get a valid
	// chat sequence: no tool results without their requesting message.
	state := conversation.NewState("conv-1")
	state.SetIntent(conversation.IntentHealthMetric, "health_metric_agent")
	state.Append(conversation.UserMessage("log 120/80 and 118/76"))
	call1 := conversation.AssistantMessage("")
	call1.ToolCalls = []conversation.ToolCall{{ID: "call_1", Name: "record_blood_pressure", Arguments: `{"systolic":120,"diastolic":80}`}}
	call2 := conversation.AssistantMessage("")
	call2.ToolCalls = []conversation.ToolCall{{ID: "call_2", Name: "record_blood_pressure", Arguments: `{"systolic":118,"diastolic":76}`}}
	state.Append(call1,
		conversation.ToolMessage("call_1", "record_blood_pressure", `{"status":"recorded"}`),
		call2,
		conversation.ToolMessage("call_2", "record_blood_pressure", `{"status":"recorded"}`),
		conversation.AssistantMessage("Recorded both readings."),
	)
	state.Append(conversation.UserMessage("and this morning it was 122/78"))

	result := c.Classify(context.Background(), state)
	assert.Equal(t, conversation.IntentHealthMetric, result.Intent)

	assert.NotEmpty(t, model.gotMessages)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.gotMessages[0].Role)
	for _, msg := range model.gotMessages[1:] {
		assert.Contains(t, []llms.ChatMessageType{llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI}, msg.Role)
		for _, part := range msg.Parts {
			_, isToolCall := part.(llms.ToolCall)
			assert.False(t, isToolCall)
		}
	}
}
