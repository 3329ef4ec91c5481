package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewState(t *testing.T) {
	t.Parallel()

	s := NewState("conv-1")
	assert.Equal(t, "conv-1", s.ConversationID)
	assert.NotNil(t, s.Messages)
	assert.Len(t, s.Messages, 0)
	assert.NotNil(t, s.WorkingData)
	assert.Empty(t, s.CurrentIntent)
	assert.Empty(t, s.CurrentAgent)
}

func TestState_SetIntent_ClearsWorkingDataOnSwitch(t *testing.T) {
	t.Parallel()

	s := NewState("conv-1")
	s.SetIntent(IntentAppointment, "appointment_agent")
	s.SetWorking("department", "cardiology")
	s.SetWorking("preferred_date", "2026-09-01")

	// Same intent keeps working data.
	s.SetIntent(IntentAppointment, "appointment_agent")
	assert.Equal(t, "cardiology", s.WorkingData["department"])

	// Switching domains clears it.
	s.SetIntent(IntentHealthMetric, "health_metric_agent")
	assert.Empty(t, s.WorkingData)
	assert.Equal(t, IntentHealthMetric, s.CurrentIntent)
	assert.Equal(t, "health_metric_agent", s.CurrentAgent)
}

func TestState_Window(t *testing.T) {
	t.Parallel()

	s := NewState("conv-1")
	for i := 0; i < 8; i++ {
		s.Append(UserMessage("m"))
	}

	assert.Len(t, s.Window(5), 5)
	assert.Len(t, s.Window(0), 8)
	assert.Len(t, s.Window(20), 8)
}

func TestState_DialogueWindow_SkipsToolExchanges(t *testing.T) {
	t.Parallel()

	s := NewState("conv-1")
	s.Append(UserMessage("log 120/80 and 118/76"))

	// A turn with two tool rounds: assistant call, tool result, twice over.
	call1 := AssistantMessage("")
	call1.ToolCalls = []ToolCall{{ID: "call_1", Name: "record_blood_pressure", Arguments: `{"systolic":120,"diastolic":80}`}}
	call2 := AssistantMessage("")
	call2.ToolCalls = []ToolCall{{ID: "call_2", Name: "record_blood_pressure", Arguments: `{"systolic":118,"diastolic":76}`}}
	s.Append(call1,
		ToolMessage("call_1", "record_blood_pressure", `{"status":"recorded"}`),
		call2,
		ToolMessage("call_2", "record_blood_pressure", `{"status":"recorded"}`),
		AssistantMessage("Recorded both readings."),
	)
	s.Append(UserMessage("thanks, what did I log yesterday?"))

	got := s.DialogueWindow(5)
	assert.Len(t, got, 3)
	for _, msg := range got {
		assert.NotEqual(t, RoleTool, msg.Role)
		assert.Empty(t, msg.ToolCalls)
	}

	// A tighter window still cuts on dialogue boundaries only.
	got = s.DialogueWindow(2)
	assert.Equal(t, RoleAssistant, got[0].Role)
	assert.Equal(t, "Recorded both readings.", got[0].Content)
	assert.Equal(t, RoleUser, got[1].Role)
}

func TestState_Clone_DeepCopy(t *testing.T) {
	t.Parallel()

	s := NewState("conv-1")
	s.UserID = "user-9"
	s.Append(UserMessage("log my blood pressure"))
	s.Append(Message{
		Role:    RoleAssistant,
		Content: "",
		ToolCalls: []ToolCall{
			{ID: "call-1", Name: "record_blood_pressure", Arguments: `{"systolic":120,"diastolic":80}`},
		},
	})
	s.SetIntent(IntentHealthMetric, "health_metric_agent")
	s.SetWorking("last_reading", map[string]any{"systolic": float64(120)})

	clone, err := s.Clone()
	assert.NoError(t, err)
	assert.Equal(t, s, clone)

	// Mutating the clone must not touch the original.
	clone.Append(AssistantMessage("done"))
	clone.WorkingData["last_reading"] = nil
	assert.Len(t, s.Messages, 2)
	assert.NotNil(t, s.WorkingData["last_reading"])
}

func TestIntent_Valid(t *testing.T) {
	t.Parallel()

	for _, intent := range KnownIntents() {
		assert.True(t, intent.Valid(), "intent %q should be valid", intent)
	}
	assert.True(t, IntentUnclear.Valid())
	assert.False(t, Intent("surgery").Valid())
	assert.False(t, Intent("").Valid())
}

func TestToolMessage(t *testing.T) {
	t.Parallel()

	m := ToolMessage("call-1", "record_blood_pressure", "recorded")
	assert.Equal(t, RoleTool, m.Role)
	assert.Equal(t, "call-1", m.ToolCallID)
	assert.Equal(t, "record_blood_pressure", m.ToolName)
	assert.Equal(t, "recorded", m.Content)
}
