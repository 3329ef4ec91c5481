package conversation

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Intent is a domain tag from the closed routing set.
type Intent string

const (
	// IntentHealthMetric covers logging and querying health measurements
	// such as blood pressure readings.
	IntentHealthMetric Intent = "health_metric"

	// IntentAppointment covers booking and managing follow-up appointments.
	IntentAppointment Intent = "appointment"

	// IntentAssistant is the general assistant domain, including knowledge
	// lookups.
	IntentAssistant Intent = "general_assistant"

	// IntentUnclear signals that a message could not be classified and the
	// user should be asked to disambiguate.
	IntentUnclear Intent = "unclear"
)

// KnownIntents returns the closed set of routable domain tags.
// IntentUnclear is not routable; it triggers the clarifier instead.
func KnownIntents() []Intent {
	return []Intent{IntentHealthMetric, IntentAppointment, IntentAssistant}
}

// Valid reports whether i is a member of the closed intent set.
func (i Intent) Valid() bool {
	switch i {
	case IntentHealthMetric, IntentAppointment, IntentAssistant, IntentUnclear:
		return true
	}
	return false
}

// ToolCall records a tool invocation requested by the model within a turn.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in a conversation's history.
// Tool-call metadata is kept so that a persisted conversation can be replayed
// with full context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that requested tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName are set on tool-role messages carrying a tool
	// result back into context.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// UserMessage builds a user-role message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolMessage builds a tool-role message carrying a tool result.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: name}
}

// State is the durable record of a conversation. It is loaded from the latest
// checkpoint at the start of a turn, mutated by exactly one agent (or the
// clarifier), and persisted as a new checkpoint when the turn ends.
type State struct {
	// ConversationID is the stable thread identifier. It never changes once
	// assigned.
	ConversationID string `json:"conversation_id"`

	// UserID identifies the user the conversation belongs to. Domain tools
	// are scoped to it.
	UserID string `json:"user_id,omitempty"`

	// Messages is the append-only history. Entries are never reordered or
	// deleted.
	Messages []Message `json:"messages"`

	// CurrentIntent is the active domain tag, or empty before first
	// classification.
	CurrentIntent Intent `json:"current_intent,omitempty"`

	// CurrentAgent names the agent last dispatched for this conversation.
	CurrentAgent string `json:"current_agent,omitempty"`

	// WorkingData is a key-value bag scoped to the active domain, e.g. a
	// partially collected appointment. It is cleared whenever CurrentIntent
	// changes.
	WorkingData map[string]any `json:"working_data,omitempty"`
}

// NewState returns a fresh state for a conversation: empty history, no
// intent, no agent, empty working data.
func NewState(conversationID string) *State {
	return &State{
		ConversationID: conversationID,
		Messages:       []Message{},
		WorkingData:    map[string]any{},
	}
}

// Append adds messages to the history.
func (s *State) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// LastMessage returns the most recent message, if any.
func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Window returns up to n of the most recent messages.
func (s *State) Window(n int) []Message {
	if n <= 0 || n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// DialogueWindow returns up to n of the most recent user and assistant
// messages. Tool results and the assistant messages that requested them are
// skipped, so a cut never lands inside a tool exchange and the slice is
// always a valid chat sequence on its own.
func (s *State) DialogueWindow(n int) []Message {
	dialogue := make([]Message, 0, len(s.Messages))
	for _, msg := range s.Messages {
		if msg.Role == RoleTool || len(msg.ToolCalls) > 0 {
			continue
		}
		dialogue = append(dialogue, msg)
	}
	if n <= 0 || n >= len(dialogue) {
		return dialogue
	}
	return dialogue[len(dialogue)-n:]
}

// SetIntent switches the active domain. Changing to a different intent clears
// WorkingData so state from the previous domain never leaks into the next
// agent.
func (s *State) SetIntent(intent Intent, agentName string) {
	if s.CurrentIntent != intent {
		s.WorkingData = map[string]any{}
	}
	s.CurrentIntent = intent
	s.CurrentAgent = agentName
}

// SetWorking stores a working-data field for the active domain.
func (s *State) SetWorking(key string, value any) {
	if s.WorkingData == nil {
		s.WorkingData = map[string]any{}
	}
	s.WorkingData[key] = value
}

// Clone returns a deep copy of the state via a JSON round trip. The copy has
// the same shape a checkpoint reloaded from storage would have.
func (s *State) Clone() (*State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	if out.WorkingData == nil {
		out.WorkingData = map[string]any{}
	}
	return &out, nil
}

// IntentResult is the transient output of intent classification, consumed by
// the router's conditional edge and then discarded. It is never persisted.
type IntentResult struct {
	// Intent is the classified domain tag.
	Intent Intent

	// Confidence in [0,1] as reported by the model.
	Confidence float64

	// Ambiguous is set when the message could not be classified with enough
	// confidence; the router dispatches to the clarifier instead of an agent.
	Ambiguous bool

	// Clarification is the question to present to the user, populated only
	// when Ambiguous is set.
	Clarification string
}
