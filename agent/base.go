package agent

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/llm"
	"github.com/smallnest/medrouter/log"
	"github.com/smallnest/medrouter/tool"
)

const defaultMaxToolRounds = 5

// Degraded replies used when the model cannot produce an answer.
const (
	replyModelFailure = "I'm having trouble responding right now. Please try again in a moment."
	replyLoopExceeded = "I couldn't finish that request. Could you try asking in a simpler way?"
)

// baseAgent is the shared tool-loop engine behind every concrete agent.
// Tools are built per turn because they are scoped to the conversation's
// user.
type baseAgent struct {
	name         string
	model        llms.Model
	systemPrompt string
	maxRounds    int
	logger       log.Logger

	// toolsFor returns the tool registry for a turn, or nil for a tool-less
	// agent.
	toolsFor func(state *conversation.State) *tool.Registry

	// afterTool observes each tool result, letting agents maintain
	// working data such as the last recorded reading.
	afterTool func(state *conversation.State, call conversation.ToolCall, res tool.Result)
}

func (a *baseAgent) Name() string {
	return a.name
}

// Handle runs the bounded tool loop: ask the model, execute any requested
// tools, feed the observations back, and stop at the first plain reply. The
// loop is capped; hitting the cap or a model failure yields a degraded reply
// with a nil error so the turn still completes and is checkpointed.
func (a *baseAgent) Handle(ctx context.Context, state *conversation.State) (string, error) {
	registry := a.toolRegistry(state)

	for round := 0; round < a.maxRounds; round++ {
		messages := llm.ToModelMessages(a.systemPrompt, state.Messages)

		var opts []llms.CallOption
		if registry != nil && len(registry.Names()) > 0 {
			opts = append(opts, llms.WithTools(registry.Definitions()))
		}

		resp, err := a.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			a.logger.Warn("agent %s model call failed for conversation %s: %v",
				a.name, state.ConversationID, err)
			return a.degrade(state, replyModelFailure), nil
		}
		if len(resp.Choices) == 0 {
			a.logger.Warn("agent %s got empty response for conversation %s",
				a.name, state.ConversationID)
			return a.degrade(state, replyModelFailure), nil
		}

		choice := resp.Choices[0]
		calls := llm.ToolCallsFromChoice(choice)
		if len(calls) == 0 || registry == nil {
			reply := choice.Content
			if reply == "" {
				reply = replyModelFailure
			}
			state.Append(conversation.AssistantMessage(reply))
			return reply, nil
		}

		state.Append(conversation.Message{
			Role:      conversation.RoleAssistant,
			Content:   choice.Content,
			ToolCalls: calls,
		})

		for _, call := range calls {
			res := registry.Execute(ctx, call.Name, call.Arguments)
			state.Append(conversation.ToolMessage(call.ID, call.Name, res.Observation()))
			if a.afterTool != nil {
				a.afterTool(state, call, res)
			}
		}
	}

	a.logger.Warn("agent %s exceeded %d tool rounds for conversation %s",
		a.name, a.maxRounds, state.ConversationID)
	return a.degrade(state, replyLoopExceeded), nil
}

func (a *baseAgent) toolRegistry(state *conversation.State) *tool.Registry {
	if a.toolsFor == nil {
		return nil
	}
	return a.toolsFor(state)
}

func (a *baseAgent) degrade(state *conversation.State, reply string) string {
	state.Append(conversation.AssistantMessage(reply))
	return reply
}

// Option configures a concrete agent.
type Option func(*baseAgent)

// WithMaxToolRounds caps the number of model calls per turn. Default is 5.
func WithMaxToolRounds(n int) Option {
	return func(a *baseAgent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithLogger sets the agent logger.
func WithLogger(logger log.Logger) Option {
	return func(a *baseAgent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func newBaseAgent(name string, model llms.Model, systemPrompt string, opts ...Option) *baseAgent {
	a := &baseAgent{
		name:         name,
		model:        model,
		systemPrompt: systemPrompt,
		maxRounds:    defaultMaxToolRounds,
		logger:       log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
