// Package agent implements the specialized agents a conversation can be
// routed to. Each agent owns one domain, its system prompt and its tools, and
// drives a bounded tool loop against the model. Agents degrade instead of
// failing: a model error or an exhausted tool loop produces an apologetic
// reply, never an error that would abort the turn.
package agent

import (
	"context"

	"github.com/smallnest/medrouter/conversation"
)

// Agent handles one turn of a conversation in its domain. Handle appends the
// assistant reply (and any intermediate tool traffic) to the state and
// returns the reply text.
type Agent interface {
	Name() string
	Handle(ctx context.Context, state *conversation.State) (string, error)
}

// Registry maps intents to the agents that serve them.
type Registry struct {
	agents map[conversation.Intent]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[conversation.Intent]Agent)}
}

// Register binds an agent to an intent, replacing any earlier binding.
func (r *Registry) Register(intent conversation.Intent, a Agent) {
	r.agents[intent] = a
}

// For returns the agent bound to an intent.
func (r *Registry) For(intent conversation.Intent) (Agent, bool) {
	a, ok := r.agents[intent]
	return a, ok
}

// Intents returns the intents that have a bound agent.
func (r *Registry) Intents() []conversation.Intent {
	intents := make([]conversation.Intent, 0, len(r.agents))
	for _, intent := range conversation.KnownIntents() {
		if _, ok := r.agents[intent]; ok {
			intents = append(intents, intent)
		}
	}
	return intents
}
