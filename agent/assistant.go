package agent

import (
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/retrieval"
	"github.com/smallnest/medrouter/tool"
)

// AssistantAgentName is the registered name of the general assistant.
const AssistantAgentName = "general_assistant_agent"

const assistantPrompt = "You are a friendly general health assistant. Answer the user's " +
	"questions helpfully and concisely. Use lookup_knowledge when the question touches " +
	"health topics the knowledge base may cover, and prefer retrieved passages over " +
	"your own recollection. You do not give diagnoses; suggest seeing a professional " +
	"for anything serious."

// AssistantAgent serves the general_assistant domain. It is the catch-all for
// everything outside the specialized domains, optionally backed by a
// knowledge retriever.
type AssistantAgent struct {
	*baseAgent
}

var _ Agent = (*AssistantAgent)(nil)

// NewAssistantAgent creates the general assistant. A nil retriever yields a
// plain conversational agent without the lookup tool.
func NewAssistantAgent(model llms.Model, retriever retrieval.Retriever, opts ...Option) *AssistantAgent {
	a := &AssistantAgent{
		baseAgent: newBaseAgent(AssistantAgentName, model, assistantPrompt, opts...),
	}
	if retriever != nil {
		registry := tool.NewRegistry([]tool.Tool{retrieval.KnowledgeTool(retriever)}, tool.WithLogger(a.logger))
		a.toolsFor = func(*conversation.State) *tool.Registry {
			return registry
		}
	}
	return a
}
