// Package classifier assigns every incoming user message to one domain from
// the closed intent set. The model is forced to answer through a "route"
// function call, so the classifier always gets structured output: an intent,
// a confidence and an explicit domain-switch flag. Anything that goes wrong
// degrades to the unclear intent with a clarification question; Classify
// never fails a turn.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/llm"
	"github.com/smallnest/medrouter/log"
)

const (
	defaultWindow    = 5
	defaultThreshold = 0.6
)

// DefaultClarification is the fallback question asked when classification
// fails or comes back ambiguous without a usable clarification of its own.
const DefaultClarification = "I can help with logging health measurements like blood pressure, " +
	"managing appointments, or general health questions. Which of these would you like to do?"

// Classifier classifies user messages into the closed intent set.
type Classifier struct {
	model     llms.Model
	window    int
	threshold float64
	logger    log.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithWindow sets how many trailing dialogue messages are shown to the
// model. Default is 5.
func WithWindow(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.window = n
		}
	}
}

// WithConfidenceThreshold sets the minimum confidence below which a
// classification is demoted to unclear. Default is 0.6.
func WithConfidenceThreshold(threshold float64) Option {
	return func(c *Classifier) {
		if threshold > 0 && threshold <= 1 {
			c.threshold = threshold
		}
	}
}

// WithLogger sets the classifier logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a classifier over the given model.
func New(model llms.Model, opts ...Option) *Classifier {
	c := &Classifier{
		model:     model,
		window:    defaultWindow,
		threshold: defaultThreshold,
		logger:    log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// routeArgs is the argument shape of the forced "route" function call.
type routeArgs struct {
	Intent        string  `json:"intent"`
	Confidence    float64 `json:"confidence"`
	DomainSwitch  bool    `json:"domain_switch"`
	Clarification string  `json:"clarification"`
}

func routeTool() llms.Tool {
	intents := conversation.KnownIntents()
	options := make([]string, 0, len(intents)+1)
	for _, intent := range intents {
		options = append(options, string(intent))
	}
	options = append(options, string(conversation.IntentUnclear))

	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "route",
			Description: "Classify the latest user message into a domain.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"intent": map[string]any{
						"type": "string",
						"enum": options,
					},
					"confidence": map[string]any{
						"type":        "number",
						"description": "Confidence in the classification, 0 to 1.",
					},
					"domain_switch": map[string]any{
						"type": "boolean",
						"description": "True only when the user explicitly moved to a " +
							"different domain than the current one.",
					},
					"clarification": map[string]any{
						"type": "string",
						"description": "When intent is unclear, the question to ask " +
							"the user to disambiguate.",
					},
				},
				"required": []string{"intent", "confidence"},
			},
		},
	}
}

func systemPrompt(current conversation.Intent) string {
	var b strings.Builder
	b.WriteString("You are an intent classifier for a health assistant. ")
	b.WriteString("Classify the latest user message into exactly one domain:\n")
	b.WriteString("- health_metric: logging or querying health measurements such as blood pressure\n")
	b.WriteString("- appointment: booking, listing or cancelling appointments\n")
	b.WriteString("- general_assistant: any other health question or small talk\n")
	b.WriteString("- unclear: the message cannot be assigned to a domain\n")
	b.WriteString("You MUST answer by calling the 'route' function. Do not produce any other text.\n")
	if current != "" && current != conversation.IntentUnclear {
		fmt.Fprintf(&b, "The conversation is currently in the %s domain. "+
			"Set domain_switch to true only if the user explicitly asks for something "+
			"in a different domain; short replies and follow-ups stay in the current domain.\n", current)
	}
	return b.String()
}

// Classify assigns the latest user message of the state to an intent.
//
// The decision is sticky: once a conversation is in a domain it stays there
// unless the model reports an explicit switch. Low confidence and every
// failure mode (model error, missing tool call, malformed arguments, an
// intent outside the closed set) demote the result to unclear.
func (c *Classifier) Classify(ctx context.Context, state *conversation.State) conversation.IntentResult {
	// Only the user/assistant dialogue is shown to the model. Tool exchanges
	// are skipped so the window never opens on an orphaned tool result.
	messages := llm.ToModelMessages(systemPrompt(state.CurrentIntent), state.DialogueWindow(c.window))

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTools([]llms.Tool{routeTool()}),
		llms.WithToolChoice(llms.ToolChoice{
			Type:     "function",
			Function: &llms.FunctionReference{Name: "route"},
		}),
	)
	if err != nil {
		c.logger.Warn("classification failed for conversation %s: %v", state.ConversationID, err)
		return unclearResult("")
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].ToolCalls) == 0 {
		c.logger.Warn("classifier got no route call for conversation %s", state.ConversationID)
		return unclearResult("")
	}

	tc := resp.Choices[0].ToolCalls[0]
	var args routeArgs
	if tc.FunctionCall == nil || json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args) != nil {
		c.logger.Warn("classifier returned malformed route arguments for conversation %s", state.ConversationID)
		return unclearResult("")
	}

	intent := conversation.Intent(args.Intent)
	if !intent.Valid() {
		c.logger.Warn("classifier returned unknown intent %q for conversation %s", args.Intent, state.ConversationID)
		return unclearResult(args.Clarification)
	}

	if intent == conversation.IntentUnclear {
		return unclearResult(args.Clarification)
	}

	if args.Confidence < c.threshold {
		c.logger.Debug("demoting %s (confidence %.2f) to unclear for conversation %s",
			intent, args.Confidence, state.ConversationID)
		return unclearResult(args.Clarification)
	}

	// Sticky routing: stay in the active domain unless the model reports an
	// explicit switch.
	current := state.CurrentIntent
	if current != "" && current != conversation.IntentUnclear && intent != current && !args.DomainSwitch {
		c.logger.Debug("keeping conversation %s in %s (candidate %s without explicit switch)",
			state.ConversationID, current, intent)
		intent = current
	}

	return conversation.IntentResult{
		Intent:     intent,
		Confidence: args.Confidence,
	}
}

func unclearResult(clarification string) conversation.IntentResult {
	if strings.TrimSpace(clarification) == "" {
		clarification = DefaultClarification
	}
	return conversation.IntentResult{
		Intent:        conversation.IntentUnclear,
		Ambiguous:     true,
		Clarification: clarification,
	}
}
