// Package router is the entry point of the conversation engine. Each user
// message runs one turn: load the conversation state from its latest
// checkpoint, classify the message, dispatch to the agent owning the
// classified domain (or ask a clarifying question), and persist the updated
// state as a new checkpoint.
//
// Turns for one conversation must be serialized by the caller; turns for
// different conversations are independent.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallnest/medrouter/agent"
	"github.com/smallnest/medrouter/classifier"
	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/graph"
	"github.com/smallnest/medrouter/log"
	"github.com/smallnest/medrouter/store"
)

var (
	// ErrEmptyMessage is returned when the user message is empty or
	// whitespace.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInvalidConversationState is returned when a conversation carries an
	// intent no registered agent can serve. The state is not modified and no
	// checkpoint is written.
	ErrInvalidConversationState = errors.New("no agent registered for intent")
)

const clarifierName = "clarifier"

// Reply is the outcome of one successfully completed turn.
type Reply struct {
	// Reply is the assistant text to show the user.
	Reply string

	// Intent is this turn's classification: the dispatched domain, or
	// unclear for a clarify turn.
	Intent conversation.Intent

	// Agent names the agent (or the clarifier) that produced the reply.
	Agent string

	// CheckpointID identifies the checkpoint written at the end of the turn.
	CheckpointID string
}

// turnState threads one turn through the dispatch graph.
type turnState struct {
	state     *conversation.State
	result    conversation.IntentResult
	reply     string
	agentName string
}

// Router classifies messages and dispatches them to agents.
type Router struct {
	classifier *classifier.Classifier
	agents     *agent.Registry
	states     *store.StateStore
	logger     log.Logger
	runnable   *graph.Runnable[*turnState]
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a router over a classifier, the registered agents and a
// checkpoint store. The dispatch graph has one node per registered agent plus
// the clarifier; it is compiled once here.
func New(c *classifier.Classifier, agents *agent.Registry, states *store.StateStore, opts ...Option) (*Router, error) {
	r := &Router{
		classifier: c,
		agents:     agents,
		states:     states,
		logger:     log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	runnable, err := r.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatch graph: %w", err)
	}
	r.runnable = runnable
	return r, nil
}

func (r *Router) buildGraph() (*graph.Runnable[*turnState], error) {
	g := graph.NewGraph[*turnState]()

	g.AddNode("classify", "Classify the latest user message", r.classifyNode)
	g.AddNode("clarify", "Ask the user to disambiguate", r.clarifyNode)

	for _, intent := range r.agents.Intents() {
		a, _ := r.agents.For(intent)
		nodeIntent, nodeAgent := intent, a
		g.AddNode(string(intent), "Agent: "+a.Name(), func(ctx context.Context, ts *turnState) (*turnState, error) {
			ts.state.SetIntent(nodeIntent, nodeAgent.Name())
			ts.agentName = nodeAgent.Name()
			reply, err := nodeAgent.Handle(ctx, ts.state)
			if err != nil {
				return ts, err
			}
			ts.reply = reply
			return ts, nil
		})
		g.AddEdge(string(intent), graph.END)
	}

	g.SetEntryPoint("classify")
	g.AddConditionalEdge("classify", func(ctx context.Context, ts *turnState) string {
		if ts.result.Ambiguous {
			return "clarify"
		}
		return string(ts.result.Intent)
	})
	g.AddEdge("clarify", graph.END)

	return g.Compile()
}

func (r *Router) classifyNode(ctx context.Context, ts *turnState) (*turnState, error) {
	ts.result = r.classifier.Classify(ctx, ts.state)

	if !ts.result.Ambiguous {
		if _, ok := r.agents.For(ts.result.Intent); !ok {
			return ts, fmt.Errorf("%w: %s", ErrInvalidConversationState, ts.result.Intent)
		}
	}

	r.logger.Debug("conversation %s classified as %s (confidence %.2f, ambiguous %t)",
		ts.state.ConversationID, ts.result.Intent, ts.result.Confidence, ts.result.Ambiguous)
	return ts, nil
}

// clarifyNode answers with the clarification question instead of dispatching.
// The stored intent and agent are left untouched: a brand-new conversation
// stays unclassified, and a conversation already in a domain keeps its
// intent, agent and working data for the next attempt.
func (r *Router) clarifyNode(ctx context.Context, ts *turnState) (*turnState, error) {
	ts.agentName = clarifierName
	ts.reply = ts.result.Clarification
	ts.state.Append(conversation.AssistantMessage(ts.reply))
	return ts, nil
}

// HandleMessage runs one turn for a conversation.
//
// Storage failures on load or save fail the turn with an error; in the save
// case the reply is discarded rather than returned unpersisted. Model and
// tool failures never fail a turn; they surface as degraded replies from the
// classifier or the agent.
func (r *Router) HandleMessage(ctx context.Context, conversationID, userID, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if conversationID == "" {
		return nil, errors.New("conversation id is required")
	}

	state, err := r.states.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state.UserID == "" {
		state.UserID = userID
	}

	state.Append(conversation.UserMessage(text))

	ts := &turnState{state: state}
	ts, err = r.runnable.Invoke(ctx, ts)
	if err != nil {
		return nil, err
	}

	checkpointID, err := r.states.Save(ctx, state)
	if err != nil {
		return nil, err
	}

	r.logger.Info("conversation %s turn complete: intent=%s agent=%s checkpoint=%s",
		conversationID, ts.result.Intent, ts.agentName, checkpointID)

	return &Reply{
		Reply:        ts.reply,
		Intent:       ts.result.Intent,
		Agent:        ts.agentName,
		CheckpointID: checkpointID,
	}, nil
}
