// MedRouter - Stateful Multi-Agent Conversation Routing in Go
//
// MedRouter is a conversation engine for a health assistant: every inbound
// user message is classified into a domain (health metrics, appointments,
// general assistance), dispatched to the specialized agent owning that
// domain, and the updated conversation state is persisted as an append-only
// checkpoint so any turn can resume from durable storage.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/medrouter
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/medrouter/agent"
//		"github.com/smallnest/medrouter/classifier"
//		"github.com/smallnest/medrouter/conversation"
//		"github.com/smallnest/medrouter/llm/openai"
//		"github.com/smallnest/medrouter/router"
//		"github.com/smallnest/medrouter/store"
//		"github.com/smallnest/medrouter/store/memory"
//	)
//
//	func main() {
//		model, _ := openai.New(openai.WithModel("gpt-4o-mini"))
//
//		agents := agent.NewRegistry()
//		agents.Register(conversation.IntentAssistant, agent.NewAssistantAgent(model, nil))
//
//		r, _ := router.New(
//			classifier.New(model),
//			agents,
//			store.NewStateStore(memory.NewMemoryStore()),
//		)
//
//		reply, _ := r.HandleMessage(context.Background(), "conv-1", "user-1", "hello!")
//		fmt.Println(reply.Reply)
//	}
//
// # Package Structure
//
// router/
// The turn entry point: load state, classify, dispatch, checkpoint.
//
// classifier/
// Intent classification via a forced "route" function call, with sticky
// routing and a confidence threshold.
//
// agent/
// The specialized agents and their bounded tool loop.
//
// tool/, tool/health, tool/appointment
// The tool contract plus the PostgreSQL-backed domain tools.
//
// retrieval/
// Keyword-overlap knowledge lookup for the general assistant.
//
// conversation/
// The durable conversation state and the closed intent set.
//
// store/
// Append-only checkpoint persistence with memory, PostgreSQL, Redis and
// SQLite backends.
//
// graph/
// The small typed dispatch graph the router runs each turn on.
//
// llm/, llm/openai
// Message conversion helpers and the OpenAI-compatible model client.
//
// # Configuration
//
// The library supports configuration through environment variables:
//
//   - OPENAI_API_KEY: API key for the default model client
package medrouter // import "github.com/smallnest/medrouter"
