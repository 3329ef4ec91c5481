// Package tool defines the agent-facing tool contract and a registry that
// exposes tools to the model as function definitions and dispatches the
// model's tool calls. Tool failures are reported as structured results, never
// as Go errors, so a failed call flows back into the conversation as an
// observation the model can react to.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/medrouter/log"
)

// ErrorKind classifies a tool failure for the model and for logging.
type ErrorKind string

const (
	// KindValidation means the arguments were rejected before any side
	// effect, e.g. a blood pressure reading outside physiological range.
	KindValidation ErrorKind = "validation_error"

	// KindUpstreamUnavailable means a backing system could not be reached.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"

	// KindNotFound means the referenced record does not exist.
	KindNotFound ErrorKind = "not_found"
)

// Error is a structured tool failure.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidationError builds a validation failure.
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError builds an upstream-unavailable failure.
func UpstreamError(format string, args ...any) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError builds a not-found failure.
func NotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Tool is a callable capability an agent can offer to the model.
type Tool struct {
	// Name is the function name the model calls. Unique within a registry.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Schema is the JSON schema of the arguments object.
	Schema map[string]any

	// Call executes the tool. Arguments arrive as the raw JSON string from
	// the model. A *Error return is reported to the model as a structured
	// failure; any other error is treated as an upstream failure.
	Call func(ctx context.Context, arguments string) (string, error)
}

// Result is the outcome of one tool execution. Exactly one of Content
// and Err carries the payload.
type Result struct {
	Content string
	Err     *Error
}

// Observation renders the result as the content of a tool-role message. A
// failure becomes a JSON error object the model can read and recover from.
func (r Result) Observation() string {
	if r.Err == nil {
		return r.Content
	}
	payload, err := json.Marshal(map[string]string{
		"error":   string(r.Err.Kind),
		"message": r.Err.Message,
	})
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, r.Err.Kind)
	}
	return string(payload)
}

const defaultCallTimeout = 15 * time.Second

// Registry holds the tools available to one agent.
type Registry struct {
	tools       map[string]Tool
	order       []string
	callTimeout time.Duration
	logger      log.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCallTimeout bounds each tool execution. Default is 15 seconds.
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger log.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry builds a registry over the given tools. A tool registered
// twice under the same name replaces the earlier registration.
func NewRegistry(tools []Tool, opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:       make(map[string]Tool, len(tools)),
		callTimeout: defaultCallTimeout,
		logger:      log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions renders the registry as function definitions for the model.
func (r *Registry) Definitions() []llms.Tool {
	defs := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	return defs
}

// Execute runs the named tool with the given JSON arguments. The call is
// bounded by the registry timeout. Execute never returns a Go error: unknown
// tools, timeouts and tool failures all surface as a failed Result so the
// model sees an observation instead of the turn aborting.
func (r *Registry) Execute(ctx context.Context, name, arguments string) Result {
	t, ok := r.tools[name]
	if !ok {
		r.logger.Warn("tool %q not registered", name)
		return Result{Err: NotFoundError("unknown tool %q", name)}
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	start := time.Now()
	content, err := t.Call(ctx, arguments)
	elapsed := time.Since(start)

	if err != nil {
		var toolErr *Error
		if e, ok := err.(*Error); ok {
			toolErr = e
		} else if ctx.Err() != nil {
			toolErr = UpstreamError("tool %q timed out after %s", name, elapsed.Round(time.Millisecond))
		} else {
			toolErr = UpstreamError("tool %q failed: %v", name, err)
		}
		r.logger.Warn("tool %s failed in %s: %s", name, elapsed.Round(time.Millisecond), toolErr.Message)
		return Result{Err: toolErr}
	}

	r.logger.Debug("tool %s completed in %s", name, elapsed.Round(time.Millisecond))
	return Result{Content: content}
}

// ObjectSchema is a helper for building JSON schemas of argument objects.
// Properties are listed in a stable order in the schema's required list.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	sort.Strings(required)
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
