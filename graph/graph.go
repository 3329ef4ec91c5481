package graph

import (
	"context"
	"errors"
	"fmt"
)

// END is a special constant used to represent the end node in the graph.
const END = "END"

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrStepLimitExceeded is returned when an invocation visits more nodes
	// than the configured limit, which indicates a cycle in the graph wiring.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// defaultMaxSteps bounds one invocation. A routing turn visits a handful of
// nodes; anything past this is a wiring bug, not a long conversation.
const defaultMaxSteps = 16

// Node represents a node in the graph.
type Node[S any] struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function takes the current state and returns the updated state.
	Function func(ctx context.Context, state S) (S, error)
}

// Edge represents a static edge in the graph.
type Edge struct {
	From string
	To   string
}

// Graph is a directed graph of named nodes executed one at a time.
// Successors are chosen by static edges or by a per-node condition evaluated
// against the state after the node ran.
type Graph[S any] struct {
	nodes            map[string]Node[S]
	edges            []Edge
	conditionalEdges map[string]func(ctx context.Context, state S) string
	entryPoint       string
	maxSteps         int
}

// NewGraph creates a new empty graph.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]func(ctx context.Context, state S) string),
		maxSteps:         defaultMaxSteps,
	}
}

// AddNode adds a new node to the graph with the given name, description and function.
func (g *Graph[S]) AddNode(name string, description string, fn func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a static edge between the "from" and "to" nodes.
func (g *Graph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdge adds an edge whose target node is determined at runtime.
// The condition may return END to finish the invocation.
func (g *Graph[S]) AddConditionalEdge(from string, condition func(ctx context.Context, state S) string) {
	g.conditionalEdges[from] = condition
}

// SetEntryPoint sets the entry point node name for the graph.
func (g *Graph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetMaxSteps overrides the per-invocation node visit limit.
func (g *Graph[S]) SetMaxSteps(n int) {
	if n > 0 {
		g.maxSteps = n
	}
}

// Runnable is a compiled graph that can be invoked.
type Runnable[S any] struct {
	graph *Graph[S]
}

// Compile validates the graph and returns a Runnable.
func (g *Graph[S]) Compile() (*Runnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}
	return &Runnable[S]{graph: g}, nil
}

// Invoke executes the graph from the entry point until END is reached,
// threading the state through each visited node.
func (r *Runnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	state := initialState
	current := r.graph.entryPoint

	for steps := 0; current != END; steps++ {
		if steps >= r.graph.maxSteps {
			return state, fmt.Errorf("%w (%d nodes visited)", ErrStepLimitExceeded, steps)
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		var err error
		state, err = node.Function(ctx, state)
		if err != nil {
			return state, fmt.Errorf("error in node %s: %w", current, err)
		}

		current, err = r.next(ctx, node.Name, state)
		if err != nil {
			return state, err
		}
	}

	return state, nil
}

// next resolves the successor of a node: conditional edge first, then the
// first matching static edge.
func (r *Runnable[S]) next(ctx context.Context, from string, state S) (string, error) {
	if condition, ok := r.graph.conditionalEdges[from]; ok {
		to := condition(ctx, state)
		if to == "" {
			return "", fmt.Errorf("conditional edge returned empty next node from %s", from)
		}
		return to, nil
	}

	for _, edge := range r.graph.edges {
		if edge.From == from {
			return edge.To, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
}
