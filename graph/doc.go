// Package graph provides a small directed dispatch graph: named nodes,
// static and conditional edges, and a sequential runner. One invocation is
// one pass from the entry point to END; there is no parallel fan-out and no
// looping across the graph. Iteration, where needed, lives inside a node.
package graph
