// Package graphstore defines the contract the resolution core uses to talk
// to the property graph, plus the Bolt-backed implementation.
package graphstore

import "context"

// Store is the only interface the core consumes for graph access. Writes
// issued through Execute are durable before the call returns.
type Store interface {
	// Execute runs a single write statement.
	Execute(ctx context.Context, query string, params map[string]any) error

	// Query runs a read statement and returns one map per record.
	Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// IsAlive reports store reachability.
	IsAlive(ctx context.Context) bool

	// GraphName identifies the backing graph.
	GraphName() string

	// CreateIndexes creates the secondary indexes the core relies on.
	CreateIndexes(ctx context.Context) error
}
