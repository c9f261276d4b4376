// Memgraph/Neo4j graph database client using Bolt protocol
package graphstore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Config holds graph database configuration
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	GraphName  string
	RetryCount int
}

// Client wraps the Neo4j driver behind the Store contract.
type Client struct {
	driver     neo4j.DriverWithContext
	logger     ectologger.Logger
	graphName  string
	retryCount int
}

var _ Store = (*Client)(nil)

// NewClient creates a new graph database client
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	uri := fmt.Sprintf("bolt://%s:%d", cfg.Host, cfg.Port)

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	retryCount := cfg.RetryCount
	if retryCount < 1 {
		retryCount = 1
	}

	return &Client{
		driver:     driver,
		logger:     logger,
		graphName:  cfg.GraphName,
		retryCount: retryCount,
	}, nil
}

// Close closes the driver connection
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// GraphName identifies the backing graph.
func (c *Client) GraphName() string {
	return c.graphName
}

// IsAlive reports store reachability.
func (c *Client) IsAlive(ctx context.Context) bool {
	return c.driver.VerifyConnectivity(ctx) == nil
}

// Execute runs a single write statement with the client's retry budget.
// Exhausting the budget surfaces STORE_UNAVAILABLE.
func (c *Client) Execute(ctx context.Context, query string, params map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Client.Execute")
	defer span.End()

	return c.withRetry(ctx, func() error {
		session := c.session(ctx, neo4j.AccessModeWrite)
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			return result.Consume(ctx)
		})
		return err
	})
}

// Query runs a read statement and returns one map per record.
func (c *Client) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Client.Query")
	defer span.End()

	var rows []map[string]any
	err := c.withRetry(ctx, func() error {
		session := c.session(ctx, neo4j.AccessModeRead)
		defer session.Close(ctx)

		result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}

			var records []map[string]any
			for res.Next(ctx) {
				record := res.Record()
				row := make(map[string]any, len(record.Keys))
				for _, key := range record.Keys {
					value, _ := record.Get(key)
					row[key] = value
				}
				records = append(records, row)
			}
			return records, res.Err()
		})
		if err != nil {
			return err
		}
		rows, _ = result.([]map[string]any)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateIndexes creates the secondary indexes the resolution core relies on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Client.CreateIndexes")
	defer span.End()

	indexes := []string{
		"CREATE INDEX ON :Entity(id)",
		"CREATE INDEX ON :Entity(normalized_name)",
		"CREATE INDEX ON :Entity(entity_type)",
		"CREATE INDEX ON :Entity(status)",
		"CREATE INDEX ON :Synonym(normalized_value)",
		"CREATE INDEX ON :BlockingKey(key)",
		"CREATE INDEX ON :Lock(key)",
		"CREATE INDEX ON :MatchDecision(id)",
	}

	for _, stmt := range indexes {
		if err := c.Execute(ctx, stmt, nil); err != nil {
			// Memgraph errors on duplicate index creation; log and continue.
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"index": stmt}).Warn("Index creation failed")
		}
	}

	return nil
}

func (c *Client) session(ctx context.Context, accessMode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: accessMode,
	})
}

// withRetry retries transient store failures with doubling backoff before
// surfacing STORE_UNAVAILABLE.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.retryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = op(); lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return models.WrapError(models.ErrStoreUnavailable, lastErr, "graph store unavailable after %d attempts", c.retryCount)
}
