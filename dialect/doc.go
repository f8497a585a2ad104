// Package dialect defines the execution primitive that velograph runs its
// compiled Cypher statements through.
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, stmt string, params map[string]any) (*Result, error)
//	    Close(ctx context.Context) error
//	}
//
// A Result carries the returned rows, with graph values already unwrapped
// to plain property maps, and the mutation counters (Stats) reported by the
// server. velograph never opens or closes connections itself.
//
// # Decorators
//
// Drivers compose. The package ships three wrappers that work with any
// Driver:
//
//   - StatsDriver: counts statements, errors and slow statements, and keeps
//     the running total of mutation counters.
//   - DebugDriver: logs every statement and its parameters.
//   - MetricsDriver: exports Prometheus counters and histograms.
//
// Example:
//
//	drv, err := neo4j.Open(ctx, "neo4j://localhost:7687", neo4j.BasicAuth("neo4j", "secret"))
//	if err != nil {
//	    log.Fatal().Err(err).Msg("open neo4j")
//	}
//	stats := dialect.NewStatsDriver(drv,
//	    dialect.WithSlowThreshold(200*time.Millisecond),
//	    dialect.WithSlowQueryLog(logger),
//	)
//	g := velograph.NewGraph(dialect.Debug(stats, logger))
//
// # Sub-packages
//
//   - dialect/neo4j: Driver implementation on top of the official Bolt driver
//   - dialect/dialecttest: scripted Driver for tests
package dialect
