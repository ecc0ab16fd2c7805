package benchmark

import "context"

// Driver is the persistence boundary for BenchmarkResult, mirroring
// store.Driver's façade/driver split for C1.
type Driver interface {
	// InsertResult persists a new, immutable BenchmarkResult.
	InsertResult(ctx context.Context, r *Result) error

	// RecentResults returns the n most recent results for promptID, newest
	// first. When excludeSimulation is true, results tagged
	// environment="simulation" are omitted (spec §9 Open Question #2,
	// codified as yes: regression baselines never mix in simulation runs).
	RecentResults(ctx context.Context, promptID string, n int, excludeSimulation bool) ([]*Result, error)

	// History returns up to limit results for promptID, newest first.
	History(ctx context.Context, promptID string, limit int) ([]*Result, error)

	// ResultsSince returns every result for promptID executed at or after
	// since, oldest first, for trend computation.
	ResultsSince(ctx context.Context, promptID string, since int64) ([]*Result, error)

	// LatestResult returns the single most recent result for promptID, or
	// a NotFound error if none exists (used by C3's gate evaluator).
	LatestResult(ctx context.Context, promptID string) (*Result, error)
}
