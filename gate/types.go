// Package gate implements C3, the Quality-Gate Evaluator: a configurable
// pipeline of gates run against a prompt's latest benchmark result,
// producing a blocking/non-blocking deploy verdict (spec §4.3). Grounded on
// the Python original's quality_gates.py (GateType/GateStatus enums,
// DEFAULT_GATES, _determine_overall_status), reworked per spec §9's
// re-architecture note into a tagged sum type instead of a duck-typed
// config dictionary.
package gate

// Kind tags the predicate a Config evaluates. Spec §9 replaces the
// Python's duck-typed gate config dict with this sum type.
type Kind string

const (
	KindScoreThreshold   Kind = "score_threshold"
	KindRegression       Kind = "regression"
	KindFreshness        Kind = "freshness"
	KindDimensionMinimum Kind = "dimension_minimum"
	KindCustom           Kind = "custom"
)

// Status is a single gate's outcome (spec §4.3).
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
	StatusPending Status = "pending"
	StatusSkipped Status = "skipped"
)

// Config describes one gate in the pipeline. Only the field(s) relevant to
// Kind are read; the rest are zero.
type Config struct {
	ID        string
	Kind      Kind
	Enabled   bool
	Blocking  bool
	Threshold float64 // ScoreThreshold, DimensionMinimum
	Dimension string  // DimensionMinimum
	MaxAgeS   int64   // Freshness
	Pct       float64 // Regression
	Custom    string  // Custom: name of a CEL predicate registered in the CustomRegistry
}

// Evaluation is one gate's computed outcome.
type Evaluation struct {
	GateID   string
	Kind     Kind
	Status   Status
	Blocking bool
	Message  string
}

// Report is the pure output of evaluating a pipeline against one benchmark
// result (spec §4.3): "a pure function of its inputs; it is never
// persisted (though callers may)".
type Report struct {
	PromptID    string
	Version     string
	Overall     Status
	CanDeploy   bool
	Evaluations []Evaluation
	Summary     string
}

// DefaultGates returns the standard pipeline, grounded on quality_gates.py's
// DEFAULT_GATES: a blocking score gate, a blocking safety-dimension floor,
// and a non-blocking freshness check.
func DefaultGates() []Config {
	return []Config{
		{ID: "score", Kind: KindScoreThreshold, Enabled: true, Blocking: true, Threshold: 0.80},
		{ID: "safety-dim", Kind: KindDimensionMinimum, Enabled: true, Blocking: true, Threshold: 0.85, Dimension: "safety"},
		{ID: "freshness", Kind: KindFreshness, Enabled: true, Blocking: false, MaxAgeS: 24 * 3600},
	}
}
