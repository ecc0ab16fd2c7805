// Package benchmark implements C2, the Benchmark Orchestrator: it invokes
// the external evaluator, persists results, computes baseline delta and
// regression flags, and aggregates trend analytics. Grounded on ai/llm.go's
// LLMService client shape in the teacher repo (custom HTTP client, provider
// switch, context-scoped timeouts) and on the Python original's
// benchmark_engine.py.
package benchmark

import "time"

// Suite is a configuration entity for a family of benchmark runs (spec §3).
type Suite struct {
	ID            string
	Dimensions    []string
	Weights       map[string]float64
	GateThreshold float64 // in (0,1]
	DefaultModel  string
	Tags          []string
	TestCases     []TestCase
}

// TestCase is one input/expected-output pair a Suite may exercise.
type TestCase struct {
	Input           string
	ExpectedOutput  string
	ExpectedPattern string
	Weight          float64
	Category        string
}

// Overall computes the suite's weighted overall score from a per-dimension
// score vector, per spec §3's invariant:
// overall = Σ weight_i * score_i / Σ weight_i.
func (s Suite) Overall(scores map[string]float64) float64 {
	var num, den float64
	for _, dim := range s.Dimensions {
		w := s.Weights[dim]
		num += w * scores[dim]
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// StandardSuites are the five suites always available to the core (spec
// §6), with dimensions/thresholds grounded on the Python original's
// hermes/integrations/ate.py get_suites().
func StandardSuites() map[string]Suite {
	equalWeights := func(dims []string) map[string]float64 {
		w := make(map[string]float64, len(dims))
		for _, d := range dims {
			w[d] = 1.0
		}
		return w
	}
	mk := func(id string, dims []string, threshold float64) Suite {
		return Suite{ID: id, Dimensions: dims, Weights: equalWeights(dims), GateThreshold: threshold}
	}
	return map[string]Suite{
		"default":     mk("default", []string{"quality", "safety", "performance", "clarity"}, 0.8),
		"safety":      mk("safety", []string{"safety", "harmlessness", "helpfulness", "honesty"}, 0.9),
		"performance": mk("performance", []string{"latency", "token_efficiency", "accuracy"}, 0.75),
		"quality":     mk("quality", []string{"accuracy", "clarity", "consistency", "reasoning"}, 0.85),
		"agent":       mk("agent", []string{"instruction_following", "reasoning", "helpfulness", "safety"}, 0.85),
	}
}

// SuiteForKind implements spec §6's suite-for-kind mapping used by
// auto-benchmark.
func SuiteForKind(kind string) string {
	switch kind {
	case "agent-system":
		return "agent"
	case "user-template":
		return "quality"
	case "tool-definition":
		return "default"
	case "instruction-spec":
		return "default"
	default:
		return "default"
	}
}

// Result is an immutable record of one evaluation run (spec §3).
type Result struct {
	ID              string
	PromptID        string
	Version         string
	Fingerprint     string
	SuiteID         string
	Overall         float64
	Dimensions      map[string]float64
	ModelID         string
	ModelVersion    string
	ExecutionTimeMS int64
	TokenUsage      map[string]int
	Baseline        *float64
	Delta           *float64
	GatePassed      bool
	GateThreshold   float64
	IsRegression    bool
	ExecutedAt      time.Time
	ExecutorID      string
	Environment     string // "production" or "simulation"
	Error           string
}

// TokenUsage key names, matching the evaluator wire contract (spec §6).
const (
	TokenUsagePrompt     = "prompt_tokens"
	TokenUsageCompletion = "completion_tokens"
	TokenUsageTotal      = "total_tokens"
)

// Severity is a self-critique suggestion's severity (spec §4.2).
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityWeight implements the SUPPLEMENTED severity-weighted ranking
// described in SPEC_FULL.md, grounded on the Python original's
// benchmark_engine._calculate_improvement_potential.
var severityWeight = map[Severity]float64{
	SeverityCritical: 1.0,
	SeverityHigh:     0.7,
	SeverityMedium:   0.4,
	SeverityLow:      0.15,
}

// Suggestion is one self-critique recommendation (spec §4.2).
type Suggestion struct {
	ID               string
	Category         string
	Severity         Severity
	Description      string
	SuggestedChange  string
	Confidence       float64 // [0,1]
	EstimatedImpact  float64
}

// RankWeight returns s's severity-weighted secondary sort key: confidence
// scaled by severity weight. Default ranking (confidence-only, per spec
// §4.5 "pick the top by confidence") ignores this; callers opt in.
func (s Suggestion) RankWeight() float64 {
	return s.Confidence * severityWeight[s.Severity]
}

// CritiqueReport is the result of runSelfCritique (spec §4.2).
type CritiqueReport struct {
	Assessment           string
	QualityScore         float64
	Suggestions          []Suggestion
	KnowledgeGaps        []string
	OverconfidenceAreas  []string
	TrainingDataNeeds    []string
}

// Trends is the result of trends(promptId, windowDays) (spec §4.2).
type Trends struct {
	Slope            float64 // linear-regression slope of overall scores
	Direction        string  // "improving", "stable", "declining"
	Avg7Day          float64
	Avg30Day         float64
	Delta7Day        float64
	Delta30Day       float64
	DimensionAverages map[string]float64
	SampleCount      int
}

// Comparison is the SUPPLEMENTED compare_prompts read-only operation.
type Comparison struct {
	PromptAID, PromptBID string
	OverallDelta         float64
	DimensionDeltas      map[string]float64
}
