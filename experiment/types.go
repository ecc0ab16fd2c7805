// Package experiment implements C4, the Experiment Controller: variant
// assignment, metric recording, and statistical-significance evaluation
// for A/B tests between prompt versions (spec §4.4). Grounded on the
// Python original's ab_testing.py dataclasses and assignment strategies.
package experiment

import "time"

// Status is an Experiment's lifecycle state (spec §4.4).
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions enumerates the legal Status moves (spec §4.4: "draft →
// running → (paused ↔ running) → completed; draft → cancelled is
// allowed; completed and cancelled are terminal").
var transitions = map[Status]map[Status]bool{
	StatusDraft:     {StatusRunning: true, StatusCancelled: true},
	StatusRunning:   {StatusPaused: true, StatusCompleted: true, StatusCancelled: true},
	StatusPaused:    {StatusRunning: true, StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is a legal Experiment status move.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Strategy is a traffic-split assignment algorithm (spec §4.4).
type Strategy string

const (
	StrategyEqual          Strategy = "equal"
	StrategyWeighted       Strategy = "weighted"
	StrategyEpsilonGreedy  Strategy = "epsilon_greedy"
	StrategyThompson       Strategy = "thompson_sampling"
	StrategyUCB1           Strategy = "ucb1"
)

// MetricType classifies a Metric (spec §4.4).
type MetricType string

const (
	MetricConversion MetricType = "conversion"
	MetricValue      MetricType = "value"
	MetricRating     MetricType = "rating"
	MetricLatency    MetricType = "latency"
)

// Goal is whether a Metric is better higher or lower.
type Goal string

const (
	GoalMaximize Goal = "maximize"
	GoalMinimize Goal = "minimize"
)

// EventType classifies an ExperimentEvent (spec §4.4).
type EventType string

const (
	EventImpression EventType = "impression"
	EventConversion EventType = "conversion"
	EventCustom     EventType = "custom"
)

// Variant carries one arm of an Experiment (spec §4.4).
type Variant struct {
	ID            string
	Name          string
	PromptID      string
	PromptVersion string
	Weight        float64
	IsControl     bool
}

// Metric describes one outcome an Experiment tracks (spec §4.4).
type Metric struct {
	ID                      string
	Name                    string
	Type                    MetricType
	Goal                    Goal
	MinimumDetectableEffect float64
	IsPrimary               bool
}

// Experiment is the top-level entity (spec §4.4).
type Experiment struct {
	ID                  string
	Name                string
	Status              Status
	Variants            []Variant
	Metrics             []Metric
	TrafficSplit        Strategy
	TrafficPercentage   float64 // (0,100]
	MinSampleSize       int
	MaxDurationDays     int
	ConfidenceThreshold float64 // (0,1)
	AutoPromote         bool
	CreatedAt           time.Time
	StartedAt           *time.Time
	EndedAt             *time.Time
	WinnerVariantID     *string
	Result              *Result
}

// ExperimentEvent is an append-only record of assignment activity
// (spec §4.4).
type ExperimentEvent struct {
	ExperimentID string
	VariantID    string
	UserID       string
	EventType    EventType
	Value        float64
	MetricID     string
	Timestamp    time.Time
}

// VariantStats are the in-memory aggregates maintained per variant
// (spec §4.4 "recordImpression/recordConversion/recordMetric ... update
// in-memory variant statistics").
type VariantStats struct {
	VariantID    string
	Impressions  int
	Conversions  int
	TotalValue   float64
	TotalLatency float64
}

// ConversionRate is conversions/impressions, or 0 with no impressions.
func (s VariantStats) ConversionRate() float64 {
	if s.Impressions == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Impressions)
}

// SignificanceResult is the outcome of comparing one treatment against
// control (spec §4.4 Significance).
type SignificanceResult struct {
	VariantID      string
	ControlRate    float64
	TreatmentRate  float64
	Lift           float64
	PValue         float64
	Confidence     float64
	Significant    bool
	Insufficient   bool
}

// Recommendation is stopExperiment's auto-promote signal (spec §4.4).
type Recommendation string

const (
	RecommendationPromoteWinner Recommendation = "promote_winner"
	RecommendationKeepRunning   Recommendation = "keep_running"
	RecommendationNoWinner      Recommendation = "no_winner"
)

// Result is an Experiment's final computed outcome (spec §4.4
// stopExperiment: "winner = highest conversion rate among significantly
// better variants; else nil").
type Result struct {
	WinnerVariantID *string
	Significances   []SignificanceResult
	Recommendation  Recommendation
}
