// Package agent implements C5, the Improvement Agent: a long-running
// cooperative task that discovers work across prompts, prioritises it, and
// executes it with bounded concurrency on a periodic cycle (spec §4.5).
// Grounded on the Python original's hermes_agent.py HermesAgent class.
package agent

import "time"

// LifecycleState is the Agent's current phase (spec §4.5: "idle →
// monitoring → analyzing → improving → sleeping → monitoring …").
type LifecycleState string

const (
	StateIdle       LifecycleState = "idle"
	StateMonitoring LifecycleState = "monitoring"
	StateAnalyzing  LifecycleState = "analyzing"
	StateImproving  LifecycleState = "improving"
	StateSleeping   LifecycleState = "sleeping"
	StateStopped    LifecycleState = "stopped"
)

// TaskType enumerates the work items discovery can emit (spec §4.5).
type TaskType string

const (
	TaskQualityCheck      TaskType = "QUALITY_CHECK"
	TaskBenchmarkStale    TaskType = "BENCHMARK_STALE"
	TaskRegressionFix     TaskType = "REGRESSION_FIX"
	TaskProactiveOptimize TaskType = "PROACTIVE_OPTIMIZE"
	TaskApplySuggestion   TaskType = "APPLY_SUGGESTION"
	TaskRunExperiment     TaskType = "RUN_EXPERIMENT"
	TaskCrossPromptLearn  TaskType = "CROSS_PROMPT_LEARN"
	TaskNotify            TaskType = "NOTIFY"
)

// Priority orders tasks within a cycle (spec §4.5: "critical < high <
// medium < low").
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

// AgentTask is one unit of discovered work (spec §4.5).
type AgentTask struct {
	ID          string
	Type        TaskType
	Priority    Priority
	PromptID    string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      string
	Err         error

	// SuggestionID is set only for APPLY_SUGGESTION tasks.
	SuggestionID string
}

// Config is the Agent's runtime-mutable configuration (spec §4.5).
type Config struct {
	AutoFixRegressions      bool
	AutoApplyHighConfidence bool
	HighConfidenceThreshold float64
	StaleBenchmarkHours     int
	MinImprovementThreshold float64 // percent
	LearningEnabled         bool
	CycleIntervalMinutes    int
	MaxConcurrentTasks      int64
}

// DefaultConfig matches spec §4.5's defaults.
func DefaultConfig() Config {
	return Config{
		AutoFixRegressions:      true,
		AutoApplyHighConfidence: true,
		HighConfidenceThreshold: 0.9,
		StaleBenchmarkHours:     24,
		MinImprovementThreshold: 2.0,
		LearningEnabled:         true,
		CycleIntervalMinutes:    15,
		MaxConcurrentTasks:      5,
	}
}

// Metrics are the Agent's exposed counters (spec §4.5).
type Metrics struct {
	TasksCompleted        int64
	TasksFailed           int64
	ImprovementsMade      int64
	RegressionsFixed      int64
	TotalScoreImprovement float64
	LastCycleAt           *time.Time
	UptimeSeconds         int64
	QueueDepth            int
}
