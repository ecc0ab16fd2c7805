package agent

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/store"
)

// LatestResultLookup is the narrow slice of benchmark.Driver discovery
// needs: the most recent result for a prompt, to check isRegression.
type LatestResultLookup interface {
	LatestResult(ctx context.Context, promptID string) (*benchmark.Result, error)
}

// discoverTasks implements spec §4.5 step 1: emit BENCHMARK_STALE,
// REGRESSION_FIX, and PROACTIVE_OPTIMIZE tasks for a prompt list,
// deduplicated by (type, promptId). Grounded on hermes_agent.py's
// _discover_tasks/_needs_benchmark/_has_regression/_can_improve.
func discoverTasks(ctx context.Context, prompts []*store.Prompt, results LatestResultLookup, cfg Config) []AgentTask {
	seen := make(map[TaskType]map[string]bool)
	mark := func(t TaskType, promptID string) bool {
		if seen[t] == nil {
			seen[t] = make(map[string]bool)
		}
		if seen[t][promptID] {
			return false
		}
		seen[t][promptID] = true
		return true
	}

	now := time.Now().UTC()
	staleAfter := time.Duration(cfg.StaleBenchmarkHours) * time.Hour

	var tasks []AgentTask
	for _, p := range prompts {
		if needsBenchmark(p, now, staleAfter) && mark(TaskBenchmarkStale, p.ID) {
			tasks = append(tasks, newTask(TaskBenchmarkStale, PriorityLow, p.ID))
		}

		if hasRegression(ctx, results, p.ID) && mark(TaskRegressionFix, p.ID) {
			tasks = append(tasks, newTask(TaskRegressionFix, PriorityCritical, p.ID))
		}

		if canImprove(p) && mark(TaskProactiveOptimize, p.ID) {
			tasks = append(tasks, newTask(TaskProactiveOptimize, PriorityMedium, p.ID))
		}
	}
	return tasks
}

func newTask(t TaskType, priority Priority, promptID string) AgentTask {
	return AgentTask{ID: uuid.NewString(), Type: t, Priority: priority, PromptID: promptID, CreatedAt: time.Now().UTC()}
}

func needsBenchmark(p *store.Prompt, now time.Time, staleAfter time.Duration) bool {
	if p.LastBenchmarkAt == nil {
		return true
	}
	return now.Sub(*p.LastBenchmarkAt) > staleAfter
}

func hasRegression(ctx context.Context, results LatestResultLookup, promptID string) bool {
	if results == nil {
		return false
	}
	r, err := results.LatestResult(ctx, promptID)
	if err != nil || r == nil {
		return false
	}
	return r.IsRegression
}

func canImprove(p *store.Prompt) bool {
	return p.LastBenchmarkScore != nil && *p.LastBenchmarkScore < 0.90
}

// prioritize implements spec §4.5 step 2: a stable sort by priority then
// createdAt (critical first).
func prioritize(tasks []AgentTask) []AgentTask {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}
