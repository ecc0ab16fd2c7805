package agent

import (
	"context"
	"testing"
	"time"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/store"
)

type fakeResultLookup struct {
	byPrompt map[string]*benchmark.Result
}

func (f fakeResultLookup) LatestResult(ctx context.Context, promptID string) (*benchmark.Result, error) {
	return f.byPrompt[promptID], nil
}

func scorePtr(f float64) *float64 { return &f }

func TestDiscoverTasksCoversAllThreeRules(t *testing.T) {
	now := time.Now().UTC()
	stale := now.Add(-48 * time.Hour)
	prompts := []*store.Prompt{
		{ID: "p1", LastBenchmarkAt: nil},                                   // needs benchmark
		{ID: "p2", LastBenchmarkAt: &stale, LastBenchmarkScore: scorePtr(0.95)},
		{ID: "p3", LastBenchmarkAt: &now, LastBenchmarkScore: scorePtr(0.70)}, // can improve
	}
	results := fakeResultLookup{byPrompt: map[string]*benchmark.Result{
		"p3": {IsRegression: true},
	}}
	cfg := DefaultConfig()

	tasks := discoverTasks(context.Background(), prompts, results, cfg)

	var sawBenchmarkStale, sawRegression, sawOptimize bool
	for _, task := range tasks {
		switch {
		case task.Type == TaskBenchmarkStale && task.PromptID == "p1":
			sawBenchmarkStale = true
		case task.Type == TaskRegressionFix && task.PromptID == "p3":
			sawRegression = true
		case task.Type == TaskProactiveOptimize && task.PromptID == "p3":
			sawOptimize = true
		}
	}
	if !sawBenchmarkStale {
		t.Error("expected BENCHMARK_STALE task for p1")
	}
	if !sawRegression {
		t.Error("expected REGRESSION_FIX task for p3")
	}
	if !sawOptimize {
		t.Error("expected PROACTIVE_OPTIMIZE task for p3")
	}
}

func TestDiscoverTasksDedupesByTypeAndPrompt(t *testing.T) {
	prompts := []*store.Prompt{
		{ID: "p1"},
		{ID: "p1"}, // duplicate entry, should not double-emit
	}
	tasks := discoverTasks(context.Background(), prompts, fakeResultLookup{}, DefaultConfig())

	count := 0
	for _, task := range tasks {
		if task.Type == TaskBenchmarkStale && task.PromptID == "p1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one deduped BENCHMARK_STALE task, got %d", count)
	}
}

func TestPrioritizeOrdersCriticalFirstThenByAge(t *testing.T) {
	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()
	tasks := []AgentTask{
		{ID: "low", Priority: PriorityLow, CreatedAt: newer},
		{ID: "critical-new", Priority: PriorityCritical, CreatedAt: newer},
		{ID: "critical-old", Priority: PriorityCritical, CreatedAt: older},
	}

	ordered := prioritize(tasks)

	if ordered[0].ID != "critical-old" || ordered[1].ID != "critical-new" || ordered[2].ID != "low" {
		t.Fatalf("unexpected order: %+v", ordered)
	}
}
