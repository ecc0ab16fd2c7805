package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/experiment"
	"github.com/hrygo/hermes/store"
)

// executeTasks implements spec §4.5 step 3: pop tasks and run them
// concurrently up to maxConcurrentTasks, never aborting the cycle for a
// single task's failure. Grounded on the teacher's dag_scheduler.go
// semaphore idiom; unlike benchmark.Orchestrator.RunBatch this uses
// errgroup for the bookkeeping convenience (task slice results don't need
// positional correlation the way batch outcomes do, and one task's error
// is captured on the task itself rather than needing to propagate).
func (a *Agent) executeTasks(ctx context.Context, tasks []AgentTask, cfg Config) {
	maxConcurrent := cfg.MaxConcurrentTasks
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	sem := semaphore.NewWeighted(maxConcurrent)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := range tasks {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			a.runTask(gctx, &tasks[i])
			mu.Lock()
			a.recordOutcome(&tasks[i])
			mu.Unlock()
			return nil // task failures are recorded on the task, never propagated
		})
	}
	_ = g.Wait()
}

func (a *Agent) recordOutcome(t *AgentTask) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.Err != nil {
		a.metrics.TasksFailed++
	} else {
		a.metrics.TasksCompleted++
	}
}

// runTask dispatches t to its handler and records start/completion times,
// recovering from any panic so a single bad handler can never take down
// the scheduler (spec §7: "Background goroutines/tasks must never
// panic-propagate into the scheduler").
func (a *Agent) runTask(ctx context.Context, t *AgentTask) {
	defer func() {
		if r := recover(); r != nil {
			t.Err = panicError{r}
		}
		now := time.Now().UTC()
		t.CompletedAt = &now
	}()
	started := time.Now().UTC()
	t.StartedAt = &started

	a.mu.RLock()
	cfg := a.cfg
	a.mu.RUnlock()

	switch t.Type {
	case TaskQualityCheck:
		t.Result, t.Err = a.handleQualityCheck(ctx, t)
	case TaskBenchmarkStale:
		t.Result, t.Err = a.handleBenchmarkStale(ctx, t)
	case TaskRegressionFix:
		t.Result, t.Err = a.handleRegressionFix(ctx, t, cfg)
	case TaskProactiveOptimize:
		t.Result, t.Err = a.handleProactiveOptimize(ctx, t, cfg)
	case TaskApplySuggestion:
		t.Result, t.Err = a.handleApplySuggestion(ctx, t, cfg)
	case TaskRunExperiment:
		t.Result, t.Err = a.handleRunExperiment(ctx, t)
	case TaskCrossPromptLearn:
		t.Result, t.Err = a.handleCrossPromptLearn(ctx, t)
	default:
		t.Err = unknownTaskError{t.Type}
	}
}

type panicError struct{ v any }

func (e panicError) Error() string { return "task panicked: " + formatAny(e.v) }

type unknownTaskError struct{ t TaskType }

func (e unknownTaskError) Error() string { return "unknown task type: " + string(e.t) }

func formatAny(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "non-error panic value"
}

func (a *Agent) handleQualityCheck(ctx context.Context, t *AgentTask) (string, error) {
	p, err := a.prompts.GetByID(ctx, t.PromptID)
	if err != nil {
		return "", err
	}
	suiteID := benchmark.SuiteForKind(string(p.Kind))
	if _, err := a.benchmarks.RunBenchmark(ctx, t.PromptID, suiteID); err != nil {
		return "", err
	}
	report, err := a.gates.Evaluate(ctx, t.PromptID, p.Version, nil)
	if err != nil {
		return "", err
	}
	return string(report.Overall), nil
}

func (a *Agent) handleBenchmarkStale(ctx context.Context, t *AgentTask) (string, error) {
	p, err := a.prompts.GetByID(ctx, t.PromptID)
	if err != nil {
		return "", err
	}
	suiteID := benchmark.SuiteForKind(string(p.Kind))
	r, err := a.benchmarks.RunBenchmark(ctx, t.PromptID, suiteID)
	if err != nil {
		return "", err
	}
	return "benchmarked: " + r.SuiteID, nil
}

// handleRegressionFix implements spec §4.5's REGRESSION_FIX handler:
// prefer a high-confidence suggestion; otherwise roll back to the best
// recent cached-score version.
func (a *Agent) handleRegressionFix(ctx context.Context, t *AgentTask, cfg Config) (string, error) {
	if !cfg.AutoFixRegressions {
		return "auto-fix disabled", nil
	}

	report, err := a.benchmarks.RunSelfCritique(ctx, t.PromptID, "standard")
	if err == nil && report != nil {
		if s := bestHighConfidenceSuggestion(report.Suggestions, cfg.HighConfidenceThreshold); s != nil {
			result, err := a.applySuggestionSafely(ctx, t.PromptID, *s, cfg)
			if err == nil {
				a.mu.Lock()
				a.metrics.RegressionsFixed++
				a.mu.Unlock()
			}
			return result, err
		}
	}

	result, err := a.rollbackToBestRecent(ctx, t.PromptID)
	if err == nil {
		a.mu.Lock()
		a.metrics.RegressionsFixed++
		a.mu.Unlock()
	}
	return result, err
}

func bestHighConfidenceSuggestion(suggestions []benchmark.Suggestion, threshold float64) *benchmark.Suggestion {
	var best *benchmark.Suggestion
	for i := range suggestions {
		s := &suggestions[i]
		if s.Confidence < threshold {
			continue
		}
		if best == nil || s.Confidence > best.Confidence {
			best = s
		}
	}
	return best
}

// rollbackToBestRecent implements spec §4.5 REGRESSION_FIX's rollback step:
// among the last ≤5 versions, roll back to the highest-scoring one, but
// only if it beats the current score. PromptVersion itself doesn't cache a
// score (only Prompt.LastBenchmarkScore does), so
// per-version scores are recovered from benchmark history
// (Result.Version/Overall), keyed to the most recent result seen for each
// version since History returns newest first.
func (a *Agent) rollbackToBestRecent(ctx context.Context, promptID string) (string, error) {
	p, err := a.prompts.GetByID(ctx, promptID)
	if err != nil {
		return "", err
	}
	var currentScore float64
	if p.LastBenchmarkScore != nil {
		currentScore = *p.LastBenchmarkScore
	}

	versions, err := a.prompts.ListVersions(ctx, promptID, 5, 0)
	if err != nil {
		return "", err
	}
	if len(versions) < 2 {
		return "no prior version to roll back to", nil
	}
	eligible := make(map[string]bool, len(versions))
	for _, v := range versions {
		if v.Version != p.Version {
			eligible[v.Version] = true
		}
	}

	history, err := a.benchmarks.History(ctx, promptID, 50)
	if err != nil {
		return "", err
	}
	scored := make(map[string]float64, len(eligible))
	for _, r := range history {
		if !eligible[r.Version] {
			continue
		}
		if _, seen := scored[r.Version]; !seen {
			scored[r.Version] = r.Overall
		}
	}

	var bestVersion string
	var bestScore float64
	for v, s := range scored {
		if bestVersion == "" || s > bestScore {
			bestVersion, bestScore = v, s
		}
	}
	if bestVersion == "" || bestScore <= currentScore {
		return "no prior version scored higher", nil
	}

	rolled, err := a.prompts.Rollback(ctx, promptID, bestVersion, "agent")
	if err != nil {
		return "", err
	}
	return "rolled back to " + rolled.Version, nil
}

// handleProactiveOptimize implements spec §4.5: like REGRESSION_FIX, but
// only acts when autoApplyHighConfidence is true; otherwise it sends a
// "suggestion-ready" notification directly and changes nothing.
func (a *Agent) handleProactiveOptimize(ctx context.Context, t *AgentTask, cfg Config) (string, error) {
	if !cfg.AutoApplyHighConfidence {
		a.notify(ctx, "suggestion-ready", "Optimization candidate", "Prompt "+t.PromptID+" is below the improvement threshold", nil)
		return "notified only", nil
	}
	return a.handleRegressionFix(ctx, t, cfg)
}

// handleApplySuggestion implements spec §4.5's safe suggestion application
// (the numbered steps under "Safe suggestion application").
func (a *Agent) handleApplySuggestion(ctx context.Context, t *AgentTask, cfg Config) (string, error) {
	report, err := a.benchmarks.RunSelfCritique(ctx, t.PromptID, "standard")
	if err != nil {
		return "", err
	}
	for _, s := range report.Suggestions {
		if s.ID == t.SuggestionID {
			return a.applySuggestionSafely(ctx, t.PromptID, s, cfg)
		}
	}
	return "", unknownSuggestionError{t.SuggestionID}
}

type unknownSuggestionError struct{ id string }

func (e unknownSuggestionError) Error() string { return "suggestion not found: " + e.id }

// applySuggestionSafely implements spec §4.5's four numbered steps exactly,
// including the revert-on-regression step 4 (the Python original never
// actually calls rollback here; this implementation does, per spec.md's
// re-architecture note — see DESIGN.md).
func (a *Agent) applySuggestionSafely(ctx context.Context, promptID string, s benchmark.Suggestion, cfg Config) (string, error) {
	p, err := a.prompts.GetByID(ctx, promptID)
	if err != nil {
		return "", err
	}
	previousVersion := p.Version
	var previousOverall float64
	if r, err := a.benchmarks.LatestResult(ctx, promptID); err == nil && r != nil {
		previousOverall = r.Overall
	}

	newContent, err := a.benchmarks.ApplySuggestion(ctx, promptID, s)
	if err != nil {
		return "", err
	}

	updated, err := a.prompts.Update(ctx, store.UpdateParams{
		ID: promptID, Content: &newContent, AuthorID: "agent",
		ChangeSummary: "Applied suggestion: " + s.Description,
	})
	if err != nil {
		return "", err
	}

	suiteID := benchmark.SuiteForKind(string(updated.Kind))
	result, err := a.benchmarks.RunBenchmark(ctx, promptID, suiteID)
	if err != nil {
		return "", err
	}

	if result.Overall <= previousOverall {
		if _, err := a.prompts.Rollback(ctx, promptID, previousVersion, "agent"); err != nil {
			return "", err
		}
		return "", regressedAfterApplyError{previous: previousOverall, got: result.Overall}
	}

	improvement := result.Overall - previousOverall
	a.mu.Lock()
	a.metrics.ImprovementsMade++
	a.metrics.TotalScoreImprovement += improvement
	a.mu.Unlock()
	return "improved", nil
}

type regressedAfterApplyError struct{ previous, got float64 }

func (e regressedAfterApplyError) Error() string {
	return "suggestion reverted: overall regressed"
}

// handleRunExperiment implements spec §4.5's RUN_EXPERIMENT handler:
// compares the prompt's current head against its immediately-preceding
// version as a 50/50 experiment, rather than generating new content —
// content generation belongs to REGRESSION_FIX/APPLY_SUGGESTION, this task
// only decides between versions that already exist.
func (a *Agent) handleRunExperiment(ctx context.Context, t *AgentTask) (string, error) {
	a.mu.RLock()
	experiments := a.experiments
	a.mu.RUnlock()
	if experiments == nil {
		return "", errors.New("experiments service not configured")
	}

	p, err := a.prompts.GetByID(ctx, t.PromptID)
	if err != nil {
		return "", err
	}
	versions, err := a.prompts.ListVersions(ctx, t.PromptID, 2, 0)
	if err != nil {
		return "", err
	}
	if len(versions) < 2 {
		return "not enough version history to compare", nil
	}

	exp := &experiment.Experiment{
		Name: fmt.Sprintf("auto-%s", t.PromptID),
		Variants: []experiment.Variant{
			{Name: "control", PromptID: t.PromptID, PromptVersion: p.Version, IsControl: true, Weight: 0.5},
			{Name: "challenger", PromptID: t.PromptID, PromptVersion: versions[1].Version, Weight: 0.5},
		},
		TrafficSplit:        experiment.StrategyEqual,
		TrafficPercentage:   100,
		MinSampleSize:       100,
		ConfidenceThreshold: 0.95,
		AutoPromote:         true,
	}

	created, err := experiments.Create(exp)
	if err != nil {
		return "", err
	}
	if _, err := experiments.Start(created.ID); err != nil {
		return "", err
	}
	return "started experiment " + created.ID, nil
}

// handleCrossPromptLearn implements spec §4.5's read-only audit task: it
// reads the top-scoring prompts and records coarse structural patterns.
func (a *Agent) handleCrossPromptLearn(ctx context.Context, t *AgentTask) (string, error) {
	listed, err := a.prompts.List(ctx, store.ListFilter{Limit: 20})
	if err != nil {
		return "", err
	}
	top := topByScore(listed.Items, 5)
	patterns := ExtractPatterns(top)
	return summarizePatterns(patterns), nil
}

func topByScore(prompts []*store.Prompt, n int) []*store.Prompt {
	scored := make([]*store.Prompt, 0, len(prompts))
	for _, p := range prompts {
		if p.LastBenchmarkScore != nil {
			scored = append(scored, p)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].LastBenchmarkScore > *scored[j].LastBenchmarkScore
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

func (a *Agent) notify(ctx context.Context, kind, title, body string, data map[string]string) {
	if a.notifier == nil {
		slog.Info("notification (no notifier configured)", "kind", kind, "title", title)
		return
	}
	if err := a.notifier.Notify(ctx, kind, title, body, data); err != nil {
		slog.Warn("notification delivery failed", "kind", kind, "error", err)
	}
}
