package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/gate"
	"github.com/hrygo/hermes/internal/herrors"
	"github.com/hrygo/hermes/store"
)

type fakePromptStore struct {
	mu             sync.Mutex
	prompts        map[string]*store.Prompt
	versions       map[string][]*store.PromptVersion
	rollbackTarget string
}

func newFakePromptStore(prompts ...*store.Prompt) *fakePromptStore {
	s := &fakePromptStore{prompts: map[string]*store.Prompt{}, versions: map[string][]*store.PromptVersion{}}
	for _, p := range prompts {
		s.prompts[p.ID] = p
	}
	return s
}

func (s *fakePromptStore) List(ctx context.Context, filter store.ListFilter) (store.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]*store.Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		items = append(items, p)
	}
	return store.ListResult{Items: items, Total: len(items)}, nil
}

func (s *fakePromptStore) GetByID(ctx context.Context, id string) (*store.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[id]
	if !ok {
		return nil, herrors.NotFoundf("prompt %q not found", id)
	}
	cp := *p
	return &cp, nil
}

func (s *fakePromptStore) ListVersions(ctx context.Context, promptID string, limit, offset int) ([]*store.PromptVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[promptID], nil
}

func (s *fakePromptStore) Update(ctx context.Context, p store.UpdateParams) (*store.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.prompts[p.ID]
	if p.Content != nil {
		existing.Content = *p.Content
		existing.Version = bumpPatch(existing.Version)
	}
	return existing, nil
}

func (s *fakePromptStore) Rollback(ctx context.Context, promptID, targetVersion, authorID string) (*store.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbackTarget = targetVersion
	existing := s.prompts[promptID]
	existing.Version = bumpPatch(existing.Version)
	return existing, nil
}

func bumpPatch(v string) string {
	return v + ".1"
}

type fakeBenchmarkService struct {
	mu            sync.Mutex
	results       map[string]*benchmark.Result
	critique      *benchmark.CritiqueReport
	applyContent  string
	benchmarkSeq  []float64
	benchmarkCall int
	history       []*benchmark.Result
}

func (f *fakeBenchmarkService) RunBenchmark(ctx context.Context, promptID, suiteID string) (*benchmark.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	overall := 0.5
	if f.benchmarkCall < len(f.benchmarkSeq) {
		overall = f.benchmarkSeq[f.benchmarkCall]
	}
	f.benchmarkCall++
	r := &benchmark.Result{PromptID: promptID, SuiteID: suiteID, Overall: overall}
	f.results[promptID] = r
	return r, nil
}

func (f *fakeBenchmarkService) RunSelfCritique(ctx context.Context, promptID, depth string) (*benchmark.CritiqueReport, error) {
	return f.critique, nil
}

func (f *fakeBenchmarkService) ApplySuggestion(ctx context.Context, promptID string, s benchmark.Suggestion) (string, error) {
	return f.applyContent, nil
}

func (f *fakeBenchmarkService) LatestResult(ctx context.Context, promptID string) (*benchmark.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[promptID], nil
}

func (f *fakeBenchmarkService) History(ctx context.Context, promptID string, limit int) ([]*benchmark.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

type fakeGateService struct{}

func (fakeGateService) Evaluate(ctx context.Context, promptID, version string, gates []gate.Config) (*gate.Report, error) {
	return &gate.Report{PromptID: promptID, Version: version, Overall: gate.StatusPassed, CanDeploy: true}, nil
}

// TestApplySuggestionSafelyKeepsImprovement covers spec scenario S6's
// "improved" branch: a higher post-apply score is kept, no rollback.
func TestApplySuggestionSafelyKeepsImprovement(t *testing.T) {
	prompts := newFakePromptStore(&store.Prompt{ID: "p1", Version: "1.0.0", Content: "old"})
	benchmarks := &fakeBenchmarkService{
		results:      map[string]*benchmark.Result{"p1": {Overall: 0.73}},
		applyContent: "new content",
		benchmarkSeq: []float64{0.78},
	}
	a := New(prompts, benchmarks, fakeGateService{}, nil, DefaultConfig())

	result, err := a.applySuggestionSafely(context.Background(), "p1", benchmark.Suggestion{ID: "s1", Description: "tighten wording"}, a.cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "improved" {
		t.Fatalf("expected improved, got %q", result)
	}
	if prompts.prompts["p1"].Content != "new content" {
		t.Fatalf("expected content to remain applied, got %q", prompts.prompts["p1"].Content)
	}
	_, m := a.GetStatus()
	if m.ImprovementsMade != 1 {
		t.Fatalf("expected ImprovementsMade=1, got %d", m.ImprovementsMade)
	}
}

// TestApplySuggestionSafelyRevertsOnRegression covers spec scenario S6's
// revert branch: 78 kept vs. 73 reverted via rollback.
func TestApplySuggestionSafelyRevertsOnRegression(t *testing.T) {
	prompts := newFakePromptStore(&store.Prompt{ID: "p1", Version: "1.0.0", Content: "old"})
	benchmarks := &fakeBenchmarkService{
		results:      map[string]*benchmark.Result{"p1": {Overall: 0.78}},
		applyContent: "worse content",
		benchmarkSeq: []float64{0.73},
	}
	a := New(prompts, benchmarks, fakeGateService{}, nil, DefaultConfig())

	_, err := a.applySuggestionSafely(context.Background(), "p1", benchmark.Suggestion{ID: "s1", Description: "bad idea"}, a.cfg)
	if err == nil {
		t.Fatal("expected regression error, got nil")
	}
	if prompts.prompts["p1"].Version != "1.0.0.1.1" {
		t.Fatalf("expected update and rollback to each bump the version, got %q", prompts.prompts["p1"].Version)
	}
}

// TestRollbackToBestRecentPicksHighestScoringPriorVersion covers spec
// §4.5's REGRESSION_FIX rollback step: among the last versions, the
// highest-scoring one wins even when it isn't the oldest.
func TestRollbackToBestRecentPicksHighestScoringPriorVersion(t *testing.T) {
	score := 0.70
	prompts := newFakePromptStore(&store.Prompt{ID: "p1", Version: "1.0.3", LastBenchmarkScore: &score})
	prompts.versions["p1"] = []*store.PromptVersion{
		{PromptID: "p1", Version: "1.0.3"},
		{PromptID: "p1", Version: "1.0.2"},
		{PromptID: "p1", Version: "1.0.1"},
		{PromptID: "p1", Version: "1.0.0"},
	}
	benchmarks := &fakeBenchmarkService{
		results: map[string]*benchmark.Result{},
		history: []*benchmark.Result{
			{PromptID: "p1", Version: "1.0.2", Overall: 0.65},
			{PromptID: "p1", Version: "1.0.1", Overall: 0.85},
			{PromptID: "p1", Version: "1.0.0", Overall: 0.60},
		},
	}
	a := New(prompts, benchmarks, fakeGateService{}, nil, DefaultConfig())

	result, err := a.rollbackToBestRecent(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == "no prior version scored higher" {
		t.Fatalf("expected a rollback, got %q", result)
	}
	if prompts.rollbackTarget != "1.0.1" {
		t.Fatalf("expected rollback target 1.0.1 (highest scoring prior), got %q", prompts.rollbackTarget)
	}
}

// TestRollbackToBestRecentSkipsWhenNoPriorScoresHigher covers the case
// where every recent version scored at or below the current score: no
// rollback should be issued.
func TestRollbackToBestRecentSkipsWhenNoPriorScoresHigher(t *testing.T) {
	score := 0.90
	prompts := newFakePromptStore(&store.Prompt{ID: "p1", Version: "1.0.1", LastBenchmarkScore: &score})
	prompts.versions["p1"] = []*store.PromptVersion{
		{PromptID: "p1", Version: "1.0.1"},
		{PromptID: "p1", Version: "1.0.0"},
	}
	benchmarks := &fakeBenchmarkService{
		results: map[string]*benchmark.Result{},
		history: []*benchmark.Result{
			{PromptID: "p1", Version: "1.0.0", Overall: 0.80},
		},
	}
	a := New(prompts, benchmarks, fakeGateService{}, nil, DefaultConfig())

	result, err := a.rollbackToBestRecent(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "no prior version scored higher" {
		t.Fatalf("expected no rollback, got %q", result)
	}
	if prompts.rollbackTarget != "" {
		t.Fatalf("expected Rollback to never be called, got target %q", prompts.rollbackTarget)
	}
}

func TestExecuteTasksRecordsOutcomesWithoutAborting(t *testing.T) {
	prompts := newFakePromptStore(
		&store.Prompt{ID: "ok", Version: "1.0.0", Content: "x"},
		&store.Prompt{ID: "missing", Version: "1.0.0", Content: "x"},
	)
	benchmarks := &fakeBenchmarkService{results: map[string]*benchmark.Result{}}
	a := New(prompts, benchmarks, fakeGateService{}, nil, DefaultConfig())

	tasks := []AgentTask{
		{ID: "t1", Type: TaskBenchmarkStale, PromptID: "ok"},
		{ID: "t2", Type: TaskBenchmarkStale, PromptID: "does-not-exist"},
	}
	a.executeTasks(context.Background(), tasks, a.cfg)

	_, m := a.GetStatus()
	if m.TasksCompleted != 1 || m.TasksFailed != 1 {
		t.Fatalf("expected 1 completed and 1 failed, got completed=%d failed=%d", m.TasksCompleted, m.TasksFailed)
	}
}
