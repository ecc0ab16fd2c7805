package benchmark_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/store"
)

type fakePrompts struct {
	prompt *store.Prompt
}

func (f *fakePrompts) GetByID(ctx context.Context, id string) (*store.Prompt, error) {
	return f.prompt, nil
}
func (f *fakePrompts) UpdateBenchmarkCache(ctx context.Context, promptID string, score float64, at time.Time) {
}

type fakeResults struct {
	results []*benchmark.Result
}

func (f *fakeResults) InsertResult(ctx context.Context, r *benchmark.Result) error {
	f.results = append(f.results, r)
	return nil
}
func (f *fakeResults) RecentResults(ctx context.Context, promptID string, n int, excludeSim bool) ([]*benchmark.Result, error) {
	var out []*benchmark.Result
	for i := len(f.results) - 1; i >= 0 && len(out) < n; i-- {
		if excludeSim && f.results[i].Environment == "simulation" {
			continue
		}
		out = append(out, f.results[i])
	}
	return out, nil
}
func (f *fakeResults) History(ctx context.Context, promptID string, limit int) ([]*benchmark.Result, error) {
	return f.results, nil
}
func (f *fakeResults) ResultsSince(ctx context.Context, promptID string, since int64) ([]*benchmark.Result, error) {
	return f.results, nil
}
func (f *fakeResults) LatestResult(ctx context.Context, promptID string) (*benchmark.Result, error) {
	if len(f.results) == 0 {
		return nil, nil
	}
	return f.results[len(f.results)-1], nil
}

type fixedEvaluator struct {
	scores []float64
	i      int
}

func (e *fixedEvaluator) Evaluate(ctx context.Context, req benchmark.EvaluateRequest) (*benchmark.EvaluateResponse, error) {
	score := e.scores[e.i] // wire scale, 0-100 per spec.md §6
	e.i++
	return &benchmark.EvaluateResponse{
		OverallScore:    score,
		DimensionScores: map[string]float64{"quality": score, "safety": score, "performance": score, "clarity": score},
		ModelVersion:    "m1",
		ExecutionTimeMS: 100,
	}, nil
}

// TestRegressionDetection implements spec.md scenario S2: score 82 then 70
// against a regressionPct of 5 flags a regression (70 < 82*0.95=77.9).
func TestRegressionDetection(t *testing.T) {
	ctx := context.Background()
	prompts := &fakePrompts{prompt: &store.Prompt{ID: "p1", Version: "1.0.0", Fingerprint: "f1", Kind: store.KindUserTemplate}}
	results := &fakeResults{}
	eval := &fixedEvaluator{scores: []float64{82, 82, 82, 82, 82, 70}}

	o := benchmark.New(prompts, results, eval, nil, benchmark.Config{RegressionPct: 5})

	for i := 0; i < 5; i++ {
		_, err := o.RunBenchmark(ctx, "p1", "default")
		require.NoError(t, err)
	}

	final, err := o.RunBenchmark(ctx, "p1", "default")
	require.NoError(t, err)
	require.True(t, final.IsRegression, "expected regression when score drops from 0.82 to 0.70")
}

func TestRunBenchmarkFallsBackToSimulationWithoutEvaluator(t *testing.T) {
	ctx := context.Background()
	prompts := &fakePrompts{prompt: &store.Prompt{ID: "p1", Version: "1.0.0", Fingerprint: "f1", Kind: store.KindUserTemplate}}
	results := &fakeResults{}
	o := benchmark.New(prompts, results, nil, nil, benchmark.Config{})

	r, err := o.RunBenchmark(ctx, "p1", "default")
	require.NoError(t, err)
	require.Equal(t, "simulation", r.Environment)
}

type countingCritique struct {
	calls int
}

func (c *countingCritique) Analyze(ctx context.Context, req benchmark.AnalyzeRequest) (*benchmark.CritiqueReport, error) {
	c.calls++
	return &benchmark.CritiqueReport{Assessment: "ok", QualityScore: 0.8}, nil
}

func (c *countingCritique) ApplySuggestion(ctx context.Context, content string, s benchmark.Suggestion) (string, error) {
	return content, nil
}

// TestRunSelfCritiqueCachesPerVersion asserts that two calls for the same
// promptID/version/depth only pay the remote critique cost once, since a
// version's content can't change underneath the cache key.
func TestRunSelfCritiqueCachesPerVersion(t *testing.T) {
	ctx := context.Background()
	prompts := &fakePrompts{prompt: &store.Prompt{ID: "p1", Version: "1.0.0", Fingerprint: "f1", Kind: store.KindUserTemplate}}
	results := &fakeResults{}
	critique := &countingCritique{}
	o := benchmark.New(prompts, results, nil, critique, benchmark.Config{})

	_, err := o.RunSelfCritique(ctx, "p1", "standard")
	require.NoError(t, err)
	_, err = o.RunSelfCritique(ctx, "p1", "standard")
	require.NoError(t, err)

	require.Equal(t, 1, critique.calls, "second call should be served from cache")
}

func TestRunBatchOmitsFailedEntriesWithoutAbortingSiblings(t *testing.T) {
	ctx := context.Background()
	prompts := &fakePrompts{prompt: &store.Prompt{ID: "p1", Version: "1.0.0", Fingerprint: "f1", Kind: store.KindUserTemplate}}
	results := &fakeResults{}
	o := benchmark.New(prompts, results, nil, nil, benchmark.Config{MaxConcurrentRuns: 2})

	entries := []benchmark.BatchEntry{
		{PromptID: "p1", SuiteID: "default"},
		{PromptID: "p1", SuiteID: "bogus-suite"},
		{PromptID: "p1", SuiteID: "safety"},
	}
	outcomes := o.RunBatch(ctx, entries)
	require.Len(t, outcomes, 3)

	var failures, successes int
	for _, o := range outcomes {
		if o.Err != nil {
			failures++
		} else {
			successes++
		}
	}
	require.Equal(t, 1, failures)
	require.Equal(t, 2, successes)
}
