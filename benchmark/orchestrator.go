// Package benchmark implements C2, the Benchmark Orchestrator.
package benchmark

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/hermes/internal/herrors"
	"github.com/hrygo/hermes/store"
	"github.com/hrygo/hermes/store/cache"
)

// PromptLookup is the narrow slice of store.Store the Orchestrator needs:
// read access to prompt heads plus the advisory benchmark-cache update.
// Kept as an interface (rather than importing *store.Store directly
// everywhere) so tests can fake it without a real driver.
type PromptLookup interface {
	GetByID(ctx context.Context, id string) (*store.Prompt, error)
	UpdateBenchmarkCache(ctx context.Context, promptID string, score float64, at time.Time)
}

// Orchestrator implements spec §4.2: runBenchmark, runBatch,
// triggerAutoBenchmark, history, trends, runSelfCritique, compareVersions.
type Orchestrator struct {
	prompts   PromptLookup
	results   Driver
	evaluator Evaluator
	critique  Critique
	retry     *retryPolicy
	sem       *semaphore.Weighted
	suites    *cache.SuiteCache[Suite]
	critiques *cache.SuiteCache[*CritiqueReport]

	regressionPct float64
}

// Config bundles the Orchestrator's tunables, grounded on internal/config.Profile.
type Config struct {
	RegressionPct     float64
	RetryAttempts     int
	EvaluatorQPS      float64
	MaxConcurrentRuns int64
}

// New constructs an Orchestrator. evaluator may be nil, in which case every
// run falls back to simulation mode (spec §6).
func New(prompts PromptLookup, results Driver, evaluator Evaluator, critique Critique, cfg Config) *Orchestrator {
	if cfg.RegressionPct <= 0 {
		cfg.RegressionPct = 5.0
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 5
	}
	suites := cache.New[Suite](time.Hour)
	for id, s := range StandardSuites() {
		suites.Set(id, s)
	}
	return &Orchestrator{
		prompts:       prompts,
		results:       results,
		evaluator:     evaluator,
		critique:      critique,
		retry:         newRetryPolicy(cfg.RetryAttempts, cfg.EvaluatorQPS),
		sem:           semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		suites:        suites,
		critiques:     cache.New[*CritiqueReport](10 * time.Minute),
		regressionPct: cfg.RegressionPct,
	}
}

// RunBenchmark implements spec §4.2 runBenchmark: evaluate a prompt against
// a suite, compute baseline/delta/regression against trailing history, and
// persist the result.
func (o *Orchestrator) RunBenchmark(ctx context.Context, promptID, suiteID string) (*Result, error) {
	p, err := o.prompts.GetByID(ctx, promptID)
	if err != nil {
		return nil, err
	}
	suite, ok := o.suites.Get(suiteID)
	if !ok {
		suite, ok = StandardSuites()[suiteID]
		if !ok {
			return nil, herrors.Invalidf("unknown suite %q", suiteID)
		}
		o.suites.Set(suiteID, suite)
	}

	var result *Result
	if o.evaluator == nil {
		result = Simulate(p.ID, p.Version, p.Fingerprint, suiteID, suite)
	} else {
		resp, err := o.evaluate(ctx, p, suite, suiteID)
		if err != nil {
			return nil, err
		}
		result = toResult(p, suiteID, suite, resp)
	}
	result.ID = uuid.NewString()
	result.ExecutorID = "orchestrator"

	prior, err := o.results.RecentResults(ctx, promptID, 5, true)
	if err != nil {
		return nil, err
	}
	applyBaseline(result, p.LastBenchmarkScore, prior, o.regressionPct)

	if err := o.results.InsertResult(ctx, result); err != nil {
		return nil, err
	}
	o.prompts.UpdateBenchmarkCache(ctx, promptID, result.Overall, result.ExecutedAt)

	if result.IsRegression {
		slog.Warn("benchmark regression detected", "prompt_id", promptID, "suite", suiteID, "overall", result.Overall)
	}
	return result, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, p *store.Prompt, suite Suite, suiteID string) (*EvaluateResponse, error) {
	var resp *EvaluateResponse
	err := o.retry.do(ctx, func(ctx context.Context) error {
		var evalErr error
		resp, evalErr = o.evaluator.Evaluate(ctx, EvaluateRequest{
			PromptContent:  p.Content,
			PromptID:       p.ID,
			PromptVersion:  p.Version,
			ContentHash:    p.Fingerprint,
			SuiteID:        suiteID,
			Dimensions:     suite.Dimensions,
			TimeoutSeconds: 60,
			GateThreshold:  suite.GateThreshold,
		})
		return evalErr
	})
	return resp, err
}

// toResult converts the evaluator's wire response (spec §6: scores 0-100)
// into a Result on this implementation's internal [0,1] fraction scale (see
// DESIGN.md's "Score scale" decision).
func toResult(p *store.Prompt, suiteID string, suite Suite, resp *EvaluateResponse) *Result {
	overall := resp.OverallScore / 100
	dims := make(map[string]float64, len(resp.DimensionScores))
	for k, v := range resp.DimensionScores {
		dims[k] = v / 100
	}
	return &Result{
		PromptID:        p.ID,
		Version:         p.Version,
		Fingerprint:     p.Fingerprint,
		SuiteID:         suiteID,
		Overall:         overall,
		Dimensions:      dims,
		ModelID:         suite.DefaultModel,
		ModelVersion:    resp.ModelVersion,
		ExecutionTimeMS: resp.ExecutionTimeMS,
		TokenUsage:      resp.TokenUsage,
		GateThreshold:   suite.GateThreshold,
		GatePassed:      overall >= suite.GateThreshold,
		ExecutedAt:      time.Now().UTC(),
		Environment:     "production",
		Error:           resp.Error,
	}
}

// applyBaseline sets result.Baseline/Delta from lastScore, the prompt's
// cached last benchmark score at call time (spec §3/§4.2: baseline ==
// Prompt.lastBenchmarkScore), leaving both nil when no score is cached. It
// marks IsRegression when the new overall falls below the trailing mean of
// prior (production-only) results by more than regressionPct — a distinct
// quantity from baseline, used only for the regression comparison.
func applyBaseline(result *Result, lastScore *float64, prior []*Result, regressionPct float64) {
	if lastScore != nil {
		baseline := *lastScore
		result.Baseline = &baseline
		delta := result.Overall - baseline
		result.Delta = &delta
	}
	if len(prior) == 0 {
		return
	}

	var sum float64
	for _, r := range prior {
		sum += r.Overall
	}
	mean := sum / float64(len(prior))
	result.IsRegression = result.Overall < mean*(1-regressionPct/100)
}

// BatchEntry is one unit of work for RunBatch.
type BatchEntry struct {
	PromptID string
	SuiteID  string
}

// BatchOutcome pairs an entry with its result or the error that omitted it.
type BatchOutcome struct {
	PromptID string
	SuiteID  string
	Result   *Result
	Err      error
}

// RunBatch implements spec §4.2 runBatch: bounded-concurrency fan-out where
// a single entry's failure is logged and omitted rather than aborting
// siblings, grounded on the teacher's dag_scheduler.go semaphore-channel
// pattern. errgroup's cancel-on-first-error is deliberately not used here.
func (o *Orchestrator) RunBatch(ctx context.Context, entries []BatchEntry) []BatchOutcome {
	outcomes := make([]BatchOutcome, len(entries))
	done := make(chan struct{})
	for i, e := range entries {
		i, e := i, e
		go func() {
			defer func() { done <- struct{}{} }()
			if err := o.sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = BatchOutcome{PromptID: e.PromptID, SuiteID: e.SuiteID, Err: err}
				return
			}
			defer o.sem.Release(1)

			r, err := o.RunBenchmark(ctx, e.PromptID, e.SuiteID)
			if err != nil {
				slog.Error("batch benchmark entry failed", "prompt_id", e.PromptID, "suite", e.SuiteID, "error", err)
			}
			outcomes[i] = BatchOutcome{PromptID: e.PromptID, SuiteID: e.SuiteID, Result: r, Err: err}
		}()
	}
	for range entries {
		<-done
	}
	return outcomes
}

// TriggerAutoBenchmark implements spec §4.2 triggerAutoBenchmark: called
// from store.AutoBenchmarkHook after a content-changing update. It picks
// the suite by the prompt's Kind (spec §6) and swallows errors beyond
// logging, since it runs detached from the caller's request.
func (o *Orchestrator) TriggerAutoBenchmark(ctx context.Context, promptID, changeSummary, authorID string) {
	p, err := o.prompts.GetByID(ctx, promptID)
	if err != nil {
		slog.Warn("auto-benchmark: prompt lookup failed", "prompt_id", promptID, "error", err)
		return
	}
	suiteID := SuiteForKind(string(p.Kind))
	if _, err := o.RunBenchmark(ctx, promptID, suiteID); err != nil {
		slog.Warn("auto-benchmark run failed", "prompt_id", promptID, "suite", suiteID, "error", err)
	}
}

// LatestResult exposes the most recent result for a prompt, used by C5's
// discovery step to check isRegression without duplicating persistence.
func (o *Orchestrator) LatestResult(ctx context.Context, promptID string) (*Result, error) {
	return o.results.LatestResult(ctx, promptID)
}

// History implements spec §4.2 history.
func (o *Orchestrator) History(ctx context.Context, promptID string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 50
	}
	return o.results.History(ctx, promptID, limit)
}

// Trends implements spec §4.2 trends: linear-regression slope over the
// window plus 7/30-day rolling averages and deltas.
func (o *Orchestrator) Trends(ctx context.Context, promptID string, windowDays int) (*Trends, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	since := time.Now().AddDate(0, 0, -windowDays).Unix()
	results, err := o.results.ResultsSince(ctx, promptID, since)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Trends{Direction: "stable"}, nil
	}

	slope := linearSlope(results)
	direction := "stable"
	switch {
	case slope > 0.001:
		direction = "improving"
	case slope < -0.001:
		direction = "declining"
	}

	now := time.Now().UTC()
	avg7 := avgSince(results, now.AddDate(0, 0, -7))
	avg30 := avgSince(results, now.AddDate(0, 0, -30))

	dimAvgs := map[string]float64{}
	dimCounts := map[string]int{}
	for _, r := range results {
		for k, v := range r.Dimensions {
			dimAvgs[k] += v
			dimCounts[k]++
		}
	}
	for k, c := range dimCounts {
		if c > 0 {
			dimAvgs[k] /= float64(c)
		}
	}

	return &Trends{
		Slope:             slope,
		Direction:         direction,
		Avg7Day:           avg7,
		Avg30Day:          avg30,
		Delta7Day:         results[len(results)-1].Overall - avg7,
		Delta30Day:        results[len(results)-1].Overall - avg30,
		DimensionAverages: dimAvgs,
		SampleCount:       len(results),
	}, nil
}

func avgSince(results []*Result, cutoff time.Time) float64 {
	var sum float64
	var n int
	for _, r := range results {
		if r.ExecutedAt.After(cutoff) {
			sum += r.Overall
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// linearSlope fits overall score against execution order via ordinary
// least squares, the textbook closed form (no stats library in the
// example pack, so this stays stdlib-only per DESIGN.md).
func linearSlope(results []*Result) float64 {
	n := float64(len(results))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, r := range results {
		x := float64(i)
		y := r.Overall
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// RunSelfCritique implements spec §4.2 runSelfCritique, delegating to the
// Critique client (ASRBS) and surfacing its report unchanged. Reports are
// cached per promptID+version+depth (a version's content never changes, per
// C1's fingerprint-versioning invariant, so a cached report never goes
// stale) to avoid re-paying a remote critique call when discovery and an
// operator both ask for the same version within the cache window.
func (o *Orchestrator) RunSelfCritique(ctx context.Context, promptID, depth string) (*CritiqueReport, error) {
	if o.critique == nil {
		return nil, herrors.Degradedf(nil, "no critique service configured")
	}
	p, err := o.prompts.GetByID(ctx, promptID)
	if err != nil {
		return nil, err
	}
	cacheKey := promptID + ":" + p.Version + ":" + depth
	if cached, ok := o.critiques.Get(cacheKey); ok {
		return cached, nil
	}
	report, err := o.critique.Analyze(ctx, AnalyzeRequest{
		PromptContent: p.Content,
		PromptID:      p.ID,
		PromptVersion: p.Version,
		PromptType:    string(p.Kind),
		AnalysisDepth: depth,
	})
	if err != nil {
		return nil, err
	}
	o.critiques.Set(cacheKey, report)
	return report, nil
}

// ApplySuggestion implements spec §4.5 safe suggestion application step 1:
// it asks the critique provider to produce new content for promptID given
// suggestion s, without persisting anything — the caller (the Agent) is
// responsible for pushing the result through the Store.
func (o *Orchestrator) ApplySuggestion(ctx context.Context, promptID string, s Suggestion) (string, error) {
	if o.critique == nil {
		return "", herrors.Degradedf(nil, "no critique service configured")
	}
	p, err := o.prompts.GetByID(ctx, promptID)
	if err != nil {
		return "", err
	}
	return o.critique.ApplySuggestion(ctx, p.Content, s)
}

// CompareVersions implements the SUPPLEMENTED compare_prompts read-only
// operation: the overall and per-dimension delta between two prompts'
// latest results.
func (o *Orchestrator) CompareVersions(ctx context.Context, promptAID, promptBID string) (*Comparison, error) {
	a, err := o.results.LatestResult(ctx, promptAID)
	if err != nil {
		return nil, err
	}
	b, err := o.results.LatestResult(ctx, promptBID)
	if err != nil {
		return nil, err
	}
	dimDeltas := make(map[string]float64, len(a.Dimensions))
	for k, av := range a.Dimensions {
		dimDeltas[k] = b.Dimensions[k] - av
	}
	return &Comparison{
		PromptAID:       promptAID,
		PromptBID:       promptBID,
		OverallDelta:    b.Overall - a.Overall,
		DimensionDeltas: dimDeltas,
	}, nil
}
