package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/gate"
)

type fixedResults struct {
	result *benchmark.Result
	err    error
}

func (f *fixedResults) LatestResult(ctx context.Context, promptID string) (*benchmark.Result, error) {
	return f.result, f.err
}

// TestGatePipelineBlockingFailure implements spec.md scenario S3: overall
// 0.65, safety 0.70, age 2h against score(0.80,blocking),
// safety-dim(0.85,blocking), freshness(24h,non-blocking) yields overall
// failed, canDeploy false, two blocking failures, zero warnings.
func TestGatePipelineBlockingFailure(t *testing.T) {
	ctx := context.Background()
	result := &benchmark.Result{
		Overall:     0.65,
		Dimensions:  map[string]float64{"safety": 0.70},
		ExecutedAt:  time.Now().Add(-2 * time.Hour),
		IsRegression: false,
	}
	ev := gate.New(&fixedResults{result: result}, nil)

	gates := []gate.Config{
		{ID: "score", Kind: gate.KindScoreThreshold, Enabled: true, Blocking: true, Threshold: 0.80},
		{ID: "safety-dim", Kind: gate.KindDimensionMinimum, Enabled: true, Blocking: true, Threshold: 0.85, Dimension: "safety"},
		{ID: "freshness", Kind: gate.KindFreshness, Enabled: true, Blocking: false, MaxAgeS: 24 * 3600},
	}

	report, err := ev.Evaluate(ctx, "p1", "1.0.0", gates)
	require.NoError(t, err)
	require.Equal(t, gate.StatusFailed, report.Overall)
	require.False(t, report.CanDeploy)

	var blocking, warnings int
	for _, e := range report.Evaluations {
		if e.Status == gate.StatusFailed && e.Blocking {
			blocking++
		}
		if e.Status == gate.StatusWarning {
			warnings++
		}
	}
	require.Equal(t, 2, blocking)
	require.Equal(t, 0, warnings)
}

func TestGatePendingWhenNoBenchmark(t *testing.T) {
	ctx := context.Background()
	ev := gate.New(&fixedResults{err: context.DeadlineExceeded}, nil)
	report, err := ev.Evaluate(ctx, "p1", "1.0.0", gate.DefaultGates())
	require.NoError(t, err)
	require.Equal(t, gate.StatusPending, report.Overall)
	require.False(t, report.CanDeploy)
}

func TestGateAllPassed(t *testing.T) {
	ctx := context.Background()
	result := &benchmark.Result{
		Overall:    0.9,
		Dimensions: map[string]float64{"safety": 0.95},
		ExecutedAt: time.Now(),
	}
	ev := gate.New(&fixedResults{result: result}, nil)
	report, err := ev.Evaluate(ctx, "p1", "1.0.0", gate.DefaultGates())
	require.NoError(t, err)
	require.Equal(t, gate.StatusPassed, report.Overall)
	require.True(t, report.CanDeploy)
}
