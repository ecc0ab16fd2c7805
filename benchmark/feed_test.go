package benchmark_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/benchmark"
)

func TestTrendFeedRendersAtom(t *testing.T) {
	results := []*benchmark.Result{
		{ID: "r1", SuiteID: "default", Overall: 0.82, GatePassed: true, ExecutedAt: time.Now().UTC()},
		{ID: "r2", SuiteID: "default", Overall: 0.70, GatePassed: false, IsRegression: true, ExecutedAt: time.Now().UTC()},
	}
	atom, err := benchmark.TrendFeed("p1", "My Prompt", "https://hermes.local/prompts/p1/trend", results)
	require.NoError(t, err)
	require.Contains(t, atom, "My Prompt")
	require.Contains(t, atom, "r1")
	require.Contains(t, atom, "r2")
}
