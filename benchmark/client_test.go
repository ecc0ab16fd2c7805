package benchmark_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/internal/herrors"
)

func TestHTTPEvaluatorEvaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/benchmarks/run", r.URL.Path)
		var req benchmark.EvaluateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "p1", req.PromptID)

		resp := benchmark.EvaluateResponse{
			ID:              "r1",
			OverallScore:    0.82,
			DimensionScores: map[string]float64{"quality": 0.9},
			Environment:     "production",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	ev := benchmark.NewHTTPEvaluator(srv.URL, "key", 5*time.Second)
	resp, err := ev.Evaluate(context.Background(), benchmark.EvaluateRequest{PromptID: "p1", SuiteID: "default"})
	require.NoError(t, err)
	require.Equal(t, 0.82, resp.OverallScore)
}

func TestHTTPEvaluatorServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ev := benchmark.NewHTTPEvaluator(srv.URL, "", time.Second)
	_, err := ev.Evaluate(context.Background(), benchmark.EvaluateRequest{PromptID: "p1"})
	require.Error(t, err)
	require.True(t, herrors.Is(err, herrors.Transient))
}
