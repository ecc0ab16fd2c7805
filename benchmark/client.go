package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/hermes/internal/herrors"
)

// EvaluateRequest is the wire contract the Orchestrator sends to the
// external evaluator (ATE), per spec §6.
type EvaluateRequest struct {
	PromptContent   string   `json:"prompt_content"`
	PromptID        string   `json:"prompt_id"`
	PromptVersion   string   `json:"prompt_version"`
	ContentHash     string   `json:"content_hash"`
	SuiteID         string   `json:"suite_id"`
	ModelID         string   `json:"model_id"`
	Dimensions      []string `json:"dimensions"`
	TimeoutSeconds  int      `json:"timeout_seconds"`
	GateThreshold   float64  `json:"gate_threshold"`
	IncludeBaseline bool     `json:"include_baseline"`
}

// EvaluateResponse is the evaluator's reply, per spec §6.
type EvaluateResponse struct {
	ID              string             `json:"id"`
	OverallScore    float64            `json:"overall_score"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	TokenUsage      map[string]int     `json:"token_usage"`
	ModelVersion    string             `json:"model_version"`
	ExecutionTimeMS int64              `json:"execution_time_ms"`
	Environment     string             `json:"environment"`
	Error           string             `json:"error,omitempty"`
}

// Evaluator is the narrow interface the Orchestrator uses to invoke the
// external benchmark evaluator (spec §6). It is the only point of contact
// with that out-of-scope system.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error)
}

// AnalyzeRequest is the wire contract for /analyze (spec §6).
type AnalyzeRequest struct {
	PromptContent string `json:"prompt_content"`
	PromptID      string `json:"prompt_id"`
	PromptVersion string `json:"prompt_version"`
	PromptType    string `json:"prompt_type"`
	AnalysisDepth string `json:"analysis_depth"` // quick, standard, deep
}

// Critique is the narrow interface for the self-critique service (ASRBS).
type Critique interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*CritiqueReport, error)
	ApplySuggestion(ctx context.Context, content string, s Suggestion) (string, error)
}

// newHTTPClient builds a connection-pooled, timeout-bounded HTTP client,
// grounded on ai/llm.go's newHTTPClient() in the teacher repo (custom
// net.Dialer, MaxIdleConns, TLSHandshakeTimeout).
func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// HTTPEvaluator calls a remote evaluator over HTTP/JSON.
type HTTPEvaluator struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPEvaluator constructs a client for the remote evaluator at baseURL.
func NewHTTPEvaluator(baseURL, apiKey string, timeout time.Duration) *HTTPEvaluator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPEvaluator{baseURL: baseURL, apiKey: apiKey, client: newHTTPClient(timeout), timeout: timeout}
}

func (e *HTTPEvaluator) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, herrors.Invalidf("encode evaluate request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/benchmarks/run", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build evaluator request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, herrors.Transientf(err, "evaluator request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, herrors.Transientf(fmt.Errorf("status %d", resp.StatusCode), "evaluator returned server error")
	}
	if resp.StatusCode >= 400 {
		return nil, herrors.Invalidf("evaluator rejected request: status %d", resp.StatusCode)
	}

	var out EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, herrors.Transientf(err, "decode evaluator response")
	}
	return &out, nil
}

// HTTPCritique calls a remote self-critique service over HTTP/JSON.
type HTTPCritique struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPCritique constructs a client for the remote critique service.
func NewHTTPCritique(baseURL, apiKey string, timeout time.Duration) *HTTPCritique {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPCritique{baseURL: baseURL, apiKey: apiKey, client: newHTTPClient(timeout), timeout: timeout}
}

func (c *HTTPCritique) Analyze(ctx context.Context, req AnalyzeRequest) (*CritiqueReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, herrors.Invalidf("encode analyze request: %v", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build critique request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, herrors.Transientf(err, "critique request failed")
	}
	defer resp.Body.Close()

	var report CritiqueReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, herrors.Transientf(err, "decode critique response")
	}
	return &report, nil
}

func (c *HTTPCritique) ApplySuggestion(ctx context.Context, content string, s Suggestion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{"content": content, "suggestion_id": s.ID, "suggested_change": s.SuggestedChange})
	if err != nil {
		return "", herrors.Invalidf("encode apply-suggestion request: %v", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/apply-suggestion", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build apply-suggestion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", herrors.Transientf(err, "apply-suggestion request failed")
	}
	defer resp.Body.Close()

	var out struct {
		ModifiedContent string `json:"modified_content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", herrors.Transientf(err, "decode apply-suggestion response")
	}
	return out.ModifiedContent, nil
}
