package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/experiment"
	"github.com/hrygo/hermes/gate"
	"github.com/hrygo/hermes/store"
)

// PromptStore is the narrow slice of store.Store the Agent needs.
type PromptStore interface {
	List(ctx context.Context, filter store.ListFilter) (store.ListResult, error)
	GetByID(ctx context.Context, id string) (*store.Prompt, error)
	ListVersions(ctx context.Context, promptID string, limit, offset int) ([]*store.PromptVersion, error)
	Update(ctx context.Context, p store.UpdateParams) (*store.Prompt, error)
	Rollback(ctx context.Context, promptID, targetVersion, authorID string) (*store.Prompt, error)
}

// GateService is the narrow slice of gate.Evaluator the Agent needs.
type GateService interface {
	Evaluate(ctx context.Context, promptID, version string, gates []gate.Config) (*gate.Report, error)
}

// BenchmarkService is the narrow slice of benchmark.Orchestrator the Agent
// needs: running benchmarks, self-critique, and suggestion application, plus
// the latest-result lookup discovery uses to detect regressions.
type BenchmarkService interface {
	RunBenchmark(ctx context.Context, promptID, suiteID string) (*benchmark.Result, error)
	RunSelfCritique(ctx context.Context, promptID, depth string) (*benchmark.CritiqueReport, error)
	ApplySuggestion(ctx context.Context, promptID string, s benchmark.Suggestion) (string, error)
	LatestResult(ctx context.Context, promptID string) (*benchmark.Result, error)
	History(ctx context.Context, promptID string, limit int) ([]*benchmark.Result, error)
}

// Notifier is the narrow notification-client boundary (spec §6).
type Notifier interface {
	Notify(ctx context.Context, kind, title, body string, data map[string]string) error
}

// Experiments is the narrow slice of experiment.Controller the Agent
// needs for RUN_EXPERIMENT tasks: create a variant comparison and start
// it (spec §4.5: "create and start an experiment via C4").
type Experiments interface {
	Create(exp *experiment.Experiment) (*experiment.Experiment, error)
	Start(id string) (*experiment.Experiment, error)
}

// Agent implements C5: a long-running cooperative task driving discovery,
// prioritisation, and bounded concurrent execution on a periodic cycle
// (spec §4.5). Grounded on hermes_agent.py's HermesAgent class and on the
// teacher's dag_scheduler.go concurrency idiom.
type Agent struct {
	prompts     PromptStore
	benchmarks  BenchmarkService
	gates       GateService
	notifier    Notifier
	experiments Experiments

	mu      sync.RWMutex
	cfg     Config
	state   LifecycleState
	metrics Metrics
	startAt time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs an Agent. notifier may be nil (notifications are then
// logged only).
func New(prompts PromptStore, benchmarks BenchmarkService, gates GateService, notifier Notifier, cfg Config) *Agent {
	return &Agent{
		prompts:    prompts,
		benchmarks: benchmarks,
		gates:      gates,
		notifier:   notifier,
		cfg:        cfg,
		state:      StateIdle,
	}
}

// GetStatus returns a snapshot of the Agent's lifecycle state and metrics.
func (a *Agent) GetStatus() (LifecycleState, Metrics) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m := a.metrics
	if !a.startAt.IsZero() {
		m.UptimeSeconds = int64(time.Since(a.startAt).Seconds())
	}
	return a.state, m
}

// SetExperiments wires an Experiments service for RUN_EXPERIMENT tasks.
// Optional: left nil, RUN_EXPERIMENT tasks fail with a clear error instead
// of panicking.
func (a *Agent) SetExperiments(e Experiments) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.experiments = e
}

// UpdateConfig hot-reloads the Agent's runtime-mutable configuration
// (spec §4.5 "Configuration (all runtime-mutable)").
func (a *Agent) UpdateConfig(cfg Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

// Start begins the cycle loop, running until ctx is cancelled or Stop is
// called. It blocks; callers typically run it in its own goroutine.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	a.startAt = time.Now().UTC()
	a.state = StateMonitoring
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	defer close(a.doneCh)
	for {
		a.mu.RLock()
		interval := time.Duration(a.cfg.CycleIntervalMinutes) * time.Minute
		a.mu.RUnlock()
		if interval <= 0 {
			interval = 15 * time.Minute
		}

		a.runCycle(ctx)

		select {
		case <-ctx.Done():
			a.setState(StateStopped)
			return
		case <-a.stopCh:
			a.setState(StateStopped)
			return
		case <-time.After(interval):
			a.setState(StateMonitoring)
		}
	}
}

// Stop requests the cycle loop to exit after its current cycle, waiting up
// to grace for in-flight tasks (spec §5: "in-flight tasks are given a
// grace period (default 5s) before the process exits").
func (a *Agent) Stop(grace time.Duration) {
	a.mu.RLock()
	stopCh := a.stopCh
	doneCh := a.doneCh
	a.mu.RUnlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(grace):
	}
}

func (a *Agent) setState(s LifecycleState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// runCycle implements spec §4.5's four-step cycle. Discovery/analysis
// errors are logged and never abort the cycle (spec §7 propagation rule).
func (a *Agent) runCycle(ctx context.Context) {
	a.setState(StateAnalyzing)

	a.mu.RLock()
	cfg := a.cfg
	a.mu.RUnlock()

	listed, err := a.prompts.List(ctx, store.ListFilter{Limit: 100})
	if err != nil {
		slog.Error("agent discovery: list prompts failed", "error", err)
		return
	}

	tasks := prioritize(discoverTasks(ctx, listed.Items, a.benchmarks, cfg))

	a.mu.Lock()
	a.metrics.QueueDepth = len(tasks)
	a.mu.Unlock()

	a.setState(StateImproving)
	a.executeTasks(ctx, tasks, cfg)

	now := time.Now().UTC()
	a.mu.Lock()
	a.metrics.LastCycleAt = &now
	a.metrics.QueueDepth = 0
	a.mu.Unlock()

	a.setState(StateSleeping)
}
