// Package config holds Hermes's runtime configuration, grounded on the
// teacher's internal/profile.Profile: a flat struct populated from
// environment variables with provider-aware defaults, validated once at
// startup.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration needed to start the Hermes improvement
// agent and its dependent services.
type Profile struct {
	Mode string // "dev", "demo", "prod"

	// Persistence
	Driver string // "sqlite" or "postgres"
	DSN    string

	// Evaluator (ATE) remote client
	EvaluatorBaseURL string
	EvaluatorAPIKey  string
	EvaluatorTimeout time.Duration
	SimulationOnly   bool // force simulation mode even if EvaluatorBaseURL is set

	// Critique (ASRBS) remote client
	CritiqueBaseURL string
	CritiqueAPIKey  string
	CritiqueTimeout time.Duration

	// Notifications (Beeper)
	NotifyTelegramToken  string
	NotifyTelegramChatID int64
	NotifyTimeout        time.Duration

	// Improvement Agent defaults (spec §4.5); all are runtime-mutable
	// thereafter via agent.Agent.UpdateConfig.
	CycleIntervalMinutes    int
	MaxConcurrentTasks      int
	StaleBenchmarkHours     int
	HighConfidenceThreshold float64
	MinImprovementThreshold float64
	AutoFixRegressions      bool
	AutoApplyHighConfidence bool
	LearningEnabled         bool

	// Benchmark Orchestrator defaults (spec §4.2)
	RegressionPct        float64
	DiscoverLimit         int
	EvaluatorRetryAttempts int
}

// FromEnv populates a Profile from environment variables, following the
// teacher's getEnvOrDefault idiom.
func FromEnv() *Profile {
	p := &Profile{
		Mode:   getEnvOrDefault("HERMES_MODE", "demo"),
		Driver: getEnvOrDefault("HERMES_DB_DRIVER", "sqlite"),
		DSN:    getEnvOrDefault("HERMES_DB_DSN", "hermes.db"),

		EvaluatorBaseURL: getEnvOrDefault("HERMES_EVALUATOR_BASE_URL", ""),
		EvaluatorAPIKey:  getEnvOrDefault("HERMES_EVALUATOR_API_KEY", ""),
		EvaluatorTimeout: getEnvOrDefaultSeconds("HERMES_EVALUATOR_TIMEOUT_SECONDS", 60),
		SimulationOnly:   getEnvOrDefault("HERMES_SIMULATION_ONLY", "false") == "true",

		CritiqueBaseURL: getEnvOrDefault("HERMES_CRITIQUE_BASE_URL", ""),
		CritiqueAPIKey:  getEnvOrDefault("HERMES_CRITIQUE_API_KEY", ""),
		CritiqueTimeout: getEnvOrDefaultSeconds("HERMES_CRITIQUE_TIMEOUT_SECONDS", 120),

		NotifyTelegramToken:  getEnvOrDefault("HERMES_NOTIFY_TELEGRAM_TOKEN", ""),
		NotifyTelegramChatID: getEnvOrDefaultInt64("HERMES_NOTIFY_TELEGRAM_CHAT_ID", 0),
		NotifyTimeout:        getEnvOrDefaultSeconds("HERMES_NOTIFY_TIMEOUT_SECONDS", 30),

		CycleIntervalMinutes:    getEnvOrDefaultInt("HERMES_AGENT_CYCLE_INTERVAL_MINUTES", 15),
		MaxConcurrentTasks:      getEnvOrDefaultInt("HERMES_AGENT_MAX_CONCURRENT_TASKS", 5),
		StaleBenchmarkHours:     getEnvOrDefaultInt("HERMES_AGENT_STALE_BENCHMARK_HOURS", 24),
		HighConfidenceThreshold: getEnvOrDefaultFloat("HERMES_AGENT_HIGH_CONFIDENCE_THRESHOLD", 0.9),
		MinImprovementThreshold: getEnvOrDefaultFloat("HERMES_AGENT_MIN_IMPROVEMENT_THRESHOLD", 2.0),
		AutoFixRegressions:      getEnvOrDefault("HERMES_AGENT_AUTO_FIX_REGRESSIONS", "true") == "true",
		AutoApplyHighConfidence: getEnvOrDefault("HERMES_AGENT_AUTO_APPLY_HIGH_CONFIDENCE", "true") == "true",
		LearningEnabled:         getEnvOrDefault("HERMES_AGENT_LEARNING_ENABLED", "true") == "true",

		RegressionPct:          getEnvOrDefaultFloat("HERMES_BENCHMARK_REGRESSION_PCT", 5.0),
		DiscoverLimit:          getEnvOrDefaultInt("HERMES_AGENT_DISCOVER_LIMIT", 100),
		EvaluatorRetryAttempts: getEnvOrDefaultInt("HERMES_EVALUATOR_RETRY_ATTEMPTS", 3),
	}
	return p
}

// Validate checks the profile for internal consistency, following the
// teacher's Profile.Validate fail-fast style.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported db driver %q", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("db dsn must not be empty")
	}
	if p.MaxConcurrentTasks <= 0 {
		return errors.New("agent max concurrent tasks must be positive")
	}
	if p.CycleIntervalMinutes <= 0 {
		return errors.New("agent cycle interval must be positive")
	}
	if !p.SimulationOnly && p.EvaluatorBaseURL == "" {
		// Not an error: no evaluator configured simply means every benchmark
		// runs in simulation mode (spec §4.2).
		p.SimulationOnly = true
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvOrDefaultSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(getEnvOrDefaultInt(key, defSeconds)) * time.Second
}
