// Command hermesd runs the Hermes prompt lifecycle platform's always-on
// half: the Improvement Agent's cycle loop (spec §4.5). There is no
// business CLI here (spec.md explicitly excludes one) — hermesd starts
// the agent, waits for a termination signal, and shuts down.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/hermes/agent"
	"github.com/hrygo/hermes/benchmark"
	"github.com/hrygo/hermes/experiment"
	experimentsql "github.com/hrygo/hermes/experiment/sqlstore"
	"github.com/hrygo/hermes/gate"
	"github.com/hrygo/hermes/internal/config"
	"github.com/hrygo/hermes/internal/notify"
	"github.com/hrygo/hermes/internal/version"
	"github.com/hrygo/hermes/store"
	"github.com/hrygo/hermes/store/db"
	benchmarksql "github.com/hrygo/hermes/benchmark/sqlstore"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// shutdownGrace bounds how long hermesd waits for an in-flight agent
// cycle to finish before exiting anyway (spec §5: "in-flight tasks are
// given a grace period (default 5s) before the process exits").
const shutdownGrace = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "hermesd",
	Short: `Hermes: a prompt lifecycle platform that versions, benchmarks, gates, and auto-improves LLM prompts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		profile := config.FromEnv()
		bindViperOverrides(profile)
		if err := profile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := buildAgent(ctx, profile)
		if err != nil {
			slog.Error("failed to build agent", "error", err)
			os.Exit(1)
		}

		printGreetings(profile)

		c := make(chan os.Signal, 1)
		signal.Notify(c, terminationSignals...)

		go a.Start(ctx)

		<-c
		slog.Info("shutdown signal received, stopping agent")
		a.Stop(shutdownGrace)
		cancel()
	},
}

// buildAgent wires C1-C5 together: store.Store, benchmark.Orchestrator,
// gate.Evaluator, experiment.Controller, and finally agent.Agent. This is
// the composition root — no other package in the module imports this one.
func buildAgent(ctx context.Context, profile *config.Profile) (*agent.Agent, error) {
	sqlDB, dialect, err := openDB(profile)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	promptDriver := db.New(sqlDB, dialect)
	if err := promptDriver.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate prompt schema: %w", err)
	}

	benchmarkDriver, err := benchmarksql.New(ctx, sqlDB, dialect)
	if err != nil {
		return nil, fmt.Errorf("migrate benchmark schema: %w", err)
	}

	experimentDriver, err := experimentsql.New(ctx, sqlDB, dialect)
	if err != nil {
		return nil, fmt.Errorf("migrate experiment schema: %w", err)
	}

	var orch *benchmark.Orchestrator
	promptStore := store.New(promptDriver, func(promptID, changeSummary, authorID string) {
		orch.TriggerAutoBenchmark(context.Background(), promptID, changeSummary, authorID)
	})

	var evaluator benchmark.Evaluator
	var critique benchmark.Critique
	if !profile.SimulationOnly && profile.EvaluatorBaseURL != "" {
		evaluator = benchmark.NewHTTPEvaluator(profile.EvaluatorBaseURL, profile.EvaluatorAPIKey, profile.EvaluatorTimeout)
	}
	if profile.CritiqueBaseURL != "" {
		critique = benchmark.NewHTTPCritique(profile.CritiqueBaseURL, profile.CritiqueAPIKey, profile.CritiqueTimeout)
	}

	orch = benchmark.New(promptStore, benchmarkDriver, evaluator, critique, benchmark.Config{
		RegressionPct:     profile.RegressionPct,
		RetryAttempts:     profile.EvaluatorRetryAttempts,
		EvaluatorQPS:      5,
		MaxConcurrentRuns: int64(profile.MaxConcurrentTasks),
	})

	customGates, err := gate.NewCustomRegistry()
	if err != nil {
		return nil, fmt.Errorf("build custom gate registry: %w", err)
	}
	gateEvaluator := gate.New(benchmarkDriver, customGates)

	experimentController := experiment.New(experimentDriver, promptStore)

	var notifier agent.Notifier = notify.NoopClient{}
	if profile.NotifyTelegramToken != "" && profile.NotifyTelegramChatID != 0 {
		tg, err := notify.NewTelegramClient(profile.NotifyTelegramToken, profile.NotifyTelegramChatID)
		if err != nil {
			slog.Warn("telegram notifier unavailable, falling back to no-op", "error", err)
		} else {
			notifier = tg
		}
	}

	cfg := agent.DefaultConfig()
	cfg.CycleIntervalMinutes = profile.CycleIntervalMinutes
	cfg.MaxConcurrentTasks = int64(profile.MaxConcurrentTasks)
	cfg.StaleBenchmarkHours = profile.StaleBenchmarkHours
	cfg.HighConfidenceThreshold = profile.HighConfidenceThreshold
	cfg.MinImprovementThreshold = profile.MinImprovementThreshold
	cfg.AutoFixRegressions = profile.AutoFixRegressions
	cfg.AutoApplyHighConfidence = profile.AutoApplyHighConfidence
	cfg.LearningEnabled = profile.LearningEnabled

	a := agent.New(promptStore, orch, gateEvaluator, notifier, cfg)
	a.SetExperiments(experimentController)
	return a, nil
}

func openDB(profile *config.Profile) (*sql.DB, db.Dialect, error) {
	switch profile.Driver {
	case "postgres":
		sqlDB, err := sql.Open("postgres", profile.DSN)
		if err != nil {
			return nil, nil, err
		}
		return sqlDB, db.Postgres, nil
	default:
		dsn := profile.DSN
		if !strings.Contains(dsn, "_loc=") && dsn != ":memory:" {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_loc=auto"
		}
		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return sqlDB, db.SQLite, nil
	}
}

func init() {
	rootCmd.PersistentFlags().String("mode", "demo", `mode of service, can be "prod", "dev", or "demo"`)
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "hermes.db", "database source name")
	rootCmd.PersistentFlags().Int("cycle-interval-minutes", 15, "improvement agent cycle interval")

	for _, flag := range []string{"mode", "driver", "dsn", "cycle-interval-minutes"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("hermes")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// bindViperOverrides lets --flags/env (via viper) override the
// config.Profile loaded directly from os.Getenv, so cobra flags keep
// working without config needing to depend on viper itself.
func bindViperOverrides(profile *config.Profile) {
	if v := viper.GetString("mode"); v != "" {
		profile.Mode = v
	}
	if v := viper.GetString("driver"); v != "" {
		profile.Driver = v
	}
	if v := viper.GetString("dsn"); v != "" {
		profile.DSN = v
	}
	if v := viper.GetInt("cycle-interval-minutes"); v != 0 {
		profile.CycleIntervalMinutes = v
	}
}

func printGreetings(profile *config.Profile) {
	fmt.Printf("Hermes %s started successfully!\n", version.GetCurrentVersion(profile.Mode))
	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	if profile.SimulationOnly {
		fmt.Println("Evaluator: simulation mode (forced, or no HERMES_EVALUATOR_BASE_URL configured)")
	} else {
		fmt.Printf("Evaluator: %s\n", profile.EvaluatorBaseURL)
	}
	fmt.Printf("Agent cycle interval: %d minute(s)\n", profile.CycleIntervalMinutes)
	fmt.Println("\nHermes is tending your prompts.")
}

func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("hermesd exited with error", "error", err)
		os.Exit(1)
	}
}
