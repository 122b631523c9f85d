// Kestrel - Supervised fraud scoring for payment transactions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/history"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := loadConfig()

	slog.Info("configuration loaded",
		"history", cfg.History.Backend,
		"eventbus", cfg.EventBus.Type,
		"model", cfg.ModelPath,
		"threshold", cfg.AlertThreshold,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "train":
		err = runTrain(ctx, cfg)
	case "score":
		err = runScore(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		slog.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

// loadConfig builds the runtime configuration from defaults plus
// KESTREL_* environment overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("KESTREL_MODE") == "durable" {
		cfg = domain.DurableConfig()
		slog.Info("running in durable mode")
	}

	if v := os.Getenv("KESTREL_DATA"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("KESTREL_MODEL"); v != "" {
		cfg.ModelPath = v
	}
	if v := os.Getenv("KESTREL_THRESHOLD"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || t > 1 {
			slog.Warn("ignoring invalid KESTREL_THRESHOLD", "value", v)
		} else {
			cfg.AlertThreshold = t
		}
	}
	if v := os.Getenv("KESTREL_HISTORY"); v != "" {
		cfg.History.Backend = v
	}
	if v := os.Getenv("KESTREL_SQLITE_PATH"); v != "" {
		cfg.History.SQLitePath = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.Type = "nats"
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("KESTREL_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Training.Seed = seed
		}
	}
	return cfg
}

// runTrain loads the labeled dataset, trains the pipeline, prints the
// held-out evaluation, and persists the artifact only on success.
func runTrain(ctx context.Context, cfg *domain.Config) error {
	records, err := dataset.LoadCSV(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.Info("dataset loaded", "path", cfg.DataPath, "rows", len(records))

	store, err := history.New(domain.HistoryConfig{Backend: "memory"})
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	defer store.Close()

	trainer := pipeline.NewTrainer(feature.NewEngine(store), cfg.Training)
	fitted, eval, err := trainer.Train(ctx, records)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	fmt.Println(eval.Report())

	if err := artifact.Save(fitted, cfg.ModelPath); err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	slog.Info("artifact saved",
		"path", cfg.ModelPath,
		"train_rows", fitted.TrainRows,
		"test_rows", fitted.TestRows,
		"fraud_recall", eval.Recall,
	)

	announceTraining(ctx, cfg, fitted.TrainRows, fitted.TestRows, eval.Recall)
	return nil
}

// announceTraining publishes a training-completed event. Best effort: a
// bus failure does not fail the training run.
func announceTraining(ctx context.Context, cfg *domain.Config, trainRows, testRows int, recall float64) {
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Warn("skipping training event, event bus unavailable", "error", err)
		return
	}
	defer busImpl.Close()

	payload, err := json.Marshal(map[string]any{
		"modelPath": cfg.ModelPath,
		"trainRows": trainRows,
		"testRows":  testRows,
		"recall":    recall,
	})
	if err != nil {
		slog.Warn("failed to marshal training event", "error", err)
		return
	}
	if err := busImpl.Publish(ctx, domain.TopicTrainingCompleted, payload); err != nil {
		slog.Warn("failed to publish training event", "error", err)
	}
}

// runScore loads the fitted artifact and scores JSON transaction records
// from stdin, one object per line, printing one result per line.
func runScore(ctx context.Context, cfg *domain.Config) error {
	fitted, err := artifact.Load(cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to load artifact: %w", err)
	}
	slog.Info("artifact loaded", "path", cfg.ModelPath, "trained_at", fitted.TrainedAt)

	store, err := history.New(cfg.History)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	defer store.Close()
	slog.Info("history store initialized", "backend", cfg.History.Backend)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	guard, err := rules.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize guard rules: %w", err)
	}
	if err := loadGuardRules(guard); err != nil {
		return err
	}
	slog.Info("guard rules initialized", "rules_count", guard.RulesCount())

	svc, err := scoring.NewService(fitted, feature.NewEngine(store), guard, busImpl, cfg.AlertThreshold)
	if err != nil {
		return fmt.Errorf("failed to initialize scoring service: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			slog.Info("shutting down...")
			return nil
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed input line", "error", err)
			continue
		}

		result, err := svc.Score(ctx, rec)
		if err != nil {
			slog.Warn("scoring failed", "tx_id", result.TxID, "error", err)
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return scanner.Err()
}

// loadGuardRules loads rules from the JSON file named by KESTREL_RULES.
// No hardcoded defaults - an unset variable means no guard rules.
func loadGuardRules(engine *rules.Engine) error {
	path := os.Getenv("KESTREL_RULES")
	if path == "" {
		slog.Info("no guard rules configured - set KESTREL_RULES to load a rules file")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	var ruleSet []rules.GuardRule
	if err := json.Unmarshal(data, &ruleSet); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	slog.Info("loading guard rules", "path", path, "count", len(ruleSet))
	return engine.LoadRules(ruleSet)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: kestrel <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  train   Train the fraud pipeline from KESTREL_DATA and save the artifact")
	fmt.Fprintln(os.Stderr, "  score   Score JSON transactions from stdin against the saved artifact")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  KESTREL_DATA         Training dataset CSV path")
	fmt.Fprintln(os.Stderr, "  KESTREL_MODEL        Artifact path")
	fmt.Fprintln(os.Stderr, "  KESTREL_THRESHOLD    Alert threshold in [0,1]")
	fmt.Fprintln(os.Stderr, "  KESTREL_MODE         Set to 'durable' for SQLite history + NATS alerts")
	fmt.Fprintln(os.Stderr, "  KESTREL_HISTORY      History backend: memory, sqlite, postgres, redis")
	fmt.Fprintln(os.Stderr, "  KESTREL_RULES        Guard rules JSON file")
	fmt.Fprintln(os.Stderr, "  KESTREL_DEBUG        Set to 'true' for debug logging")
}
