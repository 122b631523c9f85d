// Benchmark tool for exercising the Kestrel pipeline end to end.
//
// Usage:
//   go run cmd/benchmark/main.go [-n 5000] [-fraud 0.02] [-threshold 0.85]
//
// This tool:
//   1. Generates a labeled synthetic transaction stream
//   2. Trains the pipeline and prints the held-out evaluation
//   3. Replays a fresh stream through the scoring service sequentially
//   4. Compares alerts with actual fraud labels and reports throughput
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/history"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Metrics tracks scoring results against the known labels.
type Metrics struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int

	TotalProcessed int
	TotalFraud     int
	TotalErrors    int
}

func main() {
	n := flag.Int("n", 5000, "Number of synthetic transactions per phase")
	fraudRate := flag.Float64("fraud", 0.02, "Fraud rate for the synthetic stream")
	threshold := flag.Float64("threshold", 0.85, "Alert threshold")
	seed := flag.Int64("seed", 42, "Random seed")
	verbose := flag.Bool("verbose", false, "Print each scored transaction")
	flag.Parse()

	// Keep structured logs out of the report.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           KESTREL BENCHMARK - Synthetic Fraud Stream          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nTransactions: %d per phase\n", *n)
	fmt.Printf("Fraud Rate:   %.2f%%\n", *fraudRate*100)
	fmt.Printf("Threshold:    %.2f\n", *threshold)
	fmt.Printf("Seed:         %d\n", *seed)

	ctx := context.Background()

	// Phase 1: train.
	fmt.Printf("\nGenerating %d training transactions...\n", *n)
	trainTxs := dataset.GenerateSynthetic(*n, *fraudRate, *seed)

	trainStore, err := history.New(domain.HistoryConfig{Backend: "memory"})
	if err != nil {
		fatal("failed to initialize history store", err)
	}
	defer trainStore.Close()

	cfg := domain.DefaultConfig().Training
	cfg.Seed = *seed
	trainer := pipeline.NewTrainer(feature.NewEngine(trainStore), cfg)

	fmt.Println("Training pipeline...")
	start := time.Now()
	fitted, eval, err := trainer.Train(ctx, trainTxs)
	if err != nil {
		fatal("training failed", err)
	}
	fmt.Printf("✓ Trained in %v (train=%d test=%d)\n",
		time.Since(start).Round(time.Millisecond), fitted.TrainRows, fitted.TestRows)
	fmt.Println()
	fmt.Println(eval.Report())

	// Phase 2: score a fresh stream with its own history.
	fmt.Printf("Generating %d scoring transactions...\n", *n)
	scoreTxs := dataset.GenerateSynthetic(*n, *fraudRate, *seed+1)

	scoreStore, err := history.New(domain.HistoryConfig{Backend: "memory"})
	if err != nil {
		fatal("failed to initialize history store", err)
	}
	defer scoreStore.Close()

	busImpl, err := bus.New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 1000})
	if err != nil {
		fatal("failed to initialize event bus", err)
	}
	defer busImpl.Close()

	guard, err := rules.NewEngine()
	if err != nil {
		fatal("failed to initialize guard rules", err)
	}

	svc, err := scoring.NewService(fitted, feature.NewEngine(scoreStore), guard, busImpl, *threshold)
	if err != nil {
		fatal("failed to initialize scoring service", err)
	}

	fmt.Println("Scoring sequentially...")
	metrics := &Metrics{}
	start = time.Now()
	for _, tx := range scoreTxs {
		result, err := svc.ScoreTransaction(ctx, tx)
		metrics.TotalProcessed++
		if err != nil {
			metrics.TotalErrors++
			continue
		}
		if tx.IsFraud {
			metrics.TotalFraud++
		}

		switch {
		case result.Alert && tx.IsFraud:
			metrics.TruePositives++
		case result.Alert && !tx.IsFraud:
			metrics.FalsePositives++
		case !result.Alert && !tx.IsFraud:
			metrics.TrueNegatives++
		default:
			metrics.FalseNegatives++
		}

		if *verbose {
			status := "✓"
			if result.Alert != tx.IsFraud {
				status = "✗"
			}
			fmt.Printf("%s %-9s | Amount: $%9.2f | Fraud: %-5v | Alert: %-5v (%.3f)\n",
				status, tx.ID, tx.Amount, tx.IsFraud, result.Alert, result.Probability)
		}
	}
	duration := time.Since(start)

	printResults(metrics, duration)
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 STREAM STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalProcessed-m.TotalErrors-m.TotalFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                       Predicted")
	fmt.Println("                   ALERT       PASS")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of alerts, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(duration.Milliseconds()) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f tx/sec\n", tps)
	}
	fmt.Println()
}

func fatal(msg string, err error) {
	fmt.Printf("ERROR: %s: %v\n", msg, err)
	os.Exit(1)
}
