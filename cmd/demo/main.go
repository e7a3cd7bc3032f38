// Demo: four scenarios exercising string search, structured context,
// recursive sub-queries, and variable-backed answers.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	rlm "github.com/Protocol-Lattice/go-rlm"
	"github.com/Protocol-Lattice/go-rlm/pkg/models"
)

func main() {
	if os.Getenv("OPENROUTER_API_KEY") == "" {
		log.Fatalf("OPENROUTER_API_KEY is not set")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	model := models.NewOpenRouterLLM("openai/gpt-4o-mini")
	engine, err := rlm.New(rlm.Options{
		Model:             model,
		MaxIterations:     12,
		MaxRecursiveDepth: 1,
		Logger:            logger,
	})
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	ctx := context.Background()

	runNeedle(ctx, engine)
	runReviews(ctx, engine)
	runLogs(ctx, engine)
	runSummaries(ctx, engine)
}

// A single fact buried in a long string context.
func runNeedle(ctx context.Context, engine *rlm.RLM) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "Entry %d: routine telemetry, nothing notable.\n", i)
	}
	sb.WriteString("Entry 500: Launch window confirmed for March 14 at 06:30 UTC.\n")
	for i := 501; i < 1000; i++ {
		fmt.Fprintf(&sb, "Entry %d: routine telemetry, nothing notable.\n", i)
	}

	report(engine.Completion(ctx, "When is the launch window?", sb.String()))
}

// Structured context: the model should compute over it rather than read it.
func runReviews(ctx context.Context, engine *rlm.RLM) {
	reviews := []map[string]any{
		{"product": "solar charger", "rating": 5, "text": "Charges fast even on cloudy days."},
		{"product": "solar charger", "rating": 3, "text": "Decent, but the cable is short."},
		{"product": "solar charger", "rating": 4, "text": "Good value for the price."},
	}
	report(engine.Completion(ctx, "What is the average rating, to one decimal place?", reviews))
}

// Log extraction with the re helper.
func runLogs(ctx context.Context, engine *rlm.RLM) {
	var sb strings.Builder
	levels := []string{"INFO", "DEBUG", "WARN", "ERROR"}
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&sb, "2026-08-27T10:%02d:%02d %s worker-%d heartbeat ok\n", i/60%60, i%60, levels[i%4], i%8)
	}
	report(engine.Completion(ctx, "How many ERROR lines are in the log?", sb.String()))
}

// Multi-document context that invites recursive sub-queries per chunk.
func runSummaries(ctx context.Context, engine *rlm.RLM) {
	docs := []string{
		"Q1 report: revenue grew 12% on strong subscription renewals. Churn fell to 2.1%.",
		"Q2 report: revenue flat; a pricing experiment depressed upgrades. Churn rose to 3.4%.",
		"Q3 report: revenue grew 8% after the pricing rollback. Enterprise deals doubled.",
	}
	report(engine.Completion(ctx, "Summarize the revenue trend across the three quarters in one sentence.", docs))
}

func report(result *rlm.Result, err error) {
	if err != nil {
		log.Fatalf("completion: %v", err)
	}
	fmt.Printf("Answer: %s\n", result.Answer)
	fmt.Printf("Iterations: %d, total model calls: %d, snippets run: %d\n\n",
		result.Iterations, result.TotalCalls, len(result.History))
}
