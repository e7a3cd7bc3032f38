package rlm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Protocol-Lattice/go-rlm/pkg/models"
)

func TestNewRequiresModel(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected an error without a primary model")
	}
}

func TestCompletionRejectsEmptyQuery(t *testing.T) {
	engine, err := New(Options{Model: models.NewDummyLLM()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := engine.Completion(context.Background(), "", "ctx"); err == nil {
		t.Fatalf("expected an error for an empty query")
	}
}

func TestCompletionImmediateFinal(t *testing.T) {
	engine, _ := New(Options{Model: models.NewDummyLLM("FINAL(42)")})
	result, err := engine.Completion(context.Background(), "what is the answer?", "irrelevant")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != "42" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if result.Iterations != 1 {
		t.Fatalf("expected one iteration, got %d", result.Iterations)
	}
	if result.TotalCalls != 1 {
		t.Fatalf("expected one model call, got %d", result.TotalCalls)
	}
	if len(result.History) != 0 {
		t.Fatalf("no snippets should have run")
	}
}

func TestCompletionCodeThenFinalVar(t *testing.T) {
	reviews := []map[string]any{
		{"rating": 5}, {"rating": 3}, {"rating": 4},
	}
	code := "```js\n" +
		"var total = 0;\n" +
		"for (var i = 0; i < len(context); i++) {\n" +
		"	total += context[i].rating;\n" +
		"}\n" +
		"var avg = (total / len(context)).toFixed(1);\n" +
		"result = avg;\n" +
		"```"
	engine, _ := New(Options{Model: models.NewDummyLLM(code, "FINAL_VAR(avg)")})

	result, err := engine.Completion(context.Background(), "average rating?", reviews)
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != "4.0" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if result.Iterations != 2 {
		t.Fatalf("expected two iterations, got %d", result.Iterations)
	}
	if len(result.History) != 1 || !result.History[0].Success {
		t.Fatalf("expected one successful snippet, got %+v", result.History)
	}

	// the execution result must have been fed back to the model
	var sawFeedback bool
	for _, msg := range result.Transcript {
		if msg.Role == models.RoleUser && strings.HasPrefix(msg.Content, "Execution result: ") {
			sawFeedback = true
		}
	}
	if !sawFeedback {
		t.Fatalf("execution feedback missing from transcript")
	}
}

func TestCompletionFinalVarMiss(t *testing.T) {
	engine, _ := New(Options{Model: models.NewDummyLLM("FINAL_VAR(ghost)")})
	result, err := engine.Completion(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != "<no such variable: ghost>" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
}

func TestCompletionNudgesOnPlainProse(t *testing.T) {
	engine, _ := New(Options{Model: models.NewDummyLLM(
		"Let me think about this for a moment.",
		"FINAL(done)",
	)})
	result, err := engine.Completion(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != "done" || result.Iterations != 2 {
		t.Fatalf("unexpected result: %q after %d iterations", result.Answer, result.Iterations)
	}
	var nudged bool
	for _, msg := range result.Transcript {
		if msg.Role == models.RoleUser && msg.Content == continueNudge {
			nudged = true
		}
	}
	if !nudged {
		t.Fatalf("expected a continue nudge in the transcript")
	}
}

func TestCompletionExhaustsIterationBudget(t *testing.T) {
	engine, _ := New(Options{
		Model:         models.NewDummyLLM("still thinking, no conclusion yet"),
		MaxIterations: 3,
	})
	result, err := engine.Completion(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != ExhaustedSentinel {
		t.Fatalf("expected the exhaustion sentinel, got %q", result.Answer)
	}
	if result.Iterations != 3 {
		t.Fatalf("expected 3 iterations, got %d", result.Iterations)
	}
	if result.TotalCalls != 3 {
		t.Fatalf("expected 3 model calls, got %d", result.TotalCalls)
	}
}

func TestCompletionFailedSnippetsAreRecoverable(t *testing.T) {
	engine, _ := New(Options{Model: models.NewDummyLLM(
		"```js\nnoSuchFunction();\n```",
		"```js\nresult = \"recovered\";\n```",
		"FINAL_VAR(result)",
	)})
	result, err := engine.Completion(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != "recovered" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if len(result.History) != 2 {
		t.Fatalf("expected 2 snippet records, got %d", len(result.History))
	}
	if result.History[0].Success || !result.History[1].Success {
		t.Fatalf("unexpected success flags: %+v", result.History)
	}
}

func TestCompletionRecursiveCallsCountTowardTotal(t *testing.T) {
	engine, _ := New(Options{
		Model: models.NewDummyLLM(
			"```js\nvar sub = recursive_lm(\"summarize chunk\", \"chunk text\");\nresult = sub;\n```",
			"FINAL_VAR(sub)",
		),
		RecursiveModel: models.NewDummyLLM("chunk summary"),
	})
	result, err := engine.Completion(context.Background(), "q", "long context")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != "chunk summary" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if result.TotalCalls != 3 {
		t.Fatalf("expected 2 primary + 1 recursive call, got %d", result.TotalCalls)
	}
}

func TestCompletionSubQueryAllowedUnderDepthCap(t *testing.T) {
	// The primary sandbox runs at depth 0, which a cap of 1 permits.
	engine, _ := New(Options{
		Model: models.NewDummyLLM(
			"```js\nresult = recursive_lm(\"q\");\n```",
			"FINAL_VAR(result)",
		),
		RecursiveModel:    models.NewDummyLLM("sub model reply"),
		MaxRecursiveDepth: 1,
	})
	result, err := engine.Completion(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != "sub model reply" {
		t.Fatalf("depth 0 sub-query should be allowed under a cap of 1, got %q", result.Answer)
	}
}

type failingModel struct{ err error }

func (m *failingModel) Chat(context.Context, []models.Message) (string, error) {
	return "", m.err
}

func TestCompletionPrimaryModelFailureIsFatal(t *testing.T) {
	transport := errors.New("bad gateway")
	engine, _ := New(Options{Model: &failingModel{err: transport}})
	_, err := engine.Completion(context.Background(), "q", "ctx")
	if !errors.Is(err, transport) {
		t.Fatalf("expected the transport error to propagate, got %v", err)
	}
	if !strings.Contains(err.Error(), "iteration 1") {
		t.Fatalf("error should name the iteration: %v", err)
	}
}

func TestCompletionRecursiveModelFailureIsFatal(t *testing.T) {
	transport := errors.New("connection reset")
	engine, _ := New(Options{
		Model:          models.NewDummyLLM("```js\nresult = recursive_lm(\"q\");\n```"),
		RecursiveModel: &failingModel{err: transport},
	})
	_, err := engine.Completion(context.Background(), "q", "ctx")
	if !errors.Is(err, transport) {
		t.Fatalf("expected the recursive transport error to propagate, got %v", err)
	}
}

func TestCompletionRunsAreIsolated(t *testing.T) {
	engine, _ := New(Options{Model: models.NewDummyLLM("FINAL_VAR(leftover)")})

	seed, _ := New(Options{Model: models.NewDummyLLM(
		"```js\nvar leftover = \"from the first run\";\n```",
		"FINAL(done)",
	)})
	if _, err := seed.Completion(context.Background(), "q", "ctx"); err != nil {
		t.Fatalf("seed completion: %v", err)
	}

	result, err := engine.Completion(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if result.Answer != "<no such variable: leftover>" {
		t.Fatalf("state leaked across completions: %q", result.Answer)
	}
}

func TestCompletionSystemPromptDescribesContext(t *testing.T) {
	engine, _ := New(Options{Model: models.NewDummyLLM("FINAL(ok)"), MaxIterations: 7})
	result, err := engine.Completion(context.Background(), "q", "some context text")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	system := result.Transcript[0]
	if system.Role != models.RoleSystem {
		t.Fatalf("transcript must start with the system prompt")
	}
	for _, want := range []string{"Type: string", "Size: 17", "some context text", "7 iterations"} {
		if !strings.Contains(system.Content, want) {
			t.Fatalf("system prompt missing %q", want)
		}
	}
	if result.Transcript[1].Content != "Query: q" {
		t.Fatalf("unexpected first user turn: %q", result.Transcript[1].Content)
	}
}
