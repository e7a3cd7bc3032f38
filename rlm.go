// Package rlm implements a recursive language model loop: a primary model
// iterates against a sandboxed script environment that holds an oversized
// context, writing snippets to inspect it and spawning depth-bounded
// sub-queries on chunks, until it emits a final answer.
package rlm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Protocol-Lattice/go-rlm/pkg/models"
)

// ExhaustedSentinel is returned as the answer when the iteration budget runs
// out before the model emits a final marker.
const ExhaustedSentinel = "No final answer provided within iteration limit"

// Options configures an RLM instance. Model is required; everything else has
// a usable default.
type Options struct {
	// Model answers the primary conversation.
	Model models.ChatModel

	// RecursiveModel answers sub-queries spawned from snippet code. Defaults
	// to Model.
	RecursiveModel models.ChatModel

	// MaxIterations caps primary model turns per completion.
	MaxIterations int

	// MaxRecursiveDepth caps sub-query nesting. The default of 1 allows one
	// level of recursive_lm calls.
	MaxRecursiveDepth int

	// ExecTimeout is the wall-clock cap per snippet.
	ExecTimeout time.Duration

	Logger *slog.Logger
}

// RLM runs completions. It is stateless across Completion calls; each call
// gets its own sandbox, budget, and transcript.
type RLM struct {
	model          models.ChatModel
	recursiveModel models.ChatModel
	maxIterations  int
	maxDepth       int
	execTimeout    time.Duration
	logger         *slog.Logger
}

// New validates opts and builds an RLM.
func New(opts Options) (*RLM, error) {
	if opts.Model == nil {
		return nil, errors.New("rlm requires a primary language model")
	}
	recursive := opts.RecursiveModel
	if recursive == nil {
		recursive = opts.Model
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	maxDepth := opts.MaxRecursiveDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRecursiveDepth
	}
	timeout := opts.ExecTimeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RLM{
		model:          opts.Model,
		recursiveModel: recursive,
		maxIterations:  maxIter,
		maxDepth:       maxDepth,
		execTimeout:    timeout,
		logger:         logger,
	}, nil
}

// Result is the outcome of one completion run.
type Result struct {
	// Answer is the final answer text, or ExhaustedSentinel when the
	// iteration budget ran out.
	Answer string `json:"answer"`

	// Iterations is the number of primary model turns consumed.
	Iterations int `json:"iterations"`

	// History holds one record per executed snippet, in order.
	History []ExecutionRecord `json:"history"`

	// TotalCalls counts every model call made during the run, primary and
	// recursive.
	TotalCalls int `json:"total_calls"`

	// Transcript is the full primary conversation, including execution
	// results fed back to the model.
	Transcript []models.Message `json:"transcript"`
}

// Completion answers query against contextPayload. The payload may be a
// string, a slice, or a map; non-string payloads are exposed to snippet code
// as structured values and to sub-queries as JSON text.
func (r *RLM) Completion(ctx context.Context, query string, contextPayload any) (*Result, error) {
	if query == "" {
		return nil, errors.New("query must not be empty")
	}

	budget := NewCallBudget(r.maxIterations, r.maxDepth)
	sandbox := NewSandbox(contextPayload, r.execTimeout)
	dispatcher := NewDispatcher(r.recursiveModel, budget, sandbox.ContextText(), r.logger)
	sandbox.SetDispatch(dispatcher.Dispatch, 0)

	transcript := []models.Message{
		{Role: models.RoleSystem, Content: systemPrompt(sandbox.ContextType(), sandbox.ContextSize(), sandbox.Peek(variablePreviewLimit), r.maxIterations)},
		{Role: models.RoleUser, Content: "Query: " + query},
	}

	r.logger.Info("completion started",
		"context_type", sandbox.ContextType(),
		"context_size", sandbox.ContextSize(),
		"max_iterations", r.maxIterations)

	var answer string
	answered := false
	iterations := 0

	for iterations < r.maxIterations {
		iterations++

		response, err := r.model.Chat(ctx, transcript)
		if err != nil {
			return nil, fmt.Errorf("primary model call on iteration %d: %w", iterations, err)
		}
		budget.RecordCall()

		directive := ParseDirective(response)
		r.logger.Debug("model turn parsed", "iteration", iterations, "directive", directive.Kind.String())

		switch directive.Kind {
		case DirectiveFinal:
			transcript = append(transcript, models.Message{Role: models.RoleAssistant, Content: response})
			answer = directive.Answer
			answered = true

		case DirectiveFinalVar:
			transcript = append(transcript, models.Message{Role: models.RoleAssistant, Content: response})
			answer = sandbox.VariableString(directive.VarName)
			answered = true

		case DirectiveCode:
			transcript = append(transcript, models.Message{Role: models.RoleAssistant, Content: response})
			for _, snippet := range directive.Code {
				rec, execErr := sandbox.Execute(ctx, snippet)
				if execErr != nil {
					return nil, execErr
				}
				transcript = append(transcript, models.Message{
					Role:    models.RoleUser,
					Content: "Execution result: " + renderRecord(rec),
				})
			}

		default:
			transcript = append(transcript, models.Message{Role: models.RoleAssistant, Content: response})
			transcript = append(transcript, models.Message{Role: models.RoleUser, Content: continueNudge})
		}

		if answered {
			break
		}
	}

	if !answered {
		answer = ExhaustedSentinel
	}

	r.logger.Info("completion finished",
		"answered", answered,
		"iterations", iterations,
		"total_calls", budget.TotalCalls())

	return &Result{
		Answer:     answer,
		Iterations: iterations,
		History:    sandbox.History(),
		TotalCalls: budget.TotalCalls(),
		Transcript: transcript,
	}, nil
}

func renderRecord(rec ExecutionRecord) string {
	encoded, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", rec)
	}
	return string(encoded)
}
