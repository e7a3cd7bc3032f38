package rlm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Protocol-Lattice/go-rlm/pkg/models"
)

// DepthLimitSentinel is handed to snippet code in place of a sub-query answer
// once the recursion cap is reached, so the model can adapt instead of the
// run aborting.
const DepthLimitSentinel = "Max recursion depth reached"

const dispatchSystemPrompt = "You are a helpful assistant. Answer the query based on the provided context."

// Dispatcher issues depth-bounded sub-queries against the secondary model.
// Depth travels as an explicit argument so the cap is enforced per logical
// recursion path rather than through state captured in a closure.
type Dispatcher struct {
	model       models.ChatModel
	budget      *CallBudget
	contextText string
	logger      *slog.Logger
}

func NewDispatcher(model models.ChatModel, budget *CallBudget, contextText string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{model: model, budget: budget, contextText: contextText, logger: logger}
}

// Dispatch answers query against contextSubset (or the full root context when
// the subset is empty) with one single-turn model call, executed at depth+1.
// At or beyond the depth cap it returns DepthLimitSentinel without touching
// the model or the call counter.
func (d *Dispatcher) Dispatch(ctx context.Context, query, contextSubset string, depth int) (string, error) {
	if d.budget.DepthExceeded(depth) {
		d.logger.Debug("recursive dispatch blocked by depth cap", "depth", depth)
		return DepthLimitSentinel, nil
	}

	contextText := contextSubset
	if contextText == "" {
		contextText = d.contextText
	}
	messages := []models.Message{
		{Role: models.RoleSystem, Content: dispatchSystemPrompt},
		{Role: models.RoleUser, Content: fmt.Sprintf("Query: %s\n\nContext: %s", query, contextText)},
	}

	answer, err := d.model.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("recursive model call at depth %d: %w", depth+1, err)
	}
	d.budget.RecordCall()
	d.logger.Debug("recursive dispatch complete", "depth", depth+1, "total_calls", d.budget.TotalCalls())
	return answer, nil
}
