package rlm

import (
	"sync/atomic"
)

// Default budget mirrors the reference deployment: ten loop iterations and a
// single level of recursive sub-queries.
const (
	DefaultMaxIterations     = 10
	DefaultMaxRecursiveDepth = 1
)

// CallBudget bounds one completion run and counts every language-model
// invocation made on its behalf, primary and recursive alike. The counter is
// atomic so an implementation that fans out sub-queries can share it without
// restructuring the call graph.
type CallBudget struct {
	MaxIterations     int
	MaxRecursiveDepth int

	totalCalls atomic.Int64
}

// NewCallBudget constructs a budget, substituting defaults for non-positive caps.
func NewCallBudget(maxIterations, maxRecursiveDepth int) *CallBudget {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if maxRecursiveDepth <= 0 {
		maxRecursiveDepth = DefaultMaxRecursiveDepth
	}
	return &CallBudget{MaxIterations: maxIterations, MaxRecursiveDepth: maxRecursiveDepth}
}

// RecordCall notes one model invocation and returns the running total.
func (b *CallBudget) RecordCall() int64 {
	return b.totalCalls.Add(1)
}

// TotalCalls reports how many model invocations have been recorded so far.
func (b *CallBudget) TotalCalls() int {
	return int(b.totalCalls.Load())
}

// DepthExceeded reports whether a sub-query at the given depth must be blocked.
func (b *CallBudget) DepthExceeded(depth int) bool {
	return depth >= b.MaxRecursiveDepth
}
