package models

import (
	"context"
	"sync"
)

// DummyLLM is a lightweight model implementation useful for local testing
// without API calls. It replays its scripted responses in order and repeats
// the last one once the script runs out.
type DummyLLM struct {
	Responses []string

	mu   sync.Mutex
	next int
}

func NewDummyLLM(responses ...string) *DummyLLM {
	return &DummyLLM{Responses: responses}
}

func (d *DummyLLM) Chat(_ context.Context, _ []Message) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.Responses) == 0 {
		return "FINAL(dummy answer)", nil
	}
	idx := d.next
	if idx >= len(d.Responses) {
		idx = len(d.Responses) - 1
	}
	d.next++
	return d.Responses[idx], nil
}

var _ ChatModel = (*DummyLLM)(nil)
