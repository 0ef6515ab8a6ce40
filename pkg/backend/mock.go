package backend

import (
	"context"
	"sync"
)

// MockGenerator is a scripted Generator for tests. Each call consumes the
// next scripted step; when the script is exhausted the last step repeats.
type MockGenerator struct {
	mu    sync.Mutex
	steps []MockStep
	calls int
}

// MockStep is one scripted outcome.
type MockStep struct {
	Result *Result
	Err    error

	// Block, when set, makes the call wait for ctx cancellation and
	// return ctx.Err(). Used to simulate a hung downstream.
	Block bool
}

// NewMockGenerator creates a generator that replays the given steps.
func NewMockGenerator(steps ...MockStep) *MockGenerator {
	return &MockGenerator{steps: steps}
}

// Generate returns the next scripted outcome.
func (m *MockGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	m.mu.Lock()
	idx := m.calls
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	m.calls++
	var step MockStep
	if idx >= 0 {
		step = m.steps[idx]
	}
	m.mu.Unlock()

	if step.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return step.Result, step.Err
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
