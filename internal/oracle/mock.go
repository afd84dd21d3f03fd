package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockOracle is a configurable in-memory Oracle for tests. Responses
// are consumed in order; the last one repeats once the queue is drained.
type MockOracle struct {
	Responses []string
	// Latency is added to every call when set.
	Latency time.Duration
	// ShouldFail makes every call return an error.
	ShouldFail bool
	// FailFirst makes the first N calls fail before responses start.
	FailFirst int

	mu       sync.Mutex
	requests []Request
	calls    int
}

// Name returns the provider identifier.
func (m *MockOracle) Name() string {
	return "mock-oracle"
}

// Complete returns the next canned response.
func (m *MockOracle) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	call := m.calls
	m.calls++
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.ShouldFail || call < m.FailFirst {
		return "", fmt.Errorf("mock oracle failure on call %d", call+1)
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	if call >= len(m.Responses) {
		return m.Responses[len(m.Responses)-1], nil
	}
	return m.Responses[call], nil
}

// Requests returns the requests received so far, in call order.
func (m *MockOracle) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Complete invocations.
func (m *MockOracle) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Verify interface
var _ Oracle = (*MockOracle)(nil)
