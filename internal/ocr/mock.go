package ocr

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is a configurable in-memory Provider for tests.
type MockProvider struct {
	// WordsByPage maps page numbers to canned results.
	WordsByPage map[int]*PageResult
	// Latency is added to every call when set.
	Latency time.Duration
	// ShouldFail makes every call return an error.
	ShouldFail bool

	mu    sync.Mutex
	calls []int
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return "mock-ocr"
}

// RecognizePage returns the canned result for pageNum, or an empty page.
func (m *MockProvider) RecognizePage(ctx context.Context, png []byte, pageNum int) (*PageResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, pageNum)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.ShouldFail {
		return nil, fmt.Errorf("mock ocr failure for page %d", pageNum)
	}
	if res, ok := m.WordsByPage[pageNum]; ok {
		return res, nil
	}
	return &PageResult{Width: 2550, Height: 3300}, nil
}

// Calls returns the pages recognized so far, in call order.
func (m *MockProvider) Calls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.calls))
	copy(out, m.calls)
	return out
}

// Verify interface
var _ Provider = (*MockProvider)(nil)
