package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
)

// MockProvider returns scripted answers. Used in tests and in mock
// mode, where no real API is called.
type MockProvider struct {
	mu        sync.Mutex
	responses map[string][]mockResponse // worker ID -> queued responses
	fallback  func(workerID, prompt string) (core.Answer, error)
	calls     map[string]int
	delay     time.Duration
}

type mockResponse struct {
	answer core.Answer
	err    error
}

// NewMockProvider creates a mock provider that echoes a canned answer
// for any worker unless scripted otherwise.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		responses: make(map[string][]mockResponse),
		calls:     make(map[string]int),
		fallback: func(workerID, prompt string) (core.Answer, error) {
			text := fmt.Sprintf("[%s] %s", workerID, prompt)
			return core.Answer{
				Text: text,
				Usage: core.Usage{
					PromptTokens:     len(prompt) / 4,
					CompletionTokens: len(text) / 4,
					TotalTokens:      len(prompt)/4 + len(text)/4,
				},
			}, nil
		},
	}
}

// Script queues an answer for a worker. Queued responses are consumed
// in order; afterwards the fallback applies.
func (p *MockProvider) Script(workerID, text string) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[workerID] = append(p.responses[workerID], mockResponse{
		answer: core.Answer{
			Text:  text,
			Usage: core.Usage{PromptTokens: 10, CompletionTokens: len(text) / 4, TotalTokens: 10 + len(text)/4},
		},
	})
	return p
}

// ScriptError queues a failure for a worker.
func (p *MockProvider) ScriptError(workerID string, err error) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[workerID] = append(p.responses[workerID], mockResponse{err: err})
	return p
}

// SetFallback replaces the default answer function.
func (p *MockProvider) SetFallback(fn func(workerID, prompt string) (core.Answer, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = fn
}

// SetDelay makes every call sleep first, to exercise timeouts.
func (p *MockProvider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// Calls returns how many times a worker was invoked.
func (p *MockProvider) Calls(workerID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[workerID]
}

// Complete returns the next scripted response for the worker.
func (p *MockProvider) Complete(ctx context.Context, profile catalog.WorkerProfile, prompt string) (core.Answer, error) {
	p.mu.Lock()
	p.calls[profile.ID]++
	delay := p.delay
	var next *mockResponse
	if queue := p.responses[profile.ID]; len(queue) > 0 {
		next = &queue[0]
		p.responses[profile.ID] = queue[1:]
	}
	fallback := p.fallback
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return core.Answer{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if ctx.Err() != nil {
		return core.Answer{}, ctx.Err()
	}

	if next != nil {
		return next.answer, next.err
	}
	return fallback(profile.ID, prompt)
}
