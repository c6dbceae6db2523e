package core

import "context"

// Invoker sends a prompt to one worker and returns its answer.
// Implementations must honor ctx cancellation and deadlines.
type Invoker interface {
	Invoke(ctx context.Context, workerID, prompt string) (Answer, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, workerID, prompt string) (Answer, error)

func (f InvokerFunc) Invoke(ctx context.Context, workerID, prompt string) (Answer, error) {
	return f(ctx, workerID, prompt)
}
