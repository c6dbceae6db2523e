package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoWorkers means the catalog has no entries with valid credentials.
// The pipeline cannot start without at least one usable worker.
var ErrNoWorkers = errors.New("no workers with valid credentials")

// NoSuccessError is returned when every selected worker failed and there
// is nothing to fuse.
type NoSuccessError struct {
	Attempted int
	Failures  map[string]string // worker ID -> error text
}

func (e *NoSuccessError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for id, msg := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", id, msg))
	}
	return fmt.Sprintf("all %d worker invocations failed: %s", e.Attempted, strings.Join(parts, "; "))
}

// NewNoSuccessError builds a NoSuccessError from settled results.
func NewNoSuccessError(results []InvocationResult) *NoSuccessError {
	failures := make(map[string]string, len(results))
	for _, r := range results {
		if !r.Succeeded() {
			failures[r.WorkerID] = r.Error
		}
	}
	return &NoSuccessError{Attempted: len(results), Failures: failures}
}
