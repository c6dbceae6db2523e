package providers

import (
	"context"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
)

// Provider completes a prompt against one worker family's API.
type Provider interface {
	Complete(ctx context.Context, profile catalog.WorkerProfile, prompt string) (core.Answer, error)
}
