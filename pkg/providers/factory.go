package providers

import (
	"context"
	"fmt"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
	"github.com/snow-ghost/fusion/pkg/tokens"
)

// Factory maps worker families to provider implementations.
type Factory struct {
	providers map[string]Provider
}

// NewFactory creates a factory with the live provider set.
func NewFactory() *Factory {
	return &Factory{
		providers: map[string]Provider{
			"openai":    NewOpenAIProvider(),
			"anthropic": NewAnthropicProvider(),
			"mock":      NewMockProvider(),
		},
	}
}

// NewMockFactory routes every family to the given mock. Used in mock
// mode and tests.
func NewMockFactory(mock *MockProvider) *Factory {
	return &Factory{
		providers: map[string]Provider{
			"openai":    mock,
			"anthropic": mock,
			"mock":      mock,
		},
	}
}

// Register adds or replaces the provider for a family.
func (f *Factory) Register(family string, p Provider) {
	f.providers[family] = p
}

// For returns the provider handling the given family.
func (f *Factory) For(family string) (Provider, error) {
	p, ok := f.providers[family]
	if !ok {
		return nil, fmt.Errorf("unsupported worker family: %s", family)
	}
	return p, nil
}

// CatalogInvoker implements core.Invoker by resolving worker IDs
// through the catalog and dispatching to the family's provider.
type CatalogInvoker struct {
	catalog   *catalog.Catalog
	factory   *Factory
	estimator *tokens.Estimator
}

// NewCatalogInvoker wires a catalog to a provider factory.
func NewCatalogInvoker(c *catalog.Catalog, f *Factory) *CatalogInvoker {
	return &CatalogInvoker{
		catalog:   c,
		factory:   f,
		estimator: tokens.NewEstimator(),
	}
}

// Invoke completes a prompt on the named worker. Usage missing from
// the provider response is estimated from the texts.
func (ci *CatalogInvoker) Invoke(ctx context.Context, workerID, prompt string) (core.Answer, error) {
	profile, ok := ci.catalog.Get(workerID)
	if !ok {
		return core.Answer{}, fmt.Errorf("worker %s not found in catalog", workerID)
	}

	provider, err := ci.factory.For(profile.Family)
	if err != nil {
		return core.Answer{}, err
	}

	answer, err := provider.Complete(ctx, profile, prompt)
	if err != nil {
		return core.Answer{}, err
	}

	answer.Usage = ci.estimator.Fill(answer.Usage, prompt, answer.Text)
	return answer, nil
}
