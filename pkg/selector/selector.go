package selector

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
	"github.com/snow-ghost/fusion/pkg/oracle"
)

// Fallback fitness ladder: rank 0 gets fallbackTopFitness, each
// following rank steps down by fallbackFitnessStep.
const (
	fallbackTopFitness  = 8.0
	fallbackFitnessStep = 0.5
)

// Config holds selector settings.
type Config struct {
	K       int    // how many workers to select
	Analyst string // worker performing the analysis call; empty picks the strongest available
}

// Selector chooses which workers answer a query. It tries one
// reasoning call first and falls back to static catalog fitness when
// the call fails or returns garbage.
type Selector struct {
	catalog  *catalog.Catalog
	invoker  core.Invoker
	strategy Strategy
	config   Config
	logger   *zap.Logger
}

// New creates a selector.
func New(c *catalog.Catalog, invoker core.Invoker, strategy Strategy, config Config, logger *zap.Logger) *Selector {
	if config.K <= 0 {
		config.K = 3
	}
	if strategy == nil {
		strategy = NewCoverageStrategy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		catalog:  c,
		invoker:  invoker,
		strategy: strategy,
		config:   config,
		logger:   logger,
	}
}

type analysisPayload struct {
	Analysis struct {
		QuestionType         string   `json:"question_type"`
		ComplexityLevel      string   `json:"complexity_level"`
		RequiredCapabilities []string `json:"required_capabilities"`
		KeyChallenges        []string `json:"key_challenges"`
	} `json:"analysis"`
	Candidates []struct {
		Worker               string   `json:"worker"`
		Fitness              float64  `json:"fitness"`
		Reasons              []string `json:"reasons"`
		ExpectedContribution string   `json:"expected_contribution"`
	} `json:"candidates"`
	Strategy   string `json:"strategy"`
	Confidence string `json:"confidence"`
}

// Select returns the workers that should answer the query, best first.
// It fails only when the catalog has no usable workers at all.
func (s *Selector) Select(ctx context.Context, query string) (core.SelectionDecision, error) {
	available := s.catalog.Available()
	if len(available) == 0 {
		return core.SelectionDecision{}, core.ErrNoWorkers
	}

	k := s.config.K
	if k > len(available) {
		s.logger.Warn("fewer workers available than requested",
			zap.Int("requested", s.config.K),
			zap.Int("available", len(available)),
		)
		k = len(available)
	}

	decision, err := s.reasonedSelection(ctx, query, available, k)
	if err != nil {
		s.logger.Warn("reasoned selection failed, using fallback", zap.Error(err))
		return s.fallbackSelection(available, k), nil
	}
	return decision, nil
}

func (s *Selector) reasonedSelection(ctx context.Context, query string, available []catalog.WorkerProfile, k int) (core.SelectionDecision, error) {
	analyst := s.config.Analyst
	if analyst == "" {
		analyst = strongestWorker(available)
	}

	answer, err := s.invoker.Invoke(ctx, analyst, buildAnalysisPrompt(query, available, k))
	if err != nil {
		return core.SelectionDecision{}, fmt.Errorf("analysis call to %s: %w", analyst, err)
	}

	var payload analysisPayload
	if err := oracle.Decode(answer.Text, &payload); err != nil {
		return core.SelectionDecision{}, fmt.Errorf("analysis reply: %w", err)
	}

	byID := make(map[string]catalog.WorkerProfile, len(available))
	for _, p := range available {
		byID[p.ID] = p
	}

	candidates := make([]Candidate, 0, len(payload.Candidates))
	seen := make(map[string]bool)
	for _, c := range payload.Candidates {
		profile, ok := byID[c.Worker]
		if !ok || seen[c.Worker] {
			continue
		}
		seen[c.Worker] = true
		rationale := c.ExpectedContribution
		if rationale == "" && len(c.Reasons) > 0 {
			rationale = c.Reasons[0]
		}
		candidates = append(candidates, Candidate{
			Profile:   profile,
			Fitness:   oracle.Clamp(c.Fitness, 0, 10),
			Rationale: rationale,
		})
	}
	if len(candidates) < k {
		return core.SelectionDecision{}, fmt.Errorf("analysis named %d valid workers, need %d", len(candidates), k)
	}

	analysis := core.QueryAnalysis{
		QuestionType:  payload.Analysis.QuestionType,
		Complexity:    payload.Analysis.ComplexityLevel,
		RequiredTags:  payload.Analysis.RequiredCapabilities,
		KeyChallenges: payload.Analysis.KeyChallenges,
	}

	picked := s.strategy.Pick(candidates, analysis, k)
	workers := make([]core.RankedWorker, len(picked))
	for i, c := range picked {
		workers[i] = core.RankedWorker{
			WorkerID:  c.Profile.ID,
			Fitness:   c.Fitness,
			Rationale: c.Rationale,
		}
	}

	return core.SelectionDecision{
		Analysis:   analysis,
		Workers:    workers,
		Strategy:   payload.Strategy,
		Confidence: payload.Confidence,
		Method:     core.SelectionReasoned,
	}, nil
}

// fallbackSelection ranks workers by static catalog fitness and
// assigns the descending fitness ladder. Deterministic for a fixed
// catalog.
func (s *Selector) fallbackSelection(available []catalog.WorkerProfile, k int) core.SelectionDecision {
	sorted := make([]catalog.WorkerProfile, len(available))
	copy(sorted, available)
	sort.SliceStable(sorted, func(i, j int) bool {
		fi, fj := sorted[i].GeneralFitness(), sorted[j].GeneralFitness()
		if fi != fj {
			return fi > fj
		}
		return sorted[i].ID < sorted[j].ID
	})

	workers := make([]core.RankedWorker, 0, k)
	for i := 0; i < k && i < len(sorted); i++ {
		workers = append(workers, core.RankedWorker{
			WorkerID:  sorted[i].ID,
			Fitness:   fallbackTopFitness - fallbackFitnessStep*float64(i),
			Rationale: "static catalog ranking",
		})
	}

	return core.SelectionDecision{
		Analysis: core.QueryAnalysis{
			QuestionType: "general",
			Complexity:   "moderate",
		},
		Workers:    workers,
		Strategy:   "highest general fitness",
		Confidence: "low",
		Method:     core.SelectionFallback,
	}
}

func strongestWorker(available []catalog.WorkerProfile) string {
	best := available[0]
	for _, p := range available[1:] {
		if p.GeneralFitness() > best.GeneralFitness() ||
			(p.GeneralFitness() == best.GeneralFitness() && p.ID < best.ID) {
			best = p
		}
	}
	return best.ID
}
