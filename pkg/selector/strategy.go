package selector

import (
	"sort"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
)

// Candidate is one available worker with its fitness for the query.
type Candidate struct {
	Profile   catalog.WorkerProfile
	Fitness   float64 // 0..10
	Rationale string
}

// Strategy picks k candidates out of the scored pool. Implementations
// must be deterministic for identical input.
type Strategy interface {
	Name() string
	Pick(candidates []Candidate, analysis core.QueryAnalysis, k int) []Candidate
}

// sortCandidates orders by fitness descending, worker ID ascending on
// ties. This ordering anchors every strategy's determinism.
func sortCandidates(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fitness != out[j].Fitness {
			return out[i].Fitness > out[j].Fitness
		}
		return out[i].Profile.ID < out[j].Profile.ID
	})
	return out
}

// TopFitnessStrategy takes the k highest-fitness candidates.
type TopFitnessStrategy struct{}

func (s *TopFitnessStrategy) Name() string { return "top" }

func (s *TopFitnessStrategy) Pick(candidates []Candidate, _ core.QueryAnalysis, k int) []Candidate {
	sorted := sortCandidates(candidates)
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// CoverageStrategy balances fitness against capability diversity:
// each pick favors candidates covering required capabilities no prior
// pick covers.
type CoverageStrategy struct {
	// CoverageBonus is added per newly covered capability.
	CoverageBonus float64
}

func NewCoverageStrategy() *CoverageStrategy {
	return &CoverageStrategy{CoverageBonus: 0.75}
}

func (s *CoverageStrategy) Name() string { return "coverage" }

func (s *CoverageStrategy) Pick(candidates []Candidate, analysis core.QueryAnalysis, k int) []Candidate {
	sorted := sortCandidates(candidates)
	if len(sorted) <= k {
		return sorted
	}

	covered := make(map[string]bool)
	picked := make([]Candidate, 0, k)
	remaining := sorted

	for len(picked) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0
		for i, c := range remaining {
			score := c.Fitness + s.CoverageBonus*float64(s.uncovered(c.Profile, analysis.RequiredTags, covered))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		chosen := remaining[bestIdx]
		picked = append(picked, chosen)
		for _, tag := range analysis.RequiredTags {
			if chosen.Profile.Covers(tag) {
				covered[tag] = true
			}
		}
		remaining = append(remaining[:bestIdx:bestIdx], remaining[bestIdx+1:]...)
	}
	return picked
}

func (s *CoverageStrategy) uncovered(p catalog.WorkerProfile, tags []string, covered map[string]bool) int {
	n := 0
	for _, tag := range tags {
		if !covered[tag] && p.Covers(tag) {
			n++
		}
	}
	return n
}

// StrategyFor returns the strategy registered under name, defaulting
// to coverage.
func StrategyFor(name string) Strategy {
	switch name {
	case "top":
		return &TopFitnessStrategy{}
	default:
		return NewCoverageStrategy()
	}
}
