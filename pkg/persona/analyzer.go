// Package persona characterizes how each worker approached the query,
// as an optional enrichment stage on top of the numeric scores.
package persona

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/oracle"
)

// Config holds analyzer settings.
type Config struct {
	Judge         string  // worker performing the analysis call
	MaxSimilarity float64 // pairwise profile similarity above this is a templating failure
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{MaxSimilarity: 0.7}
}

// Analyzer produces one qualitative profile per successful worker.
// Any failure fails the whole stage; partial profiles are never
// returned.
type Analyzer struct {
	invoker core.Invoker
	config  Config
	logger  *zap.Logger
}

// New creates an analyzer.
func New(invoker core.Invoker, config Config, logger *zap.Logger) *Analyzer {
	if config.MaxSimilarity <= 0 {
		config.MaxSimilarity = DefaultConfig().MaxSimilarity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{invoker: invoker, config: config, logger: logger}
}

type personaPayload struct {
	Profiles map[string]struct {
		Style               string   `json:"style"`
		Approach            string   `json:"approach"`
		UniqueContributions []string `json:"unique_contributions"`
		Advantage           string   `json:"advantage"`
		Weakness            string   `json:"weakness"`
		BestScenarios       []string `json:"best_scenarios"`
		Signature           string   `json:"signature_quote"`
	} `json:"profiles"`
}

// Analyze profiles every successful worker. It needs at least two
// successes to have anything to contrast; with fewer it returns nil
// without error.
func (a *Analyzer) Analyze(ctx context.Context, query string, results []core.InvocationResult) ([]core.PersonaProfile, error) {
	successes := core.Successes(results)
	if len(successes) < 2 {
		return nil, nil
	}

	answer, err := a.invoker.Invoke(ctx, a.config.Judge, buildPersonaPrompt(query, successes))
	if err != nil {
		return nil, fmt.Errorf("persona call: %w", err)
	}

	var payload personaPayload
	if err := oracle.Decode(answer.Text, &payload); err != nil {
		return nil, fmt.Errorf("persona reply: %w", err)
	}

	profiles := make([]core.PersonaProfile, 0, len(successes))
	for _, r := range successes {
		p, ok := payload.Profiles[r.WorkerID]
		if !ok {
			return nil, fmt.Errorf("persona reply missing worker %s", r.WorkerID)
		}
		profiles = append(profiles, core.PersonaProfile{
			WorkerID:            r.WorkerID,
			Style:               p.Style,
			Approach:            p.Approach,
			UniqueContributions: p.UniqueContributions,
			Advantage:           p.Advantage,
			Weakness:            p.Weakness,
			BestScenarios:       p.BestScenarios,
			Signature:           p.Signature,
		})
	}

	if i, j, sim := mostSimilarPair(profiles); sim > a.config.MaxSimilarity {
		return nil, fmt.Errorf("profiles for %s and %s are templated (similarity %.2f)",
			profiles[i].WorkerID, profiles[j].WorkerID, sim)
	}
	return profiles, nil
}

// mostSimilarPair finds the pair of profiles with the highest word
// overlap.
func mostSimilarPair(profiles []core.PersonaProfile) (int, int, float64) {
	bestI, bestJ, best := 0, 0, 0.0
	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			sim := similarity(profileWords(profiles[i]), profileWords(profiles[j]))
			if sim > best {
				bestI, bestJ, best = i, j, sim
			}
		}
	}
	return bestI, bestJ, best
}

// profileWords collects the words of a profile's free-text fields.
func profileWords(p core.PersonaProfile) map[string]bool {
	var b strings.Builder
	b.WriteString(p.Style)
	b.WriteString(" ")
	b.WriteString(p.Approach)
	b.WriteString(" ")
	b.WriteString(p.Advantage)
	b.WriteString(" ")
	b.WriteString(p.Weakness)
	for _, s := range p.UniqueContributions {
		b.WriteString(" ")
		b.WriteString(s)
	}

	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(b.String())) {
		if len(w) > 3 { // skip filler words
			words[w] = true
		}
	}
	return words
}

// similarity is the Jaccard index of two word sets.
func similarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for w := range a {
		if b[w] {
			common++
		}
	}
	union := len(a) + len(b) - common
	return float64(common) / float64(union)
}

func buildPersonaPrompt(query string, successes []core.InvocationResult) string {
	var b strings.Builder

	b.WriteString("Several AI workers answered the same question. Characterize each worker's individual approach.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", query)
	for _, r := range successes {
		fmt.Fprintf(&b, "--- Worker %s ---\n%s\n\n", r.WorkerID, r.Answer)
	}

	b.WriteString(`For EACH worker write a profile grounded in that worker's own text:
quote or closely paraphrase concrete fragments, do not generalize.
Profiles must differ from each other; identical phrasing across
workers is a failure.

Reply with ONLY a fenced JSON block:

` + "```json" + `
{
  "profiles": {
    "<worker id>": {
      "style": "...",
      "approach": "...",
      "unique_contributions": ["..."],
      "advantage": "...",
      "weakness": "...",
      "best_scenarios": ["..."],
      "signature_quote": "a short verbatim quote from this worker's answer"
    }
  }
}
` + "```" + `

Include every worker id exactly once.
`)

	return b.String()
}
