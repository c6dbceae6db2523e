package report

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/fusion/core"
)

func sampleBundle() *core.Bundle {
	return &core.Bundle{
		Query: "explain reinforcement learning",
		Decision: core.SelectionDecision{
			Analysis:   core.QueryAnalysis{QuestionType: "technical", Complexity: "complex"},
			Workers:    []core.RankedWorker{{WorkerID: "w1", Fitness: 9.0, Rationale: "depth"}},
			Strategy:   "depth plus clarity",
			Confidence: "high",
			Method:     core.SelectionReasoned,
		},
		Invocations: []core.InvocationResult{
			{WorkerID: "w1", Status: core.StatusSuccess, Answer: "a", Usage: core.Usage{TotalTokens: 60}, Latency: 120 * time.Millisecond, Attempts: 1},
			{WorkerID: "w2", Status: core.StatusFailure, Error: "boom", Attempts: 2},
		},
		Fusion: core.FusionResult{Text: "the fused answer", Contributors: []string{"w1"}, Passthrough: true},
		Scores: []core.ScoreRecord{
			{
				SubjectID: "fused", Rank: 1, Final: 9.1, Comparative: 9.2, HasComparative: true,
				HasDetail: true,
				Dimensions: map[string]float64{
					core.DimCompleteness: 9, core.DimAccuracy: 9, core.DimClarity: 9, core.DimRelevance: 9,
				},
				Strengths: []string{"covers everything"},
			},
		},
		Consistency: core.ConsistencyReport{Findings: []core.Finding{
			{Kind: core.FindingSpread, Detail: "spread 0.2 below minimum 1.0", Correction: "re-spread"},
		}},
		Personas: []core.PersonaProfile{{
			WorkerID: "w1", Style: "formal", Approach: "theory first",
			Advantage: "depth", Weakness: "dense", Signature: "reward over time",
		}},
		SkippedStages: []string{core.StagePersona},
		TotalUsage:    core.Usage{PromptTokens: 30, CompletionTokens: 30, TotalTokens: 60},
		TotalCost:     0.001234,
		StartedAt:     time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Duration:      2 * time.Second,
	}
}

func TestRenderIncludesEverySection(t *testing.T) {
	text := Render(sampleBundle())

	assert.Contains(t, text, "# Answer Fusion Report")
	assert.Contains(t, text, "explain reinforcement learning")
	assert.Contains(t, text, "the fused answer")
	assert.Contains(t, text, "## Worker Selection")
	assert.Contains(t, text, "| w1 | 9.0 | depth |")
	assert.Contains(t, text, "## Invocations")
	assert.Contains(t, text, "failure (boom)")
	assert.Contains(t, text, "## Quality Scores")
	assert.Contains(t, text, "| 1 | fused | 9.10 | 9.20 |")
	assert.Contains(t, text, "Strength: covers everything")
	assert.Contains(t, text, "## Consistency Findings")
	assert.Contains(t, text, "score_spread")
	assert.Contains(t, text, "## Worker Profiles")
	assert.Contains(t, text, "reward over time")
	assert.Contains(t, text, "## Skipped Stages")
}

func TestWriteCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.Write(sampleBundle())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Answer Fusion Report")
	assert.Contains(t, path, "fusion_20260825_120000.md")
}
