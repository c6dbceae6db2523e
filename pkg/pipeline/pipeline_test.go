package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
	"github.com/snow-ghost/fusion/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		WorkerCount:    3,
		AnalystWorker:  "w1",
		SelectionTTL:   time.Minute,
		SelectionCache: 8,
		PickStrategy:   "top",

		ConcurrencyCap: 2,
		AttemptTimeout: time.Second,
		OverallTimeout: 5 * time.Second,
		MaxRetries:     0,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,

		FusionWorker: "w1",
		JudgeWorker:  "w1",
		MinSpread:    1.0,
		Tolerance:    1.0,

		PersonaEnabled:       true,
		PersonaMaxSimilarity: 0.7,
	}
}

func fiveWorkerCatalog() *catalog.Catalog {
	profiles := make([]catalog.WorkerProfile, 0, 5)
	for _, id := range []string{"w1", "w2", "w3", "w4", "w5"} {
		profiles = append(profiles, catalog.WorkerProfile{
			ID: id, Family: "mock",
			Strengths: []string{"reasoning"},
			Ratings:   map[string]catalog.Rating{"reasoning": catalog.RatingGood},
		})
	}
	return catalog.New(profiles)
}

const analysisReply = "```json\n" + `{
  "analysis": {
    "question_type": "technical",
    "complexity_level": "complex",
    "required_capabilities": ["reasoning"],
    "key_challenges": ["rigor vs accessibility"]
  },
  "candidates": [
    {"worker": "w1", "fitness": 9.0, "expected_contribution": "depth"},
    {"worker": "w2", "fitness": 8.0, "expected_contribution": "clarity"},
    {"worker": "w3", "fitness": 7.0, "expected_contribution": "examples"},
    {"worker": "w4", "fitness": 5.0, "expected_contribution": "speed"},
    {"worker": "w5", "fitness": 4.0, "expected_contribution": "speed"}
  ],
  "strategy": "depth plus clarity",
  "confidence": "high"
}` + "\n```"

const comparativeReply = "```json\n" + `{
  "scores": [
    {"subject": "fused", "score": 9.2, "note": "best of all"},
    {"subject": "w1", "score": 8.0, "note": "deep"},
    {"subject": "w2", "score": 7.0, "note": "clear"},
    {"subject": "w3", "score": 6.0, "note": "thin"}
  ],
  "rationale": "the fused answer keeps the depth and adds clarity"
}` + "\n```"

const personaReply = "```json\n" + `{
  "profiles": {
    "w1": {
      "style": "rigorous and formal",
      "approach": "derives the theory from first principles",
      "unique_contributions": ["value function derivation"],
      "advantage": "depth",
      "weakness": "dense",
      "best_scenarios": ["advanced study"],
      "signature_quote": "reward signal over time"
    },
    "w2": {
      "style": "friendly and conversational",
      "approach": "teaches through a game-playing metaphor",
      "unique_contributions": ["maze-runner metaphor"],
      "advantage": "accessibility",
      "weakness": "imprecise",
      "best_scenarios": ["beginners"],
      "signature_quote": "imagine a mouse in a maze"
    },
    "w3": {
      "style": "terse bullet points",
      "approach": "lists the key components without narrative",
      "unique_contributions": ["compact glossary of terms"],
      "advantage": "scannability",
      "weakness": "shallow",
      "best_scenarios": ["quick reference"],
      "signature_quote": "agent, environment, reward"
    }
  }
}` + "\n```"

func detailFor(mean string) string {
	return "```json\n" + `{"completeness": ` + mean + `, "accuracy": ` + mean + `, "clarity": ` + mean + `, "relevance": ` + mean + `, "strengths": [], "weaknesses": [], "note": ""}` + "\n```"
}

// fullBrain simulates every role: selection analyst, workers, fusion
// worker, judge and persona judge, keyed off prompt markers.
func fullBrain(analysisCalls *int64) core.InvokerFunc {
	return func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		switch {
		case strings.Contains(prompt, "expert dispatcher"):
			if analysisCalls != nil {
				atomic.AddInt64(analysisCalls, 1)
			}
			return core.Answer{Text: analysisReply}, nil
		case strings.Contains(prompt, "Fuse their answers"):
			return core.Answer{Text: "Fused: reinforcement learning explained with depth and clarity"}, nil
		case strings.Contains(prompt, "against each other"):
			return core.Answer{Text: comparativeReply}, nil
		case strings.Contains(prompt, "grading one answer"):
			switch {
			case strings.Contains(prompt, "Fused:"):
				return core.Answer{Text: detailFor("9.0")}, nil
			case strings.Contains(prompt, "[w1]"):
				return core.Answer{Text: detailFor("8.0")}, nil
			case strings.Contains(prompt, "[w2]"):
				return core.Answer{Text: detailFor("7.0")}, nil
			default:
				return core.Answer{Text: detailFor("6.0")}, nil
			}
		case strings.Contains(prompt, "individual approach"):
			return core.Answer{Text: personaReply}, nil
		default:
			// a worker answering the user query
			return core.Answer{
				Text:  "[" + workerID + "] reinforcement learning answer",
				Usage: core.Usage{PromptTokens: 10, CompletionTokens: 50, TotalTokens: 60},
			}, nil
		}
	}
}

func TestRunEndToEnd(t *testing.T) {
	var analysisCalls int64
	p, err := New(Options{
		Config:  testConfig(),
		Catalog: fiveWorkerCatalog(),
		Invoker: fullBrain(&analysisCalls),
	})
	require.NoError(t, err)

	bundle, err := p.Run(context.Background(), "explain reinforcement learning")
	require.NoError(t, err)

	// selection: exactly 3 distinct workers, reasoned
	assert.Equal(t, core.SelectionReasoned, bundle.Decision.Method)
	assert.Equal(t, []string{"w1", "w2", "w3"}, bundle.Decision.WorkerIDs())

	// dispatch: one settled result per worker
	require.Len(t, bundle.Invocations, 3)
	for _, r := range bundle.Invocations {
		assert.Equal(t, core.StatusSuccess, r.Status)
	}

	// fusion: real fusion over 3 answers
	assert.False(t, bundle.Fusion.Passthrough)
	assert.Contains(t, bundle.Fusion.Text, "Fused:")
	assert.Equal(t, []string{"w1", "w2", "w3"}, bundle.Fusion.Contributors)

	// scoring: workers plus the fused answer, fused on top
	require.Len(t, bundle.Scores, 4)
	assert.Equal(t, core.FusedSubjectID, bundle.Scores[0].SubjectID)
	assert.Equal(t, 1, bundle.Scores[0].Rank)
	for _, rec := range bundle.Scores[1:] {
		assert.GreaterOrEqual(t, bundle.Scores[0].Final, rec.Final)
	}

	// persona: one profile per successful worker
	require.Len(t, bundle.Personas, 3)
	assert.Empty(t, bundle.SkippedStages)

	// accounting
	assert.Equal(t, 180, bundle.TotalUsage.TotalTokens)
	assert.NotZero(t, bundle.Duration)
}

func TestRunUsesSelectionCache(t *testing.T) {
	var analysisCalls int64
	p, err := New(Options{
		Config:  testConfig(),
		Catalog: fiveWorkerCatalog(),
		Invoker: fullBrain(&analysisCalls),
	})
	require.NoError(t, err)

	first, err := p.Run(context.Background(), "explain reinforcement learning")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), "explain reinforcement learning")
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&analysisCalls))
	assert.Equal(t, first.Decision, second.Decision)
}

func TestRunFatalWhenAllWorkersFail(t *testing.T) {
	invoker := core.InvokerFunc(func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		if strings.Contains(prompt, "expert dispatcher") {
			return core.Answer{Text: analysisReply}, nil
		}
		return core.Answer{}, errors.New("provider outage")
	})
	p, err := New(Options{Config: testConfig(), Catalog: fiveWorkerCatalog(), Invoker: invoker})
	require.NoError(t, err)

	bundle, err := p.Run(context.Background(), "q")
	require.Error(t, err)

	var noSuccess *core.NoSuccessError
	require.ErrorAs(t, err, &noSuccess)
	assert.Equal(t, 3, noSuccess.Attempted)
	require.NotNil(t, bundle)
	assert.Len(t, bundle.Invocations, 3)
}

func TestRunSingleSuccessPassesThroughVerbatim(t *testing.T) {
	invoker := core.InvokerFunc(func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		switch {
		case strings.Contains(prompt, "expert dispatcher"):
			return core.Answer{Text: analysisReply}, nil
		case strings.Contains(prompt, "against each other"),
			strings.Contains(prompt, "grading one answer"),
			strings.Contains(prompt, "individual approach"):
			return core.Answer{}, errors.New("judge down")
		case strings.Contains(prompt, "Fuse their answers"):
			return core.Answer{}, errors.New("should not fuse a single answer")
		default:
			if workerID != "w2" {
				return core.Answer{}, errors.New("outage")
			}
			return core.Answer{Text: "the only surviving answer"}, nil
		}
	})
	p, err := New(Options{Config: testConfig(), Catalog: fiveWorkerCatalog(), Invoker: invoker})
	require.NoError(t, err)

	bundle, err := p.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.True(t, bundle.Fusion.Passthrough)
	assert.Equal(t, "the only surviving answer", bundle.Fusion.Text)
	assert.Equal(t, []string{"w2"}, bundle.Fusion.Contributors)
}

func TestRunSkipsScoringAndPersonaOnJudgeFailure(t *testing.T) {
	invoker := core.InvokerFunc(func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		switch {
		case strings.Contains(prompt, "expert dispatcher"):
			return core.Answer{Text: analysisReply}, nil
		case strings.Contains(prompt, "Fuse their answers"):
			return core.Answer{Text: "fused text"}, nil
		case strings.Contains(prompt, "against each other"),
			strings.Contains(prompt, "grading one answer"),
			strings.Contains(prompt, "individual approach"):
			return core.Answer{}, errors.New("judge down")
		default:
			return core.Answer{Text: "[" + workerID + "] answer"}, nil
		}
	})
	p, err := New(Options{Config: testConfig(), Catalog: fiveWorkerCatalog(), Invoker: invoker})
	require.NoError(t, err)

	bundle, err := p.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, "fused text", Answer(bundle))
	assert.True(t, bundle.Skipped(core.StageScoring))
	assert.True(t, bundle.Skipped(core.StagePersona))
	assert.Empty(t, bundle.Scores)
	assert.Empty(t, bundle.Personas)
}

func TestRunPersonaDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.PersonaEnabled = false
	p, err := New(Options{Config: cfg, Catalog: fiveWorkerCatalog(), Invoker: fullBrain(nil)})
	require.NoError(t, err)

	bundle, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, bundle.Personas)
	assert.False(t, bundle.Skipped(core.StagePersona))
}

func TestRunRejectsEmptyQuery(t *testing.T) {
	p, err := New(Options{Config: testConfig(), Catalog: fiveWorkerCatalog(), Invoker: fullBrain(nil)})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "   ")
	require.Error(t, err)
}
