package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/fusion/core"
)

func comparativeReply(scores map[string]float64) string {
	var entries []string
	for id, score := range scores {
		entries = append(entries, fmt.Sprintf(`{"subject": %q, "score": %g, "note": "n"}`, id, score))
	}
	return "```json\n" + fmt.Sprintf(`{"scores": [%s], "rationale": "compared"}`, strings.Join(entries, ",")) + "\n```"
}

func detailReply(c, a, cl, r float64, strengths, weaknesses []string) string {
	q := func(ss []string) string {
		var out []string
		for _, s := range ss {
			out = append(out, fmt.Sprintf("%q", s))
		}
		return strings.Join(out, ",")
	}
	return "```json\n" + fmt.Sprintf(
		`{"completeness": %g, "accuracy": %g, "clarity": %g, "relevance": %g, "strengths": [%s], "weaknesses": [%s], "note": "detail"}`,
		c, a, cl, r, q(strengths), q(weaknesses),
	) + "\n```"
}

// scriptedJudge answers comparative prompts with compReply and detail
// prompts with the reply registered for the subject text found in the
// prompt.
func scriptedJudge(compReply string, compErr error, detailFor map[string]string, detailErr error) core.InvokerFunc {
	return func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		if strings.Contains(prompt, "against each other") {
			if compErr != nil {
				return core.Answer{}, compErr
			}
			return core.Answer{Text: compReply}, nil
		}
		if detailErr != nil {
			return core.Answer{}, detailErr
		}
		for text, reply := range detailFor {
			if strings.Contains(prompt, text) {
				return core.Answer{Text: reply}, nil
			}
		}
		return core.Answer{}, errors.New("no scripted detail reply")
	}
}

func findRecord(t *testing.T, records []core.ScoreRecord, id string) core.ScoreRecord {
	t.Helper()
	for _, r := range records {
		if r.SubjectID == id {
			return r
		}
	}
	t.Fatalf("no record for subject %s", id)
	return core.ScoreRecord{}
}

func TestScoreHappyPath(t *testing.T) {
	subjects := []Subject{
		{ID: "fused", Text: "the fused answer text"},
		{ID: "w1", Text: "worker one answer text"},
		{ID: "w2", Text: "worker two answer text"},
	}
	judge := scriptedJudge(
		comparativeReply(map[string]float64{"fused": 9.0, "w1": 7.5, "w2": 6.0}),
		nil,
		map[string]string{
			"the fused answer text": detailReply(9, 9, 8.5, 9, nil, nil),
			"worker one answer text": detailReply(7.5, 8, 7, 7.5, nil, nil),
			"worker two answer text": detailReply(6, 6.5, 5.5, 6, nil, nil),
		},
		nil,
	)

	s := New(judge, Config{Judge: "judge", MinSpread: 1.0, Tolerance: 1.0}, nil, nil)
	records, report, err := s.Score(context.Background(), "q", subjects)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// ranks follow comparative order
	assert.Equal(t, "fused", records[0].SubjectID)
	assert.Equal(t, 1, records[0].Rank)
	assert.Equal(t, "w1", records[1].SubjectID)
	assert.Equal(t, "w2", records[2].SubjectID)

	// every final stays within tolerance of its comparative score
	for _, r := range records {
		require.True(t, r.HasComparative)
		require.True(t, r.HasDetail)
		assert.LessOrEqual(t, math.Abs(r.Final-r.Comparative), 1.0,
			"subject %s final %.2f drifted from comparative %.2f", r.SubjectID, r.Final, r.Comparative)
	}

	// weighted formula
	fused := records[0]
	assert.InDelta(t, 0.7*9.0+0.3*fused.DimensionMean(), fused.Final, 1e-9)

	assert.Empty(t, report.Findings)
}

func TestScoreForcesSpreadOnClusteredScores(t *testing.T) {
	subjects := []Subject{
		{ID: "a", Text: "answer number one"},
		{ID: "b", Text: "answer number two"},
		{ID: "c", Text: "answer number three"},
	}
	judge := scriptedJudge(
		comparativeReply(map[string]float64{"a": 7.5, "b": 7.5, "c": 7.5}),
		nil, nil, errors.New("detail stage off"),
	)

	s := New(judge, Config{Judge: "judge", MinSpread: 1.0, Tolerance: 1.0}, nil, nil)
	records, report, err := s.Score(context.Background(), "q", subjects)
	require.NoError(t, err)

	// forced ladder 8.5, 7.7, 6.9; ties broken by subject ID
	assert.InDelta(t, 8.5, findRecord(t, records, "a").Comparative, 1e-9)
	assert.InDelta(t, 7.7, findRecord(t, records, "b").Comparative, 1e-9)
	assert.InDelta(t, 6.9, findRecord(t, records, "c").Comparative, 1e-9)

	assert.True(t, report.Has(core.FindingSpread))

	lo, hi := records[len(records)-1].Final, records[0].Final
	assert.GreaterOrEqual(t, hi-lo, 1.0)
}

func TestScoreDoesNotForceSpreadOnIdenticalAnswers(t *testing.T) {
	same := "exactly the same answer"
	subjects := []Subject{
		{ID: "a", Text: same},
		{ID: "b", Text: "Exactly   the same ANSWER"},
	}
	judge := scriptedJudge(
		comparativeReply(map[string]float64{"a": 7.5, "b": 7.5}),
		nil, nil, errors.New("detail stage off"),
	)

	s := New(judge, Config{Judge: "judge", MinSpread: 1.0, Tolerance: 1.0}, nil, nil)
	records, report, err := s.Score(context.Background(), "q", subjects)
	require.NoError(t, err)

	assert.InDelta(t, 7.5, findRecord(t, records, "a").Comparative, 1e-9)
	assert.InDelta(t, 7.5, findRecord(t, records, "b").Comparative, 1e-9)
	assert.False(t, report.Has(core.FindingSpread))
}

func TestScoreClampsDetailIntoToleranceBand(t *testing.T) {
	subjects := []Subject{{ID: "only", Text: "the single answer"}}
	judge := scriptedJudge(
		comparativeReply(map[string]float64{"only": 6.0}),
		nil,
		map[string]string{"the single answer": detailReply(9, 9, 9, 9, nil, nil)},
		nil,
	)

	s := New(judge, Config{Judge: "judge", MinSpread: 1.0, Tolerance: 1.0}, nil, nil)
	records, report, err := s.Score(context.Background(), "q", subjects)
	require.NoError(t, err)

	rec := records[0]
	for dim, v := range rec.Dimensions {
		assert.InDelta(t, 7.0, v, 1e-9, "dimension %s", dim)
	}
	assert.InDelta(t, 0.7*6.0+0.3*7.0, rec.Final, 1e-9)
	assert.LessOrEqual(t, math.Abs(rec.Final-rec.Comparative), 1.0)

	assert.True(t, report.Has(core.FindingCalibration))
	assert.NotEmpty(t, rec.Corrections)
}

func TestScoreDegradesToDetailWhenComparativeFails(t *testing.T) {
	subjects := []Subject{{ID: "a", Text: "answer alpha"}}
	judge := scriptedJudge("", errors.New("judge down for comparative"),
		map[string]string{"answer alpha": detailReply(8, 8, 7, 8, nil, nil)}, nil)

	s := New(judge, Config{Judge: "judge"}, nil, nil)
	records, _, err := s.Score(context.Background(), "q", subjects)
	require.NoError(t, err)

	rec := records[0]
	assert.False(t, rec.HasComparative)
	assert.True(t, rec.HasDetail)
	assert.InDelta(t, rec.DimensionMean(), rec.Final, 1e-9)
}

func TestScoreDegradesToComparativeWhenDetailFails(t *testing.T) {
	subjects := []Subject{
		{ID: "a", Text: "answer alpha"},
		{ID: "b", Text: "answer beta"},
	}
	judge := scriptedJudge(
		comparativeReply(map[string]float64{"a": 8.0, "b": 6.5}),
		nil, nil, errors.New("detail judge down"),
	)

	s := New(judge, Config{Judge: "judge"}, nil, nil)
	records, _, err := s.Score(context.Background(), "q", subjects)
	require.NoError(t, err)

	for _, rec := range records {
		assert.True(t, rec.HasComparative)
		assert.False(t, rec.HasDetail)
		assert.InDelta(t, rec.Comparative, rec.Final, 1e-9)
	}
}

func TestScoreUnavailableWhenBothStagesFail(t *testing.T) {
	judge := scriptedJudge("", errors.New("down"), nil, errors.New("down"))

	s := New(judge, Config{Judge: "judge"}, nil, nil)
	_, _, err := s.Score(context.Background(), "q", []Subject{{ID: "a", Text: "x"}})
	require.ErrorIs(t, err, ErrScoringUnavailable)
}

func TestScoreDefaultsMissingComparativeSubject(t *testing.T) {
	subjects := []Subject{
		{ID: "a", Text: "answer alpha"},
		{ID: "b", Text: "answer beta"},
	}
	// judge forgets subject "b"
	judge := scriptedJudge(
		comparativeReply(map[string]float64{"a": 8.5}),
		nil, nil, errors.New("detail stage off"),
	)

	s := New(judge, Config{Judge: "judge"}, nil, nil)
	records, report, err := s.Score(context.Background(), "q", subjects)
	require.NoError(t, err)

	assert.InDelta(t, 7.0, findRecord(t, records, "b").Comparative, 1e-9)
	assert.True(t, report.Has(core.FindingCalibration))
}
