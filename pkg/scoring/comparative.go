package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/oracle"
)

// Forced re-spread ladder applied when the judge refuses to
// differentiate: best subject gets spreadTopScore, each following one
// steps down by spreadStep.
const (
	spreadTopScore = 8.5
	spreadStep     = 0.8
)

type comparativeScore struct {
	score float64
	note  string
}

type comparativePayload struct {
	Scores []struct {
		Subject string  `json:"subject"`
		Score   float64 `json:"score"`
		Note    string  `json:"note"`
	} `json:"scores"`
	Rationale string `json:"rationale"`
}

// comparativeStage scores all subjects in one call and enforces the
// configured minimum spread, unless the subjects are textually
// identical (then identical scores are correct, not lazy).
func (s *Scorer) comparativeStage(ctx context.Context, query string, subjects []Subject, report *core.ConsistencyReport) (map[string]comparativeScore, error) {
	answer, err := s.invoker.Invoke(ctx, s.config.Judge, buildComparativePrompt(query, subjects))
	if err != nil {
		return nil, fmt.Errorf("comparative call: %w", err)
	}

	var payload comparativePayload
	if err := oracle.Decode(answer.Text, &payload); err != nil {
		return nil, fmt.Errorf("comparative reply: %w", err)
	}

	scores := make(map[string]comparativeScore, len(subjects))
	for _, entry := range payload.Scores {
		scores[entry.Subject] = comparativeScore{
			score: oracle.Clamp(entry.Score, 0, 10),
			note:  entry.Note,
		}
	}

	// Every subject must carry a score; a silently missing one gets a
	// neutral default and a recorded correction.
	for _, subj := range subjects {
		if _, ok := scores[subj.ID]; !ok {
			scores[subj.ID] = comparativeScore{score: 7.0}
			report.Record(core.Finding{
				Kind:       core.FindingCalibration,
				SubjectID:  subj.ID,
				Detail:     "judge omitted a comparative score",
				Correction: "defaulted to 7.0",
			})
		}
	}

	s.enforceSpread(subjects, scores, report)
	return scores, nil
}

// enforceSpread re-spreads clustered scores deterministically, keeping
// the judge's relative order.
func (s *Scorer) enforceSpread(subjects []Subject, scores map[string]comparativeScore, report *core.ConsistencyReport) {
	if len(subjects) < 2 || identicalTexts(subjects) {
		return
	}

	lo, hi := scores[subjects[0].ID].score, scores[subjects[0].ID].score
	for _, subj := range subjects[1:] {
		v := scores[subj.ID].score
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	spread := hi - lo
	if spread >= s.config.MinSpread {
		return
	}

	order := make([]string, len(subjects))
	for i, subj := range subjects {
		order[i] = subj.ID
	}
	sort.SliceStable(order, func(i, j int) bool {
		si, sj := scores[order[i]].score, scores[order[j]].score
		if si != sj {
			return si > sj
		}
		return order[i] < order[j]
	})

	for i, id := range order {
		forced := spreadTopScore - spreadStep*float64(i)
		if forced < 0 {
			forced = 0
		}
		scores[id] = comparativeScore{score: forced, note: scores[id].note}
	}

	report.Record(core.Finding{
		Kind:       core.FindingSpread,
		Detail:     fmt.Sprintf("comparative spread %.2f below minimum %.2f", spread, s.config.MinSpread),
		Correction: fmt.Sprintf("re-spread from %.1f in %.1f steps, preserving order", spreadTopScore, spreadStep),
	})
}

// identicalTexts reports whether all subjects carry the same answer
// after whitespace normalization.
func identicalTexts(subjects []Subject) bool {
	first := normalizeText(subjects[0].Text)
	for _, subj := range subjects[1:] {
		if normalizeText(subj.Text) != first {
			return false
		}
	}
	return true
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func buildComparativePrompt(query string, subjects []Subject) string {
	var b strings.Builder

	b.WriteString("You are grading answers to the same question against each other.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", query)
	for i, subj := range subjects {
		fmt.Fprintf(&b, "--- Answer %q (#%d) ---\n%s\n\n", subj.ID, i+1, subj.Text)
	}

	b.WriteString(`Score every answer from 0 to 10 RELATIVE to the others. These are
competitive scores: unless two answers are truly equivalent, their
scores must differ, and the gap between the best and the worst answer
should be at least 1.0.

Reply with ONLY a fenced JSON block:

` + "```json" + `
{
  "scores": [
    {"subject": "<id>", "score": 8.5, "note": "one sentence"}
  ],
  "rationale": "one short paragraph comparing the answers"
}
` + "```" + `

Include every answer id exactly once.
`)

	return b.String()
}
