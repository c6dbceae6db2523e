package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/snow-ghost/fusion/core"
)

// Narrative thresholds: a claimed strength should score at least
// strengthFloor on its dimension, a claimed weakness should score
// below weaknessCeiling.
const (
	strengthFloor   = 7.0
	weaknessCeiling = 8.0
)

// validateConsistency assigns ranks and repairs the cross-signal
// mismatches the two-stage pipeline can produce: final-score order
// drifting away from comparative order, and narrative claims
// contradicting dimension scores.
func (s *Scorer) validateConsistency(records []core.ScoreRecord, report *core.ConsistencyReport) {
	sortRecords(records)

	s.repairRankOrder(records, report)

	for i := range records {
		records[i].Rank = i + 1
		s.repairNarrative(&records[i], report)
	}
}

// repairRankOrder verifies the final ranking agrees with the
// comparative ranking. The comparative stage saw all answers side by
// side, so its order wins when the weighted finals disagree with it.
func (s *Scorer) repairRankOrder(records []core.ScoreRecord, report *core.ConsistencyReport) {
	allComparative := true
	for _, r := range records {
		if !r.HasComparative {
			allComparative = false
			break
		}
	}
	if !allComparative || len(records) < 2 {
		return
	}

	inOrder := sort.SliceIsSorted(records, func(i, j int) bool {
		if records[i].Comparative != records[j].Comparative {
			return records[i].Comparative > records[j].Comparative
		}
		return records[i].SubjectID < records[j].SubjectID
	})
	if inOrder {
		return
	}

	report.Record(core.Finding{
		Kind:       core.FindingRankOrder,
		Detail:     "final-score ranking disagrees with comparative ranking",
		Correction: "ranking reordered to follow comparative scores",
	})
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Comparative != records[j].Comparative {
			return records[i].Comparative > records[j].Comparative
		}
		return records[i].SubjectID < records[j].SubjectID
	})
}

// repairNarrative drops strength claims about weak dimensions and
// weakness claims about strong ones.
func (s *Scorer) repairNarrative(rec *core.ScoreRecord, report *core.ConsistencyReport) {
	if !rec.HasDetail {
		return
	}

	kept := rec.Strengths[:0]
	for _, claim := range rec.Strengths {
		dim, score, ok := claimedDimension(claim, rec.Dimensions)
		if ok && score < strengthFloor {
			report.Record(core.Finding{
				Kind:       core.FindingNarrative,
				SubjectID:  rec.SubjectID,
				Detail:     fmt.Sprintf("strength claim %q contradicts %s score %.1f", claim, dim, score),
				Correction: "claim dropped",
			})
			continue
		}
		kept = append(kept, claim)
	}
	rec.Strengths = kept

	keptW := rec.Weaknesses[:0]
	for _, claim := range rec.Weaknesses {
		dim, score, ok := claimedDimension(claim, rec.Dimensions)
		if ok && score >= weaknessCeiling {
			report.Record(core.Finding{
				Kind:       core.FindingNarrative,
				SubjectID:  rec.SubjectID,
				Detail:     fmt.Sprintf("weakness claim %q contradicts %s score %.1f", claim, dim, score),
				Correction: "claim dropped",
			})
			continue
		}
		keptW = append(keptW, claim)
	}
	rec.Weaknesses = keptW
}

// claimedDimension maps a free-text claim to the dimension it talks
// about, if any.
func claimedDimension(claim string, dimensions map[string]float64) (string, float64, bool) {
	lowered := strings.ToLower(claim)
	keywords := map[string][]string{
		core.DimCompleteness: {"complete", "thorough", "comprehensive", "coverage"},
		core.DimAccuracy:     {"accura", "correct", "factual", "precise"},
		core.DimClarity:      {"clar", "clear", "readab", "well-structured", "organized"},
		core.DimRelevance:    {"relevan", "on-topic", "focused"},
	}

	for _, dim := range core.Dimensions() {
		for _, w := range keywords[dim] {
			if strings.Contains(lowered, w) {
				score, ok := dimensions[dim]
				return dim, score, ok
			}
		}
	}
	return "", 0, false
}
