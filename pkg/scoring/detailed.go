package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/oracle"
)

type detailResult struct {
	dimensions  map[string]float64
	strengths   []string
	weaknesses  []string
	note        string
	corrections []string
	findings    []core.Finding
}

type detailPayload struct {
	Completeness float64  `json:"completeness"`
	Accuracy     float64  `json:"accuracy"`
	Clarity      float64  `json:"clarity"`
	Relevance    float64  `json:"relevance"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Note         string   `json:"note"`
}

// detailOne scores one subject on every dimension, then calibrates the
// dimensions into the comparative score's tolerance band.
func (s *Scorer) detailOne(ctx context.Context, query string, subject Subject, comparative map[string]comparativeScore) (detailResult, error) {
	comp, hasComp := comparative[subject.ID]

	prompt := buildDetailPrompt(query, subject, comp.score, hasComp)
	answer, err := s.invoker.Invoke(ctx, s.config.Judge, prompt)
	if err != nil {
		return detailResult{}, fmt.Errorf("detailed call for %s: %w", subject.ID, err)
	}

	var payload detailPayload
	if err := oracle.Decode(answer.Text, &payload); err != nil {
		return detailResult{}, fmt.Errorf("detailed reply for %s: %w", subject.ID, err)
	}

	res := detailResult{
		dimensions: map[string]float64{
			core.DimCompleteness: oracle.Clamp(payload.Completeness, 0, 10),
			core.DimAccuracy:     oracle.Clamp(payload.Accuracy, 0, 10),
			core.DimClarity:      oracle.Clamp(payload.Clarity, 0, 10),
			core.DimRelevance:    oracle.Clamp(payload.Relevance, 0, 10),
		},
		strengths:  payload.Strengths,
		weaknesses: payload.Weaknesses,
		note:       payload.Note,
	}

	if hasComp {
		s.calibrate(subject.ID, comp.score, &res)
	}
	return res, nil
}

// calibrate clamps each dimension into [comparative-tolerance,
// comparative+tolerance]. With all dimensions inside the band, the
// final weighted score is guaranteed to stay within tolerance of the
// comparative score.
func (s *Scorer) calibrate(subjectID string, comp float64, res *detailResult) {
	lo := oracle.Clamp(comp-s.config.Tolerance, 0, 10)
	hi := oracle.Clamp(comp+s.config.Tolerance, 0, 10)

	for _, dim := range core.Dimensions() {
		v := res.dimensions[dim]
		clamped := oracle.Clamp(v, lo, hi)
		if clamped == v {
			continue
		}
		res.dimensions[dim] = clamped
		correction := fmt.Sprintf("%s %.1f clamped to %.1f (comparative %.1f, tolerance %.1f)", dim, v, clamped, comp, s.config.Tolerance)
		res.corrections = append(res.corrections, correction)
		res.findings = append(res.findings, core.Finding{
			Kind:       core.FindingCalibration,
			SubjectID:  subjectID,
			Detail:     fmt.Sprintf("%s score %.1f outside comparative tolerance band [%.1f, %.1f]", dim, v, lo, hi),
			Correction: correction,
		})
	}
}

func buildDetailPrompt(query string, subject Subject, comp float64, hasComp bool) string {
	var b strings.Builder

	b.WriteString("You are grading one answer in detail.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", query)
	fmt.Fprintf(&b, "Answer:\n%s\n\n", subject.Text)

	if hasComp {
		fmt.Fprintf(&b, "This answer already received an overall comparative score of %.1f out of 10. Your dimension scores should be consistent with that assessment.\n\n", comp)
	}

	b.WriteString(`Score the answer from 0 to 10 on each dimension and list its
concrete strengths and weaknesses.

Reply with ONLY a fenced JSON block:

` + "```json" + `
{
  "completeness": 8.0,
  "accuracy": 8.5,
  "clarity": 7.5,
  "relevance": 9.0,
  "strengths": ["..."],
  "weaknesses": ["..."],
  "note": "one sentence summary"
}
` + "```" + `
`)

	return b.String()
}
