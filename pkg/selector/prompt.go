package selector

import (
	"fmt"
	"strings"

	"github.com/snow-ghost/fusion/pkg/catalog"
)

// buildAnalysisPrompt asks the analyst worker to analyze the query and
// rate each available worker's fit, answering in a fenced JSON block.
func buildAnalysisPrompt(query string, available []catalog.WorkerProfile, k int) string {
	var b strings.Builder

	b.WriteString("You are an expert dispatcher choosing which AI workers should answer a question.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", query)
	b.WriteString("Available workers:\n")
	for _, p := range available {
		fmt.Fprintf(&b, "- id: %s\n", p.ID)
		if len(p.Strengths) > 0 {
			fmt.Fprintf(&b, "  strengths: %s\n", strings.Join(p.Strengths, ", "))
		}
		if len(p.SuitableTasks) > 0 {
			fmt.Fprintf(&b, "  suitable tasks: %s\n", strings.Join(p.SuitableTasks, ", "))
		}
		if len(p.Ratings) > 0 {
			parts := make([]string, 0, len(p.Ratings))
			for dim, r := range p.Ratings {
				parts = append(parts, fmt.Sprintf("%s=%s", dim, r))
			}
			fmt.Fprintf(&b, "  ratings: %s\n", strings.Join(parts, ", "))
		}
		if len(p.Features) > 0 {
			fmt.Fprintf(&b, "  features: %s\n", strings.Join(p.Features, ", "))
		}
	}

	fmt.Fprintf(&b, `
Analyze the question, then rate every worker's suitability from 0 to 10.
The best %d workers will be invoked in parallel and their answers fused.

Reply with ONLY a fenced JSON block in exactly this shape:

`+"```json"+`
{
  "analysis": {
    "question_type": "factual|creative|technical|analytical|conversational",
    "complexity_level": "simple|moderate|complex",
    "required_capabilities": ["..."],
    "key_challenges": ["..."]
  },
  "candidates": [
    {"worker": "<id>", "fitness": 9.5, "reasons": ["..."], "expected_contribution": "..."}
  ],
  "strategy": "one sentence on how the chosen workers complement each other",
  "confidence": "high|medium|low"
}
`+"```"+`

Every worker id in "candidates" must be one of the listed ids.
`, k)

	return b.String()
}
