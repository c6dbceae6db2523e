// Package report renders a finished run as a Markdown document.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/snow-ghost/fusion/core"
)

// Writer renders bundles to Markdown files.
type Writer struct {
	dir string
}

// NewWriter creates a writer saving reports under dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write renders the bundle and saves it as a timestamped Markdown
// file, returning the file path.
func (w *Writer) Write(bundle *core.Bundle) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("fusion_%s.md", bundle.StartedAt.Format("20060102_150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(Render(bundle)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Render produces the Markdown text for a bundle.
func Render(bundle *core.Bundle) string {
	var b strings.Builder

	b.WriteString("# Answer Fusion Report\n\n")
	fmt.Fprintf(&b, "- Date: %s\n", bundle.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", bundle.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Tokens: %d (prompt %d, completion %d)\n",
		bundle.TotalUsage.TotalTokens, bundle.TotalUsage.PromptTokens, bundle.TotalUsage.CompletionTokens)
	fmt.Fprintf(&b, "- Cost: %.6f\n\n", bundle.TotalCost)

	b.WriteString("## Question\n\n")
	fmt.Fprintf(&b, "%s\n\n", bundle.Query)

	b.WriteString("## Final Answer\n\n")
	fmt.Fprintf(&b, "%s\n\n", bundle.Fusion.Text)
	if bundle.Fusion.Passthrough {
		fmt.Fprintf(&b, "*Single answer passed through from %s.*\n\n", strings.Join(bundle.Fusion.Contributors, ", "))
	} else {
		fmt.Fprintf(&b, "*Fused from: %s.*\n\n", strings.Join(bundle.Fusion.Contributors, ", "))
	}

	writeSelection(&b, bundle)
	writeInvocations(&b, bundle)
	writeScores(&b, bundle)
	writeConsistency(&b, bundle)
	writePersonas(&b, bundle)

	if len(bundle.SkippedStages) > 0 {
		b.WriteString("## Skipped Stages\n\n")
		for _, stage := range bundle.SkippedStages {
			fmt.Fprintf(&b, "- %s\n", stage)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeSelection(b *strings.Builder, bundle *core.Bundle) {
	b.WriteString("## Worker Selection\n\n")
	fmt.Fprintf(b, "- Method: %s\n", bundle.Decision.Method)
	if bundle.Decision.Strategy != "" {
		fmt.Fprintf(b, "- Strategy: %s\n", bundle.Decision.Strategy)
	}
	if bundle.Decision.Confidence != "" {
		fmt.Fprintf(b, "- Confidence: %s\n", bundle.Decision.Confidence)
	}
	if qa := bundle.Decision.Analysis; qa.QuestionType != "" {
		fmt.Fprintf(b, "- Question type: %s (%s)\n", qa.QuestionType, qa.Complexity)
	}
	b.WriteString("\n| Worker | Fitness | Rationale |\n|---|---|---|\n")
	for _, w := range bundle.Decision.Workers {
		fmt.Fprintf(b, "| %s | %.1f | %s |\n", w.WorkerID, w.Fitness, w.Rationale)
	}
	b.WriteString("\n")
}

func writeInvocations(b *strings.Builder, bundle *core.Bundle) {
	b.WriteString("## Invocations\n\n")
	b.WriteString("| Worker | Status | Latency | Attempts | Tokens | Cost |\n|---|---|---|---|---|---|\n")
	for _, r := range bundle.Invocations {
		detail := ""
		if r.Error != "" {
			detail = " (" + r.Error + ")"
		}
		fmt.Fprintf(b, "| %s | %s%s | %s | %d | %d | %.6f |\n",
			r.WorkerID, r.Status, detail, r.Latency.Round(time.Millisecond), r.Attempts, r.Usage.TotalTokens, r.Cost)
	}
	b.WriteString("\n")
}

func writeScores(b *strings.Builder, bundle *core.Bundle) {
	if len(bundle.Scores) == 0 {
		return
	}
	b.WriteString("## Quality Scores\n\n")
	b.WriteString("| Rank | Subject | Final | Comparative | Completeness | Accuracy | Clarity | Relevance |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, rec := range bundle.Scores {
		fmt.Fprintf(b, "| %d | %s | %.2f | %s | %s | %s | %s | %s |\n",
			rec.Rank, rec.SubjectID, rec.Final,
			scoreCell(rec.Comparative, rec.HasComparative),
			dimCell(rec, core.DimCompleteness),
			dimCell(rec, core.DimAccuracy),
			dimCell(rec, core.DimClarity),
			dimCell(rec, core.DimRelevance),
		)
	}
	b.WriteString("\n")

	for _, rec := range bundle.Scores {
		if len(rec.Strengths) == 0 && len(rec.Weaknesses) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n", rec.SubjectID)
		for _, s := range rec.Strengths {
			fmt.Fprintf(b, "- Strength: %s\n", s)
		}
		for _, w := range rec.Weaknesses {
			fmt.Fprintf(b, "- Weakness: %s\n", w)
		}
		b.WriteString("\n")
	}
}

func writeConsistency(b *strings.Builder, bundle *core.Bundle) {
	if len(bundle.Consistency.Findings) == 0 {
		return
	}
	b.WriteString("## Consistency Findings\n\n")
	for _, f := range bundle.Consistency.Findings {
		subject := ""
		if f.SubjectID != "" {
			subject = " [" + f.SubjectID + "]"
		}
		fmt.Fprintf(b, "- **%s**%s: %s. Correction: %s\n", f.Kind, subject, f.Detail, f.Correction)
	}
	b.WriteString("\n")
}

func writePersonas(b *strings.Builder, bundle *core.Bundle) {
	if len(bundle.Personas) == 0 {
		return
	}
	b.WriteString("## Worker Profiles\n\n")
	for _, p := range bundle.Personas {
		fmt.Fprintf(b, "### %s\n\n", p.WorkerID)
		fmt.Fprintf(b, "- Style: %s\n", p.Style)
		fmt.Fprintf(b, "- Approach: %s\n", p.Approach)
		for _, c := range p.UniqueContributions {
			fmt.Fprintf(b, "- Unique: %s\n", c)
		}
		fmt.Fprintf(b, "- Advantage: %s\n", p.Advantage)
		fmt.Fprintf(b, "- Weakness: %s\n", p.Weakness)
		if len(p.BestScenarios) > 0 {
			fmt.Fprintf(b, "- Best for: %s\n", strings.Join(p.BestScenarios, ", "))
		}
		if p.Signature != "" {
			fmt.Fprintf(b, "- Signature: %q\n", p.Signature)
		}
		b.WriteString("\n")
	}
}

func scoreCell(v float64, has bool) string {
	if !has {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func dimCell(rec core.ScoreRecord, dim string) string {
	if !rec.HasDetail {
		return "-"
	}
	return fmt.Sprintf("%.1f", rec.Dimensions[dim])
}
