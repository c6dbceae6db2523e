package fuse

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/snow-ghost/fusion/core"
)

// Fuser combines successful worker answers into one.
type Fuser struct {
	invoker      core.Invoker
	fusionWorker string // empty means the best-ranked contributor fuses its peers
	logger       *zap.Logger
}

// New creates a fuser. fusionWorker names the worker performing the
// fusion call.
func New(invoker core.Invoker, fusionWorker string, logger *zap.Logger) *Fuser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fuser{invoker: invoker, fusionWorker: fusionWorker, logger: logger}
}

// Fuse produces the combined answer:
//   - zero successes is fatal,
//   - one success passes through verbatim,
//   - two or more trigger a fusion call, degrading to the
//     highest-fitness single answer if that call fails.
func (f *Fuser) Fuse(ctx context.Context, query string, decision core.SelectionDecision, results []core.InvocationResult) (core.FusionResult, error) {
	successes := core.Successes(results)

	switch len(successes) {
	case 0:
		return core.FusionResult{}, core.NewNoSuccessError(results)
	case 1:
		return core.FusionResult{
			Text:         successes[0].Answer,
			Contributors: []string{successes[0].WorkerID},
			Passthrough:  true,
		}, nil
	}

	answer, err := f.invoker.Invoke(ctx, f.worker(decision, successes), buildFusionPrompt(query, successes))
	if err != nil || strings.TrimSpace(answer.Text) == "" {
		if err != nil {
			f.logger.Warn("fusion call failed, degrading to best single answer", zap.Error(err))
		} else {
			f.logger.Warn("fusion call returned empty text, degrading to best single answer")
		}
		best := bestSuccess(decision, successes)
		return core.FusionResult{
			Text:         best.Answer,
			Contributors: []string{best.WorkerID},
			Passthrough:  true,
		}, nil
	}

	contributors := make([]string, len(successes))
	for i, r := range successes {
		contributors[i] = r.WorkerID
	}
	return core.FusionResult{
		Text:         answer.Text,
		Contributors: contributors,
		Usage:        answer.Usage,
	}, nil
}

func (f *Fuser) worker(decision core.SelectionDecision, successes []core.InvocationResult) string {
	if f.fusionWorker != "" {
		return f.fusionWorker
	}
	return bestSuccess(decision, successes).WorkerID
}

// bestSuccess returns the successful result whose worker had the
// highest selection fitness, breaking ties by worker ID.
func bestSuccess(decision core.SelectionDecision, successes []core.InvocationResult) core.InvocationResult {
	sorted := make([]core.InvocationResult, len(successes))
	copy(sorted, successes)
	sort.SliceStable(sorted, func(i, j int) bool {
		fi, fj := decision.Fitness(sorted[i].WorkerID), decision.Fitness(sorted[j].WorkerID)
		if fi != fj {
			return fi > fj
		}
		return sorted[i].WorkerID < sorted[j].WorkerID
	})
	return sorted[0]
}

// buildFusionPrompt embeds every successful answer, labeled by worker,
// and asks for one answer better than any single input.
func buildFusionPrompt(query string, successes []core.InvocationResult) string {
	var b strings.Builder

	b.WriteString("Multiple AI workers answered the same question independently. ")
	b.WriteString("Fuse their answers into a single answer that is better than any one of them.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", query)

	for i, r := range successes {
		fmt.Fprintf(&b, "--- Answer %d (worker %s) ---\n%s\n\n", i+1, r.WorkerID, r.Answer)
	}

	b.WriteString(`Guidelines:
- Keep every correct, relevant point; merge overlapping ones.
- Resolve contradictions in favor of the better-supported claim.
- Preserve the clearest explanations and the strongest examples.
- Write one coherent answer; do not mention the workers or this process.

Fused answer:`)

	return b.String()
}
