package scoring

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/metrics"
)

// Weights of the two stages in the calibrated final score.
const (
	comparativeWeight = 0.7
	detailWeight      = 0.3
)

// Subject is one answer being scored: a worker's answer or the fused
// one.
type Subject struct {
	ID   string
	Text string
}

// Config holds scoring settings.
type Config struct {
	Judge       string  // worker performing the scoring calls
	MinSpread   float64 // minimum max-min gap demanded of comparative scores
	Tolerance   float64 // max distance of detailed dimensions from the comparative score
	Concurrency int     // detailed-stage fan-out bound
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{MinSpread: 1.0, Tolerance: 1.0, Concurrency: 2}
}

// ErrScoringUnavailable means both scoring stages failed and no scores
// exist. The pipeline treats this as a skipped stage, not a fatal
// error.
var ErrScoringUnavailable = errors.New("both scoring stages failed")

// Scorer runs the two-stage evaluation: one comparative call over all
// subjects, then one detailed per-dimension call per subject, followed
// by consistency validation.
type Scorer struct {
	invoker core.Invoker
	config  Config
	metrics *metrics.PipelineMetrics
	logger  *zap.Logger
}

// New creates a scorer. m may be nil.
func New(invoker core.Invoker, config Config, m *metrics.PipelineMetrics, logger *zap.Logger) *Scorer {
	if config.MinSpread <= 0 {
		config.MinSpread = DefaultConfig().MinSpread
	}
	if config.Tolerance <= 0 {
		config.Tolerance = DefaultConfig().Tolerance
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{invoker: invoker, config: config, metrics: m, logger: logger}
}

// Score evaluates all subjects. Each stage degrades independently: if
// one fails, scores come from the other; if both fail, it returns
// ErrScoringUnavailable.
func (s *Scorer) Score(ctx context.Context, query string, subjects []Subject) ([]core.ScoreRecord, core.ConsistencyReport, error) {
	var report core.ConsistencyReport
	if len(subjects) == 0 {
		return nil, report, nil
	}

	comparative, compErr := s.comparativeStage(ctx, query, subjects, &report)
	if compErr != nil {
		s.logger.Warn("comparative stage failed", zap.Error(compErr))
	}

	details := s.detailedStage(ctx, query, subjects, comparative, &report)

	records := make([]core.ScoreRecord, 0, len(subjects))
	anyScore := false
	for _, subj := range subjects {
		rec := core.ScoreRecord{SubjectID: subj.ID}

		if comp, ok := comparative[subj.ID]; ok {
			rec.Comparative = comp.score
			rec.HasComparative = true
			rec.Note = comp.note
		}
		if det, ok := details[subj.ID]; ok {
			rec.Dimensions = det.dimensions
			rec.HasDetail = true
			rec.Strengths = det.strengths
			rec.Weaknesses = det.weaknesses
			if rec.Note == "" {
				rec.Note = det.note
			}
			rec.Corrections = det.corrections
		}

		switch {
		case rec.HasComparative && rec.HasDetail:
			rec.Final = comparativeWeight*rec.Comparative + detailWeight*rec.DimensionMean()
		case rec.HasComparative:
			rec.Final = rec.Comparative
		case rec.HasDetail:
			rec.Final = rec.DimensionMean()
		default:
			records = append(records, rec)
			continue
		}
		anyScore = true
		records = append(records, rec)
	}

	if !anyScore {
		return nil, report, ErrScoringUnavailable
	}

	s.validateConsistency(records, &report)

	if s.metrics != nil {
		for _, f := range report.Findings {
			s.metrics.ScoreCorrections.WithLabelValues(string(f.Kind)).Inc()
		}
	}
	return records, report, nil
}

// detailedStage fans the per-subject calls out under a semaphore so
// the stage's parallelism stays bounded regardless of subject count.
func (s *Scorer) detailedStage(ctx context.Context, query string, subjects []Subject, comparative map[string]comparativeScore, report *core.ConsistencyReport) map[string]detailResult {
	sem := semaphore.NewWeighted(int64(s.config.Concurrency))
	results := make([]detailResult, len(subjects))
	oks := make([]bool, len(subjects))

	var wg sync.WaitGroup
	for i := range subjects {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			res, err := s.detailOne(ctx, query, subjects[idx], comparative)
			if err != nil {
				s.logger.Warn("detailed scoring failed for subject",
					zap.String("subject", subjects[idx].ID),
					zap.Error(err),
				)
				return
			}
			results[idx] = res
			oks[idx] = true
		}(i)
	}
	wg.Wait()

	out := make(map[string]detailResult, len(subjects))
	for i, subj := range subjects {
		if oks[i] {
			out[subj.ID] = results[i]
			for _, f := range results[i].findings {
				report.Record(f)
			}
		}
	}
	return out
}

// sortRecords orders by final score descending, comparative
// descending, subject ID ascending.
func sortRecords(records []core.ScoreRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Final != records[j].Final {
			return records[i].Final > records[j].Final
		}
		if records[i].Comparative != records[j].Comparative {
			return records[i].Comparative > records[j].Comparative
		}
		return records[i].SubjectID < records[j].SubjectID
	})
}
