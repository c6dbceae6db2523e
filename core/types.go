package core

import "time"

// Usage counts tokens for a single call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Answer is the raw output of one worker call.
type Answer struct {
	Text  string
	Usage Usage
}

// QueryAnalysis describes what kind of question is being asked.
type QueryAnalysis struct {
	QuestionType  string
	Complexity    string // "simple" | "moderate" | "complex"
	RequiredTags  []string
	KeyChallenges []string
}

// RankedWorker is one selected worker with its fitness for the query.
type RankedWorker struct {
	WorkerID  string
	Fitness   float64 // 0..10
	Rationale string
}

type SelectionMethod string

const (
	SelectionReasoned SelectionMethod = "reasoned"
	SelectionFallback SelectionMethod = "fallback"
)

// SelectionDecision is the outcome of worker selection for one query.
type SelectionDecision struct {
	Analysis   QueryAnalysis
	Workers    []RankedWorker // rank order, best first
	Strategy   string
	Confidence string
	Method     SelectionMethod
}

func (d SelectionDecision) WorkerIDs() []string {
	ids := make([]string, len(d.Workers))
	for i, w := range d.Workers {
		ids[i] = w.WorkerID
	}
	return ids
}

func (d SelectionDecision) Fitness(workerID string) float64 {
	for _, w := range d.Workers {
		if w.WorkerID == workerID {
			return w.Fitness
		}
	}
	return 0
}

type InvocationStatus string

const (
	StatusSuccess InvocationStatus = "success"
	StatusFailure InvocationStatus = "failure"
	StatusTimeout InvocationStatus = "timeout"
)

// InvocationResult is the settled outcome of one worker invocation.
// Exactly one exists per selected worker, whatever happened.
type InvocationResult struct {
	WorkerID string
	Status   InvocationStatus
	Answer   string
	Error    string
	Usage    Usage
	Cost     float64
	Latency  time.Duration
	Attempts int
}

func (r InvocationResult) Succeeded() bool { return r.Status == StatusSuccess }

// Successes filters results down to successful ones, preserving order.
func Successes(results []InvocationResult) []InvocationResult {
	out := make([]InvocationResult, 0, len(results))
	for _, r := range results {
		if r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// FusedSubjectID labels the fused answer in score records.
const FusedSubjectID = "fused"

// FusionResult is the combined answer.
type FusionResult struct {
	Text         string
	Contributors []string // worker IDs whose answers fed the fusion
	Passthrough  bool     // true when a single answer was passed through verbatim
	Usage        Usage
}

// Scoring dimensions evaluated in the detailed stage.
const (
	DimCompleteness = "completeness"
	DimAccuracy     = "accuracy"
	DimClarity      = "clarity"
	DimRelevance    = "relevance"
)

func Dimensions() []string {
	return []string{DimCompleteness, DimAccuracy, DimClarity, DimRelevance}
}

// ScoreRecord holds all scores for one subject (a worker answer or the
// fused answer).
type ScoreRecord struct {
	SubjectID      string
	Comparative    float64
	HasComparative bool
	Dimensions     map[string]float64
	HasDetail      bool
	Final          float64
	Rank           int // 1 = best
	Strengths      []string
	Weaknesses     []string
	Note           string
	Corrections    []string
}

func (r ScoreRecord) DimensionMean() float64 {
	if len(r.Dimensions) == 0 {
		return 0
	}
	var sum float64
	for _, v := range r.Dimensions {
		sum += v
	}
	return sum / float64(len(r.Dimensions))
}

type FindingKind string

const (
	FindingSpread      FindingKind = "score_spread"
	FindingCalibration FindingKind = "calibration"
	FindingRankOrder   FindingKind = "rank_order"
	FindingNarrative   FindingKind = "narrative_mismatch"
)

// Finding is one detected scoring inconsistency and how it was repaired.
type Finding struct {
	Kind       FindingKind
	SubjectID  string
	Detail     string
	Correction string
}

// ConsistencyReport lists every inconsistency detected and repaired
// during scoring. Empty findings means the scores were clean.
type ConsistencyReport struct {
	Findings []Finding
}

func (c *ConsistencyReport) Record(f Finding) {
	c.Findings = append(c.Findings, f)
}

func (c ConsistencyReport) Has(kind FindingKind) bool {
	for _, f := range c.Findings {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// PersonaProfile is the qualitative characterization of one worker's
// answer produced by the personalization stage.
type PersonaProfile struct {
	WorkerID            string
	Style               string
	Approach            string
	UniqueContributions []string
	Advantage           string
	Weakness            string
	BestScenarios       []string
	Signature           string // short quote from the worker's own answer
}

// Stage names as they appear in Bundle.SkippedStages, metrics and spans.
const (
	StageSelection = "selection"
	StageDispatch  = "dispatch"
	StageFusion    = "fusion"
	StageScoring   = "scoring"
	StagePersona   = "persona"
)

// Bundle is everything one pipeline run produced.
type Bundle struct {
	Query         string
	Decision      SelectionDecision
	Invocations   []InvocationResult
	Fusion        FusionResult
	Scores        []ScoreRecord
	Consistency   ConsistencyReport
	Personas      []PersonaProfile
	SkippedStages []string
	TotalUsage    Usage
	TotalCost     float64
	StartedAt     time.Time
	Duration      time.Duration
}

func (b *Bundle) Skipped(stage string) bool {
	for _, s := range b.SkippedStages {
		if s == stage {
			return true
		}
	}
	return false
}
