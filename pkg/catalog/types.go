package catalog

import (
	"os"
	"sort"
)

// Pricing represents per-1K-token pricing for a worker.
type Pricing struct {
	Currency    string  `json:"currency" yaml:"currency"`
	InputPer1K  float64 `json:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k"`
}

// Rating grades a worker on one capability dimension.
type Rating string

const (
	RatingOutstanding Rating = "outstanding"
	RatingExcellent   Rating = "excellent"
	RatingGood        Rating = "good"
	RatingMedium      Rating = "medium"
	RatingBasic       Rating = "basic"
)

// Weight converts a rating to a 0..10 fitness contribution.
func (r Rating) Weight() float64 {
	switch r {
	case RatingOutstanding:
		return 10.0
	case RatingExcellent:
		return 9.0
	case RatingGood:
		return 7.5
	case RatingMedium:
		return 6.0
	case RatingBasic:
		return 4.5
	default:
		return 5.0
	}
}

// WorkerProfile describes one text-generation worker.
type WorkerProfile struct {
	ID            string            `json:"id" yaml:"id"`         // "openai:gpt-4o-mini"
	Family        string            `json:"family" yaml:"family"` // openai|anthropic|mock
	Model         string            `json:"model" yaml:"model"`
	BaseURL       string            `json:"base_url" yaml:"base_url"`
	APIKeyEnv     string            `json:"api_key_env" yaml:"api_key_env"`
	Strengths     []string          `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	SuitableTasks []string          `json:"suitable_tasks,omitempty" yaml:"suitable_tasks,omitempty"`
	Ratings       map[string]Rating `json:"ratings,omitempty" yaml:"ratings,omitempty"` // capability -> rating
	Features      []string          `json:"features,omitempty" yaml:"features,omitempty"`
	Pricing       Pricing           `json:"pricing" yaml:"pricing"`
	MaxTokens     int               `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature   float32           `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// HasCredentials reports whether the worker's API key is present.
// Workers without a key requirement (mock, local) are always usable.
func (p WorkerProfile) HasCredentials() bool {
	if p.APIKeyEnv == "" {
		return true
	}
	return os.Getenv(p.APIKeyEnv) != ""
}

// GeneralFitness is the static query-independent fitness of the worker,
// the mean of its capability ratings.
func (p WorkerProfile) GeneralFitness() float64 {
	if len(p.Ratings) == 0 {
		return 5.0
	}
	var sum float64
	for _, r := range p.Ratings {
		sum += r.Weight()
	}
	return sum / float64(len(p.Ratings))
}

// Covers reports whether the worker has any strength, suitable task or
// feature matching the given tag.
func (p WorkerProfile) Covers(tag string) bool {
	for _, s := range p.Strengths {
		if s == tag {
			return true
		}
	}
	for _, s := range p.SuitableTasks {
		if s == tag {
			return true
		}
	}
	for _, s := range p.Features {
		if s == tag {
			return true
		}
	}
	_, ok := p.Ratings[tag]
	return ok
}

// Catalog holds worker profiles with credential validity resolved once
// at construction time.
type Catalog struct {
	all       []WorkerProfile
	available []WorkerProfile
	byID      map[string]WorkerProfile
}

// New builds a catalog from profiles, checking each profile's
// credentials exactly once.
func New(profiles []WorkerProfile) *Catalog {
	c := &Catalog{
		all:  profiles,
		byID: make(map[string]WorkerProfile, len(profiles)),
	}
	for _, p := range profiles {
		c.byID[p.ID] = p
		if p.HasCredentials() {
			c.available = append(c.available, p)
		}
	}
	return c
}

// Available returns the workers whose credentials were valid at load
// time, sorted by ID for deterministic iteration.
func (c *Catalog) Available() []WorkerProfile {
	out := make([]WorkerProfile, len(c.available))
	copy(out, c.available)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Profiles returns every profile, including unavailable ones.
func (c *Catalog) Profiles() []WorkerProfile {
	out := make([]WorkerProfile, len(c.all))
	copy(out, c.all)
	return out
}

// Get returns the profile for a worker ID, available or not.
func (c *Catalog) Get(id string) (WorkerProfile, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Size returns the total number of profiles, including unavailable ones.
func (c *Catalog) Size() int { return len(c.all) }

// AvailableCount returns the number of usable workers.
func (c *Catalog) AvailableCount() int { return len(c.available) }
