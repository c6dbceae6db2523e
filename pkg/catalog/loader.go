package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Workers []WorkerProfile `yaml:"workers"`
}

// Load reads a catalog from a YAML file. An empty path falls back to
// the built-in default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a catalog from YAML bytes.
func LoadBytes(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	if err := validate(file.Workers); err != nil {
		return nil, err
	}
	return New(file.Workers), nil
}

func validate(profiles []WorkerProfile) error {
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if p.ID == "" {
			return fmt.Errorf("catalog entry missing id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate worker id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Family == "" {
			return fmt.Errorf("worker %q missing family", p.ID)
		}
	}
	return nil
}

// Default returns the built-in worker catalog.
func Default() *Catalog {
	return New([]WorkerProfile{
		{
			ID:        "openai:gpt-4o",
			Family:    "openai",
			Model:     "gpt-4o",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Strengths: []string{"reasoning", "code", "analysis"},
			SuitableTasks: []string{
				"technical explanation", "math", "programming",
			},
			Ratings: map[string]Rating{
				"reasoning": RatingOutstanding,
				"knowledge": RatingExcellent,
				"writing":   RatingExcellent,
				"code":      RatingOutstanding,
			},
			Features: []string{"structured output", "long context"},
			Pricing:  Pricing{Currency: "USD", InputPer1K: 0.0025, OutputPer1K: 0.01},
			MaxTokens: 4096,
		},
		{
			ID:        "openai:gpt-4o-mini",
			Family:    "openai",
			Model:     "gpt-4o-mini",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Strengths: []string{"speed", "summarization"},
			SuitableTasks: []string{
				"quick answers", "summaries", "classification",
			},
			Ratings: map[string]Rating{
				"reasoning": RatingGood,
				"knowledge": RatingGood,
				"writing":   RatingGood,
				"code":      RatingGood,
			},
			Features: []string{"low latency", "low cost"},
			Pricing:  Pricing{Currency: "USD", InputPer1K: 0.00015, OutputPer1K: 0.0006},
			MaxTokens: 4096,
		},
		{
			ID:        "anthropic:claude-sonnet",
			Family:    "anthropic",
			Model:     "claude-sonnet-4-20250514",
			BaseURL:   "https://api.anthropic.com",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Strengths: []string{"writing", "nuance", "long-form"},
			SuitableTasks: []string{
				"essays", "explanations", "editing",
			},
			Ratings: map[string]Rating{
				"reasoning": RatingExcellent,
				"knowledge": RatingExcellent,
				"writing":   RatingOutstanding,
				"code":      RatingExcellent,
			},
			Features: []string{"long context", "careful reasoning"},
			Pricing:  Pricing{Currency: "USD", InputPer1K: 0.003, OutputPer1K: 0.015},
			MaxTokens: 4096,
		},
		{
			ID:        "anthropic:claude-haiku",
			Family:    "anthropic",
			Model:     "claude-3-5-haiku-20241022",
			BaseURL:   "https://api.anthropic.com",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Strengths: []string{"speed", "concision"},
			SuitableTasks: []string{
				"quick answers", "extraction",
			},
			Ratings: map[string]Rating{
				"reasoning": RatingGood,
				"knowledge": RatingGood,
				"writing":   RatingGood,
				"code":      RatingMedium,
			},
			Features: []string{"low latency", "low cost"},
			Pricing:  Pricing{Currency: "USD", InputPer1K: 0.0008, OutputPer1K: 0.004},
			MaxTokens: 4096,
		},
		{
			ID:        "openai:o4-mini",
			Family:    "openai",
			Model:     "o4-mini",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Strengths: []string{"math", "step-by-step reasoning"},
			SuitableTasks: []string{
				"math", "logic puzzles", "planning",
			},
			Ratings: map[string]Rating{
				"reasoning": RatingOutstanding,
				"knowledge": RatingGood,
				"writing":   RatingMedium,
				"code":      RatingExcellent,
			},
			Features: []string{"deliberate reasoning"},
			Pricing:  Pricing{Currency: "USD", InputPer1K: 0.0011, OutputPer1K: 0.0044},
			MaxTokens: 8192,
		},
	})
}
