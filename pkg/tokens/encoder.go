package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/snow-ghost/fusion/core"
)

// Encoder counts tokens in text.
type Encoder interface {
	Count(text string) (int, error)
}

// TiktokenEncoder implements Encoder using tiktoken-go.
type TiktokenEncoder struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEncoder creates an encoder for the given encoding name,
// e.g. "cl100k_base".
func NewTiktokenEncoder(encodingName string) (*TiktokenEncoder, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encodingName, err)
	}
	return &TiktokenEncoder{encoding: encoding}, nil
}

func (e *TiktokenEncoder) Count(text string) (int, error) {
	return len(e.encoding.Encode(text, nil, nil)), nil
}

// ApproxEncoder estimates ~4 characters per token. Used when tiktoken
// data is unavailable (offline, tests).
type ApproxEncoder struct{}

func NewApproxEncoder() *ApproxEncoder { return &ApproxEncoder{} }

func (e *ApproxEncoder) Count(text string) (int, error) {
	if len(text) == 0 {
		return 0, nil
	}
	count := len(text) / 4
	if count < 1 {
		count = 1
	}
	return count, nil
}

// Estimator fills in usage for providers that do not report it.
type Estimator struct {
	encoder Encoder
}

// NewEstimator builds an estimator on cl100k_base, falling back to the
// approximate encoder when the encoding cannot be loaded.
func NewEstimator() *Estimator {
	if enc, err := NewTiktokenEncoder("cl100k_base"); err == nil {
		return &Estimator{encoder: enc}
	}
	return &Estimator{encoder: NewApproxEncoder()}
}

// NewEstimatorWith uses a specific encoder.
func NewEstimatorWith(encoder Encoder) *Estimator {
	return &Estimator{encoder: encoder}
}

// Estimate computes usage from prompt and completion text.
func (e *Estimator) Estimate(prompt, completion string) core.Usage {
	promptTokens, err := e.encoder.Count(prompt)
	if err != nil {
		promptTokens, _ = NewApproxEncoder().Count(prompt)
	}
	completionTokens, err := e.encoder.Count(completion)
	if err != nil {
		completionTokens, _ = NewApproxEncoder().Count(completion)
	}
	return core.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// Fill returns usage unchanged if the provider reported it, otherwise
// an estimate from the texts.
func (e *Estimator) Fill(usage core.Usage, prompt, completion string) core.Usage {
	if usage.TotalTokens > 0 {
		return usage
	}
	return e.Estimate(prompt, completion)
}
