// Package oracle parses structured output from reasoning calls.
// Workers are asked to answer inside a fenced JSON block; replies that
// wrap the block in prose or drop the fence still decode.
package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the JSON payload embedded in a worker reply.
// It prefers a ```json fenced block, then any fenced block, then the
// outermost braces.
func ExtractJSON(text string) (string, error) {
	if block, ok := fencedBlock(text, "```json"); ok {
		return block, nil
	}
	if block, ok := fencedBlock(text, "```"); ok {
		if strings.HasPrefix(strings.TrimSpace(block), "{") {
			return block, nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in reply")
	}
	return text[start : end+1], nil
}

func fencedBlock(text, fence string) (string, bool) {
	start := strings.Index(text, fence)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(fence):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// Decode extracts the JSON payload from a reply and unmarshals it into
// out.
func Decode(text string, out any) error {
	payload, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("malformed JSON in reply: %w", err)
	}
	return nil
}

// Clamp bounds a score to the [lo, hi] range.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
