// Package question turns a customer context into an ordered, typed question
// set via a content generation backend with a strict JSON contract.
package question

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/surveus/surveus/internal/genai"
)

// ChatCompleter is the interface for JSON-mode chat completion.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, messages []genai.Message) (string, error)
}

// Generator produces personalized question sets.
type Generator struct {
	client ChatCompleter
}

// NewGenerator creates a Generator using the given completion client.
func NewGenerator(client ChatCompleter) *Generator {
	return &Generator{client: client}
}

// Generate builds the prompt for the context, calls the backend, and parses
// the reply strictly. Any shape deviation is a generation failure: the caller
// must skip this customer rather than provision a broken form.
func (g *Generator) Generate(ctx context.Context, cc Context) (Set, error) {
	messages, err := BuildPrompt(cc)
	if err != nil {
		return Set{}, err
	}

	raw, err := g.client.CompleteJSON(ctx, messages)
	if err != nil {
		return Set{}, fmt.Errorf("question generation call: %w", err)
	}

	var set Set
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return Set{}, fmt.Errorf("parsing generated question set: %w", err)
	}

	if set.Metadata.Language == "" {
		set.Metadata.Language = DefaultLanguage
	}

	if err := Validate(set); err != nil {
		return Set{}, fmt.Errorf("generated question set invalid: %w", err)
	}

	return set, nil
}

// Validate checks the structural contract of a question set: a non-empty
// questions array, type-specific fields present, and open-ended questions
// capped at half the set.
func Validate(set Set) error {
	if len(set.Questions) == 0 {
		return fmt.Errorf("questions array is missing or empty")
	}

	openEnded := 0
	for i, q := range set.Questions {
		if q.Text == "" {
			return fmt.Errorf("question %d: text is empty", i)
		}
		switch q.Type {
		case MultipleChoice:
			if len(q.Options) < 2 {
				return fmt.Errorf("question %d: multiple_choice requires at least two options", i)
			}
		case Rating:
			if q.Scale == nil {
				return fmt.Errorf("question %d: rating requires a scale", i)
			}
			if q.Scale.Min >= q.Scale.Max {
				return fmt.Errorf("question %d: scale min %d must be below max %d", i, q.Scale.Min, q.Scale.Max)
			}
		case OpenEnded:
			openEnded++
		default:
			return fmt.Errorf("question %d: unknown type %q", i, q.Type)
		}
	}

	if 2*openEnded > len(set.Questions) {
		return fmt.Errorf("%d of %d questions are open-ended, above the 50%% cap", openEnded, len(set.Questions))
	}

	return nil
}
