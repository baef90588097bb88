// Package llm holds the semantic classification contract, prompt builders and
// the JSON hygiene shared by every caller of a language model.
package llm

import "context"

// Classifier is a single-shot text-in/text-out call with no conversation state.
// It backs category selection, parameter equivalence, decision fallback and
// structured reading extraction.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, prompt string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
