// Package llm abstracts the language model behind the relevance filter.
package llm

import "context"

// Completer produces one completion for a system/user prompt pair. The
// filter stage is the only consumer; it requires that transient
// provider failures surface as errors so its retry policy can fire.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}
