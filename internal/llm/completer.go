// Package llm provides the completion capability interface used by answer
// synthesis, with an OpenAI-compatible client and a scripted mock.
package llm

import "context"

// Completer produces a completion for a prompt. Implementations must honor
// the context deadline; calls are never retried by callers because a silent
// retry could double-bill or produce a second, different answer.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
}
