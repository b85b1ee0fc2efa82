package llm

import "context"

// MockCompleter returns scripted responses for tests.
type MockCompleter struct {
	// Response is returned for every call when Fn is nil.
	Response string
	// Fn, when set, computes the response from the prompt.
	Fn func(system, prompt string) (string, error)
	// Calls counts Complete invocations.
	Calls int
}

func (m *MockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.Calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Fn != nil {
		return m.Fn(system, prompt)
	}
	return m.Response, nil
}

func (m *MockCompleter) Close() error { return nil }
