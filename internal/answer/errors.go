package answer

import "fmt"

// AnswerUnavailableError reports that the completion model failed or timed
// out during synthesis. It is surfaced to the caller as-is; synthesis never
// degrades to an empty or fabricated answer.
type AnswerUnavailableError struct {
	Err error
}

func (e *AnswerUnavailableError) Error() string {
	return fmt.Sprintf("answer unavailable: %v", e.Err)
}

func (e *AnswerUnavailableError) Unwrap() error {
	return e.Err
}
