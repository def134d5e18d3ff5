package submission

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAccessDenied     = errors.New("access denied")
	ErrSubmissionClosed = errors.New("submission already completed")
	ErrInvalidAnswer    = errors.New("invalid answer")
)

// IncompleteSubmissionError rejects a submit while questions remain unanswered.
type IncompleteSubmissionError struct {
	Unanswered int
}

func (e *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("please answer all questions before submitting: %d question(s) remain unanswered", e.Unanswered)
}
