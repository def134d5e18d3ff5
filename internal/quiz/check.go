package quiz

import (
	"errors"
	"fmt"
)

var ErrInvalidDefinition = errors.New("invalid test definition")

// Check enforces the authoring rules the grading engine relies on. Field
// shapes are validated separately from struct tags.
func (d Definition) Check() error {
	seen := map[string]struct{}{}
	for _, q := range d.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %s", ErrInvalidDefinition, q.ID)
		}
		seen[q.ID] = struct{}{}

		switch q.Type {
		case TypeSingleChoice, TypeMultiAnswer:
			if len(q.Choices) == 0 {
				return fmt.Errorf("%w: question %s has no choices", ErrInvalidDefinition, q.ID)
			}
			if q.Type == TypeSingleChoice && len(q.CorrectChoiceIDs()) > 1 {
				return fmt.Errorf("%w: single choice question %s has more than one correct choice", ErrInvalidDefinition, q.ID)
			}
			if q.FreeTextMode != "" || q.ExpectedAnswer != nil {
				return fmt.Errorf("%w: choice question %s carries free text settings", ErrInvalidDefinition, q.ID)
			}
		case TypeFreeText:
			if len(q.Choices) > 0 {
				return fmt.Errorf("%w: free text question %s has choices", ErrInvalidDefinition, q.ID)
			}
			if q.FreeTextMode == ModeExactMatch && (q.ExpectedAnswer == nil || *q.ExpectedAnswer == "") {
				return fmt.Errorf("%w: exact match question %s needs an expected answer", ErrInvalidDefinition, q.ID)
			}
		}
		for _, c := range q.Choices {
			if _, dup := seen[c.ID]; dup {
				return fmt.Errorf("%w: duplicate choice id %s", ErrInvalidDefinition, c.ID)
			}
			seen[c.ID] = struct{}{}
		}
	}
	return nil
}
