package grading

// Mark is the stored verdict of one answer row. IsCorrect is nil while ungraded.
type Mark struct {
	QuestionID string
	IsCorrect  *bool
}

// Tally derives the submission-level score from answer rows.
//
// fullyGraded is true iff no row is ungraded. score counts distinct questions
// with at least one row marked correct, so a multi-answer question whose rows
// are all marked true still earns one point. score is only meaningful when
// fullyGraded is true.
func Tally(marks []Mark) (score int, fullyGraded bool) {
	fullyGraded = true
	earned := map[string]struct{}{}
	for _, m := range marks {
		if m.IsCorrect == nil {
			fullyGraded = false
			continue
		}
		if *m.IsCorrect {
			earned[m.QuestionID] = struct{}{}
		}
	}
	return len(earned), fullyGraded
}
