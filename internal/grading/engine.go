package grading

import "strings"

// Question types and free-text modes understood by the engine.
const (
	SingleChoice = "single_choice"
	MultiAnswer  = "multi_answer"
	FreeText     = "free_text"

	ModeExactMatch = "exact_match"
	ModeManual     = "manual"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type           string
	FreeTextMode   string
	ExpectedAnswer *string
	CorrectChoices []string
}

// Response is everything a submission stored for one question: the selected
// choice ids (one per answer row) and the first text response, if any.
type Response struct {
	ChoiceIDs    []string
	TextResponse *string
}

type Verdict int

const (
	Incorrect Verdict = iota
	Correct
	NeedsManual
)

func (v Verdict) String() string {
	switch v {
	case Correct:
		return "correct"
	case NeedsManual:
		return "needs_manual"
	default:
		return "incorrect"
	}
}

// Strategy grades a single question.
type Strategy interface {
	Grade(q Q, r Response) Verdict
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(q Q, r Response) Verdict
}

type defaultGrader struct {
	strategies map[string]Strategy
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			SingleChoice: singleChoiceStrategy{},
			MultiAnswer:  multiAnswerStrategy{},
			FreeText:     freeTextStrategy{},
		},
	}
}

// Grade returns NeedsManual for types without a strategy.
func (g *defaultGrader) Grade(q Q, r Response) Verdict {
	s, ok := g.strategies[q.Type]
	if !ok {
		return NeedsManual
	}
	return s.Grade(q, r)
}

// --- Strategies ---

type singleChoiceStrategy struct{}

// Only the first stored row counts; single-choice saves never write more than one.
func (singleChoiceStrategy) Grade(q Q, r Response) Verdict {
	var selected *string
	if len(r.ChoiceIDs) > 0 {
		selected = &r.ChoiceIDs[0]
	}
	return verdict(GradeSingleChoice(selected, toSet(q.CorrectChoices)))
}

type multiAnswerStrategy struct{}

func (multiAnswerStrategy) Grade(q Q, r Response) Verdict {
	return verdict(GradeMultiAnswer(r.ChoiceIDs, q.CorrectChoices))
}

type freeTextStrategy struct{}

func (freeTextStrategy) Grade(q Q, r Response) Verdict {
	if q.FreeTextMode != ModeExactMatch {
		return NeedsManual
	}
	return verdict(GradeFreeTextExactMatch(r.TextResponse, q.ExpectedAnswer))
}

// --- Pure grading rules ---

// GradeSingleChoice reports whether selected is one of the correct choices.
// It does not enforce that at most one choice is correct.
func GradeSingleChoice(selected *string, correct map[string]struct{}) bool {
	if selected == nil {
		return false
	}
	_, ok := correct[*selected]
	return ok
}

// GradeMultiAnswer compares selections and correct choices as sets.
// An empty correct set is matched only by an empty selection.
func GradeMultiAnswer(selected, correct []string) bool {
	return setEqual(toSet(selected), toSet(correct))
}

// GradeFreeTextExactMatch compares trimmed, lower-cased text. Nil or empty on
// either side is never a match.
func GradeFreeTextExactMatch(response, expected *string) bool {
	if response == nil || expected == nil || *response == "" || *expected == "" {
		return false
	}
	return normalize(*response) == normalize(*expected)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func verdict(ok bool) Verdict {
	if ok {
		return Correct
	}
	return Incorrect
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
