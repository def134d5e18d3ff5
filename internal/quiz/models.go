package quiz

import (
	"errors"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

var (
	ErrTestNotFound = errors.New("test not found")
	ErrNotOwner     = errors.New("test belongs to another creator")
)

// Question types and free-text grading modes.
const (
	TypeSingleChoice = grading.SingleChoice
	TypeMultiAnswer  = grading.MultiAnswer
	TypeFreeText     = grading.FreeText

	ModeExactMatch = grading.ModeExactMatch
	ModeManual     = grading.ModeManual
)

type Test struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description *string   `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type Choice struct {
	ID         string `json:"id" validate:"required"`
	QuestionID string `json:"question_id,omitempty"`
	Text       string `json:"text" validate:"required,max=1000"`
	IsCorrect  bool   `json:"is_correct"`
	OrderIndex int    `json:"order_index"`
	AudioURL   string `json:"audio_url,omitempty"`
}

type Question struct {
	ID             string   `json:"id" validate:"required"`
	TestID         string   `json:"test_id,omitempty"`
	Text           string   `json:"text" validate:"required,max=5000"`
	Type           string   `json:"type" validate:"required,oneof=single_choice multi_answer free_text"`
	FreeTextMode   string   `json:"free_text_mode,omitempty" validate:"omitempty,oneof=exact_match manual"`
	ExpectedAnswer *string  `json:"expected_answer,omitempty" validate:"omitempty,max=1000"`
	OrderIndex     int      `json:"order_index"`
	ImageURL       string   `json:"image_url,omitempty"`
	AudioURL       string   `json:"audio_url,omitempty"`
	Choices        []Choice `json:"choices,omitempty" validate:"dive"`
}

// Definition is a complete test as imported in one piece.
type Definition struct {
	Test
	Questions []Question `json:"questions" validate:"min=1,dive"`
}

// CorrectChoiceIDs lists the ids of choices flagged correct, in order.
func (q Question) CorrectChoiceIDs() []string {
	var out []string
	for _, c := range q.Choices {
		if c.IsCorrect {
			out = append(out, c.ID)
		}
	}
	return out
}

// HasChoice reports whether id is one of the question's choices.
func (q Question) HasChoice(id string) bool {
	for _, c := range q.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// GradingView is the slice of the question the grading engine needs.
func (q Question) GradingView() grading.Q {
	return grading.Q{
		Type:           q.Type,
		FreeTextMode:   q.FreeTextMode,
		ExpectedAnswer: q.ExpectedAnswer,
		CorrectChoices: q.CorrectChoiceIDs(),
	}
}

// TakerView strips answer keys before questions are served to test takers.
func TakerView(qs []Question) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		q.ExpectedAnswer = nil
		choices := make([]Choice, len(q.Choices))
		for j, c := range q.Choices {
			c.IsCorrect = false
			choices[j] = c
		}
		q.Choices = choices
		out[i] = q
	}
	return out
}
