package review

import (
	"errors"
	"time"
)

// ErrNotSubmitted rejects grading work on a submission that is still being taken.
var ErrNotSubmitted = errors.New("submission not submitted yet")

// SubmissionForGrading is one row of a teacher's "needs grading" queue.
type SubmissionForGrading struct {
	ID            string    `json:"id"`
	TestID        string    `json:"test_id"`
	TestName      string    `json:"test_name"`
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	SubmittedAt   time.Time `json:"submitted_at"`
	UngradedCount int       `json:"ungraded_count"`
}

type GradedSubmission struct {
	ID          string    `json:"id"`
	TestID      string    `json:"test_id"`
	TestName    string    `json:"test_name"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	SubmittedAt time.Time `json:"submitted_at"`
	Score       *int      `json:"score"`
	MaxScore    *int      `json:"max_score"`
}

type AnswerForGrading struct {
	ID             string     `json:"id"`
	QuestionID     string     `json:"question_id"`
	QuestionText   string     `json:"question_text"`
	QuestionType   string     `json:"question_type"`
	ExpectedAnswer *string    `json:"expected_answer,omitempty"`
	TextResponse   *string    `json:"text_response"`
	ChoiceID       *string    `json:"choice_id"`
	ChoiceText     *string    `json:"choice_text"`
	IsCorrect      *bool      `json:"is_correct"`
	GradedAt       *time.Time `json:"graded_at,omitempty"`
	GradedBy       *string    `json:"graded_by,omitempty"`
}

type SubmissionGradingDetails struct {
	ID            string             `json:"id"`
	TestID        string             `json:"test_id"`
	TestName      string             `json:"test_name"`
	UserID        string             `json:"user_id"`
	UserName      string             `json:"user_name"`
	SubmittedAt   time.Time          `json:"submitted_at"`
	Score         *int               `json:"score"`
	MaxScore      *int               `json:"max_score"`
	IsFullyGraded bool               `json:"is_fully_graded"`
	Answers       []AnswerForGrading `json:"answers"`
}
