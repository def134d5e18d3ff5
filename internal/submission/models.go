package submission

import "time"

type Submission struct {
	ID            string     `json:"id"`
	TestID        string     `json:"test_id"`
	UserID        string     `json:"user_id"`
	StartedAt     time.Time  `json:"started_at"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	Score         *int       `json:"score"`
	MaxScore      *int       `json:"max_score"`
	IsFullyGraded bool       `json:"is_fully_graded"`
	CreatedAt     time.Time  `json:"created_at"`
}

// InProgress reports whether the submission can still be edited.
func (s Submission) InProgress() bool { return s.SubmittedAt == nil }

type Answer struct {
	ID           string     `json:"id"`
	SubmissionID string     `json:"submission_id"`
	QuestionID   string     `json:"question_id"`
	ChoiceID     *string    `json:"choice_id"`
	TextResponse *string    `json:"text_response"`
	IsCorrect    *bool      `json:"is_correct"`
	GradedAt     *time.Time `json:"graded_at"`
	GradedBy     *string    `json:"graded_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

type WithAnswers struct {
	Submission
	Answers []Answer `json:"answers"`
}

// TestInfo is the part of the test shown next to a taker's own submissions.
type TestInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type WithTestInfo struct {
	Submission
	Test TestInfo `json:"test"`
}

// AnswerInput is the raw shape sent by clients on auto-save.
type AnswerInput struct {
	ChoiceIDs    []string `json:"choice_ids,omitempty"`
	TextResponse *string  `json:"text_response,omitempty"`
}

// Finalization is what submit writes in one transaction.
type Finalization struct {
	SubmittedAt   time.Time
	Marks         map[string]bool // answer id -> is_correct, auto-graded rows only
	StaleAnswers  []string        // rows for questions no longer in the test
	MaxScore      int
	Score         *int
	IsFullyGraded bool
}
