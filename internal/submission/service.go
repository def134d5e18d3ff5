package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// Definitions is the read side of the test authoring subsystem.
type Definitions interface {
	GetTest(ctx context.Context, id string) (quiz.Test, error)
	QuestionsForTest(ctx context.Context, testID string) ([]quiz.Question, error)
}

// Service runs the submission lifecycle: start or resume, auto-save, submit.
// Ownership checks belong to the caller; use CanUserAccessSubmission.
type Service struct {
	store  Store
	defs   Definitions
	grader grading.Grader
	now    func() time.Time
}

func NewService(store Store, defs Definitions, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, defs: defs, grader: grading.NewDefaultGrader(), now: now}
}

// GetOrCreateSubmission resumes the user's in-progress attempt at the test or
// starts a new one. Safe to call on every page load.
func (s *Service) GetOrCreateSubmission(ctx context.Context, testID, userID string) (Submission, bool, error) {
	if _, err := s.defs.GetTest(ctx, testID); err != nil {
		return Submission{}, false, err
	}
	return s.store.GetOrCreateActive(ctx, testID, userID, s.now())
}

// SaveAnswer replaces the stored answer to one question. Saving the same
// input twice leaves the same rows; saving an empty input clears the answer.
func (s *Service) SaveAnswer(ctx context.Context, submissionID, questionID string, in AnswerInput) ([]Answer, error) {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !sub.InProgress() {
		return nil, ErrSubmissionClosed
	}
	questions, err := s.defs.QuestionsForTest(ctx, sub.TestID)
	if err != nil {
		return nil, err
	}
	q, ok := findQuestion(questions, questionID)
	if !ok {
		return nil, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	p, err := PayloadFor(q, in)
	if err != nil {
		return nil, err
	}
	return s.store.ReplaceAnswers(ctx, submissionID, questionID, p, s.now())
}

// SubmitSubmission checks every question is answered, grades what can be
// graded automatically and closes the submission, all in one transaction.
func (s *Service) SubmitSubmission(ctx context.Context, submissionID string) (Submission, error) {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if !sub.InProgress() {
		return Submission{}, ErrSubmissionClosed
	}
	questions, err := s.defs.QuestionsForTest(ctx, sub.TestID)
	if err != nil {
		return Submission{}, err
	}
	now := s.now()
	return s.store.Finalize(ctx, submissionID, func(_ Submission, answers []Answer) (Finalization, error) {
		return planFinalization(s.grader, questions, answers, now)
	})
}

func (s *Service) IsSubmissionInProgress(ctx context.Context, submissionID string) (bool, error) {
	sub, err := s.store.Get(ctx, submissionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.InProgress(), nil
}

// CanUserAccessSubmission is true only for the submission's owner. Teachers
// go through the grading workflow instead.
func (s *Service) CanUserAccessSubmission(ctx context.Context, submissionID, userID string) (bool, error) {
	sub, err := s.store.Get(ctx, submissionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return userID != "" && sub.UserID == userID, nil
}

func (s *Service) GetSubmission(ctx context.Context, submissionID string) (WithAnswers, error) {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return WithAnswers{}, err
	}
	answers, err := s.store.Answers(ctx, submissionID)
	if err != nil {
		return WithAnswers{}, err
	}
	return WithAnswers{Submission: sub, Answers: answers}, nil
}

func (s *Service) SubmissionsByUser(ctx context.Context, userID string) ([]WithTestInfo, error) {
	return s.store.ListByUser(ctx, userID)
}

// AnswersByQuestion groups a submission's rows by question id.
func (s *Service) AnswersByQuestion(ctx context.Context, submissionID string) (map[string][]Answer, error) {
	answers, err := s.store.Answers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return groupByQuestion(answers), nil
}

// planFinalization decides what submit writes. It does no I/O.
func planFinalization(g grading.Grader, questions []quiz.Question, answers []Answer, now time.Time) (Finalization, error) {
	byQuestion := groupByQuestion(answers)

	known := make(map[string]struct{}, len(questions))
	unanswered := 0
	for _, q := range questions {
		known[q.ID] = struct{}{}
		if !answered(q, byQuestion[q.ID]) {
			unanswered++
		}
	}
	if unanswered > 0 {
		return Finalization{}, &IncompleteSubmissionError{Unanswered: unanswered}
	}

	f := Finalization{
		SubmittedAt:   now,
		Marks:         map[string]bool{},
		MaxScore:      len(questions),
		IsFullyGraded: true,
	}
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			f.StaleAnswers = append(f.StaleAnswers, a.ID)
		}
	}

	var marks []grading.Mark
	for _, q := range questions {
		rows := byQuestion[q.ID]
		v := g.Grade(q.GradingView(), responseOf(rows))
		if v == grading.NeedsManual {
			f.IsFullyGraded = false
			continue
		}
		correct := v == grading.Correct
		for _, a := range rows {
			f.Marks[a.ID] = correct
			marks = append(marks, grading.Mark{QuestionID: q.ID, IsCorrect: &correct})
		}
	}
	if f.IsFullyGraded {
		score, _ := grading.Tally(marks)
		f.Score = &score
	}
	return f, nil
}

func answered(q quiz.Question, rows []Answer) bool {
	for _, a := range rows {
		if q.Type == quiz.TypeFreeText {
			if a.TextResponse != nil && strings.TrimSpace(*a.TextResponse) != "" {
				return true
			}
			continue
		}
		if a.ChoiceID != nil {
			return true
		}
	}
	return false
}

func responseOf(rows []Answer) grading.Response {
	var r grading.Response
	for _, a := range rows {
		if a.ChoiceID != nil {
			r.ChoiceIDs = append(r.ChoiceIDs, *a.ChoiceID)
		}
		if a.TextResponse != nil && r.TextResponse == nil {
			r.TextResponse = a.TextResponse
		}
	}
	return r
}

func groupByQuestion(answers []Answer) map[string][]Answer {
	out := map[string][]Answer{}
	for _, a := range answers {
		out[a.QuestionID] = append(out[a.QuestionID], a)
	}
	return out
}

func findQuestion(qs []quiz.Question, id string) (quiz.Question, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return quiz.Question{}, false
}
