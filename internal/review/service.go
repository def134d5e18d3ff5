// Package review is the teacher-facing side of grading: manual verdicts,
// score recalculation and the grading queues.
package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/submission"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type Service struct {
	db     *sql.DB
	driver db.Driver
	events *syncx.EventRepo
	now    func() time.Time
}

func NewService(h *sql.DB, driver db.Driver, events *syncx.EventRepo, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: h, driver: driver, events: events, now: now}
}

// GradeAnswer records a human verdict on one answer row. It does not touch
// the submission's score; call RecalculateSubmissionScore afterwards.
func (s *Service) GradeAnswer(ctx context.Context, answerID string, isCorrect bool, gradedBy string) (submission.Answer, error) {
	var out submission.Answer
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		a, err := submission.ScanAnswer(tx.QueryRowContext(ctx,
			`SELECT `+submission.AnswerColumns+` FROM answers WHERE id=$1`+db.ForUpdate(s.driver), answerID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("answer %s: %w", answerID, submission.ErrNotFound)
		}
		if err != nil {
			return err
		}
		var submittedAt sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT submitted_at FROM submissions WHERE id=$1`, a.SubmissionID).Scan(&submittedAt); err != nil {
			return err
		}
		if !submittedAt.Valid {
			return ErrNotSubmitted
		}

		now := db.Millis(s.now().UnixMilli())
		if _, err := tx.ExecContext(ctx,
			`UPDATE answers SET is_correct=$1, graded_at=$2, graded_by=$3 WHERE id=$4`,
			isCorrect, now.UnixMilli(), gradedBy, answerID); err != nil {
			return fmt.Errorf("grade answer: %w", err)
		}
		if err := s.events.Append(ctx, tx, syncx.TypeAnswerGraded, answerID, map[string]any{
			"submission_id": a.SubmissionID,
			"question_id":   a.QuestionID,
			"is_correct":    isCorrect,
			"graded_by":     gradedBy,
		}); err != nil {
			return err
		}
		a.IsCorrect = &isCorrect
		a.GradedAt = &now
		a.GradedBy = &gradedBy
		out = a
		return nil
	})
	return out, err
}

// RecalculateSubmissionScore re-derives is_fully_graded, score and max_score
// from the stored answer rows and the test's current question count.
func (s *Service) RecalculateSubmissionScore(ctx context.Context, submissionID string) (submission.Submission, error) {
	var out submission.Submission
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		sub, err := submission.ScanSubmission(tx.QueryRowContext(ctx,
			`SELECT `+submission.SubmissionColumns+` FROM submissions WHERE id=$1`+db.ForUpdate(s.driver), submissionID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("submission %s: %w", submissionID, submission.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if sub.InProgress() {
			return ErrNotSubmitted
		}

		marks, err := loadMarks(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		var maxScore int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM questions WHERE test_id=$1`, sub.TestID).Scan(&maxScore); err != nil {
			return err
		}
		score, fully := grading.Tally(marks)
		var scoreArg *int
		if fully {
			scoreArg = &score
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE submissions SET score=$1, max_score=$2, is_fully_graded=$3 WHERE id=$4`,
			scoreArg, maxScore, fully, submissionID); err != nil {
			return fmt.Errorf("update submission: %w", err)
		}
		if err := s.events.Append(ctx, tx, syncx.TypeScoreRecalculated, submissionID, map[string]any{
			"score":           scoreArg,
			"max_score":       maxScore,
			"is_fully_graded": fully,
		}); err != nil {
			return err
		}
		sub.Score = scoreArg
		sub.MaxScore = &maxScore
		sub.IsFullyGraded = fully
		out = sub
		return nil
	})
	return out, err
}

func loadMarks(ctx context.Context, x db.DBTX, submissionID string) ([]grading.Mark, error) {
	rows, err := x.QueryContext(ctx,
		`SELECT question_id, is_correct FROM answers WHERE submission_id=$1`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []grading.Mark
	for rows.Next() {
		var (
			m  grading.Mark
			ok sql.NullBool
		)
		if err := rows.Scan(&m.QuestionID, &ok); err != nil {
			return nil, err
		}
		m.IsCorrect = db.NullBool(ok)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SubmissionsNeedingGrading lists submitted, not fully graded submissions to
// the teacher's tests, most recently submitted first.
func (s *Service) SubmissionsNeedingGrading(ctx context.Context, teacherID string) ([]SubmissionForGrading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.test_id, t.name, s.user_id, COALESCE(u.name, ''),
			s.submitted_at,
			(SELECT COUNT(*) FROM answers a WHERE a.submission_id = s.id AND a.is_correct IS NULL)
		FROM submissions s
		JOIN tests t ON t.id = s.test_id
		LEFT JOIN users u ON u.id = s.user_id
		WHERE t.created_by=$1 AND s.submitted_at IS NOT NULL AND NOT s.is_fully_graded
		ORDER BY s.submitted_at DESC, s.id`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SubmissionForGrading{}
	for rows.Next() {
		var (
			r           SubmissionForGrading
			submittedAt int64
		)
		if err := rows.Scan(&r.ID, &r.TestID, &r.TestName, &r.UserID, &r.UserName,
			&submittedAt, &r.UngradedCount); err != nil {
			return nil, err
		}
		r.SubmittedAt = db.Millis(submittedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GradedSubmissions lists fully graded submissions to the teacher's tests,
// most recently submitted first.
func (s *Service) GradedSubmissions(ctx context.Context, teacherID string) ([]GradedSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.test_id, t.name, s.user_id, COALESCE(u.name, ''),
			s.submitted_at, s.score, s.max_score
		FROM submissions s
		JOIN tests t ON t.id = s.test_id
		LEFT JOIN users u ON u.id = s.user_id
		WHERE t.created_by=$1 AND s.submitted_at IS NOT NULL AND s.is_fully_graded
		ORDER BY s.submitted_at DESC, s.id`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GradedSubmission{}
	for rows.Next() {
		var (
			r               GradedSubmission
			submittedAt     int64
			score, maxScore sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.TestID, &r.TestName, &r.UserID, &r.UserName,
			&submittedAt, &score, &maxScore); err != nil {
			return nil, err
		}
		r.SubmittedAt = db.Millis(submittedAt)
		r.Score = db.NullInt(score)
		r.MaxScore = db.NullInt(maxScore)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SubmissionForGrading returns the full grading view of a submitted
// submission. In-progress submissions are reported as not found.
func (s *Service) SubmissionForGrading(ctx context.Context, submissionID string) (SubmissionGradingDetails, error) {
	var (
		d               SubmissionGradingDetails
		submittedAt     sql.NullInt64
		score, maxScore sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT s.id, s.test_id, t.name, s.user_id, COALESCE(u.name, ''),
			s.submitted_at, s.score, s.max_score, s.is_fully_graded
		FROM submissions s
		JOIN tests t ON t.id = s.test_id
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.id=$1`, submissionID).Scan(&d.ID, &d.TestID, &d.TestName, &d.UserID, &d.UserName,
		&submittedAt, &score, &maxScore, &d.IsFullyGraded)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !submittedAt.Valid) {
		return SubmissionGradingDetails{}, fmt.Errorf("submission %s: %w", submissionID, submission.ErrNotFound)
	}
	if err != nil {
		return SubmissionGradingDetails{}, err
	}
	d.SubmittedAt = db.Millis(submittedAt.Int64)
	d.Score = db.NullInt(score)
	d.MaxScore = db.NullInt(maxScore)

	rows, err := s.db.QueryContext(ctx, `SELECT a.id, a.question_id, COALESCE(q.text, ''), COALESCE(q.type, ''),
			q.expected_answer, a.text_response, a.choice_id, c.text, a.is_correct, a.graded_at, a.graded_by
		FROM answers a
		LEFT JOIN questions q ON q.id = a.question_id
		LEFT JOIN choices c ON c.id = a.choice_id
		WHERE a.submission_id=$1
		ORDER BY COALESCE(q.order_index, 0), a.question_id, a.created_at, a.id`, submissionID)
	if err != nil {
		return SubmissionGradingDetails{}, err
	}
	defer rows.Close()
	d.Answers = []AnswerForGrading{}
	for rows.Next() {
		var (
			a                          AnswerForGrading
			expected, text, choiceText sql.NullString
			choiceID, gradedBy         sql.NullString
			isCorrect                  sql.NullBool
			gradedAt                   sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.QuestionText, &a.QuestionType, &expected,
			&text, &choiceID, &choiceText, &isCorrect, &gradedAt, &gradedBy); err != nil {
			return SubmissionGradingDetails{}, err
		}
		a.ExpectedAnswer = db.NullString(expected)
		a.TextResponse = db.NullString(text)
		a.ChoiceID = db.NullString(choiceID)
		a.ChoiceText = db.NullString(choiceText)
		a.IsCorrect = db.NullBool(isCorrect)
		a.GradedAt = db.NullMillis(gradedAt)
		a.GradedBy = db.NullString(gradedBy)
		d.Answers = append(d.Answers, a)
	}
	return d, rows.Err()
}

// CanUserGradeSubmission is true when userID created the submission's test.
func (s *Service) CanUserGradeSubmission(ctx context.Context, submissionID, userID string) (bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT t.created_by FROM submissions s
		JOIN tests t ON t.id = s.test_id WHERE s.id=$1`, submissionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("submission %s: %w", submissionID, submission.ErrNotFound)
	}
	if err != nil {
		return false, err
	}
	return userID != "" && owner == userID, nil
}

// CanUserGradeAnswer is true when userID created the test the answer's
// submission belongs to.
func (s *Service) CanUserGradeAnswer(ctx context.Context, answerID, userID string) (bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT t.created_by FROM answers a
		JOIN submissions s ON s.id = a.submission_id
		JOIN tests t ON t.id = s.test_id WHERE a.id=$1`, answerID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("answer %s: %w", answerID, submission.ErrNotFound)
	}
	if err != nil {
		return false, err
	}
	return userID != "" && owner == userID, nil
}
