package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// Store persists submissions and their answer rows.
type Store interface {
	// GetOrCreateActive returns the in-progress submission for the pair,
	// creating it if none exists. created reports whether this call made it.
	GetOrCreateActive(ctx context.Context, testID, userID string, now time.Time) (s Submission, created bool, err error)
	Get(ctx context.Context, id string) (Submission, error)
	Answers(ctx context.Context, submissionID string) ([]Answer, error)
	ListByUser(ctx context.Context, userID string) ([]WithTestInfo, error)
	// ReplaceAnswers atomically swaps every row for (submission, question).
	ReplaceAnswers(ctx context.Context, submissionID, questionID string, p AnswerPayload, now time.Time) ([]Answer, error)
	// Finalize loads the open submission and its answers inside a transaction,
	// asks plan what to write, and commits the grading and the submit together.
	Finalize(ctx context.Context, submissionID string, plan func(Submission, []Answer) (Finalization, error)) (Submission, error)
}

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
	events *syncx.EventRepo
}

func NewSQLStore(h *sql.DB, driver db.Driver, events *syncx.EventRepo) *SQLStore {
	return &SQLStore{db: h, driver: driver, events: events}
}

// SubmissionColumns matches the scan order of ScanSubmission.
const SubmissionColumns = `id,test_id,user_id,started_at,submitted_at,score,max_score,is_fully_graded,created_at`

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

func ScanSubmission(r Scanner) (Submission, error) {
	var (
		s                  Submission
		startedAt, created int64
		submittedAt        sql.NullInt64
		score, maxScore    sql.NullInt64
	)
	if err := r.Scan(&s.ID, &s.TestID, &s.UserID, &startedAt, &submittedAt,
		&score, &maxScore, &s.IsFullyGraded, &created); err != nil {
		return Submission{}, err
	}
	s.StartedAt = db.Millis(startedAt)
	s.SubmittedAt = db.NullMillis(submittedAt)
	s.Score = db.NullInt(score)
	s.MaxScore = db.NullInt(maxScore)
	s.CreatedAt = db.Millis(created)
	return s, nil
}

// AnswerColumns matches the scan order of ScanAnswer.
const AnswerColumns = `id,submission_id,question_id,choice_id,text_response,is_correct,graded_at,graded_by,created_at`

func ScanAnswer(r Scanner) (Answer, error) {
	var (
		a                  Answer
		choiceID, text, by sql.NullString
		isCorrect          sql.NullBool
		gradedAt           sql.NullInt64
		created            int64
	)
	if err := r.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &choiceID, &text,
		&isCorrect, &gradedAt, &by, &created); err != nil {
		return Answer{}, err
	}
	a.ChoiceID = db.NullString(choiceID)
	a.TextResponse = db.NullString(text)
	a.IsCorrect = db.NullBool(isCorrect)
	a.GradedAt = db.NullMillis(gradedAt)
	a.GradedBy = db.NullString(by)
	a.CreatedAt = db.Millis(created)
	return a, nil
}

func (s *SQLStore) GetOrCreateActive(ctx context.Context, testID, userID string, now time.Time) (Submission, bool, error) {
	// A concurrent submit can close the row we lost the insert race to,
	// so retry a couple of times before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		sub, err := s.active(ctx, testID, userID)
		if err == nil {
			return sub, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Submission{}, false, err
		}

		id := uuid.NewString()
		ms := now.UnixMilli()
		created := false
		err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `INSERT INTO submissions
				(id,test_id,user_id,started_at,submitted_at,score,max_score,is_fully_graded,created_at)
				VALUES ($1,$2,$3,$4,NULL,NULL,NULL,$5,$6)
				ON CONFLICT (test_id, user_id) WHERE submitted_at IS NULL DO NOTHING`,
				id, testID, userID, ms, false, ms)
			if err != nil {
				return fmt.Errorf("insert submission: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			created = true
			return s.events.Append(ctx, tx, syncx.TypeSubmissionStarted, id,
				map[string]string{"test_id": testID, "user_id": userID})
		})
		if err != nil {
			return Submission{}, false, err
		}
		if created {
			sub, err := s.Get(ctx, id)
			return sub, true, err
		}
	}
	return Submission{}, false, errors.New("could not settle on an active submission")
}

func (s *SQLStore) active(ctx context.Context, testID, userID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+SubmissionColumns+` FROM submissions
		WHERE test_id=$1 AND user_id=$2 AND submitted_at IS NULL LIMIT 1`, testID, userID)
	sub, err := ScanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Submission, error) {
	return s.get(ctx, s.db, id, false)
}

func (s *SQLStore) get(ctx context.Context, x db.DBTX, id string, lock bool) (Submission, error) {
	q := `SELECT ` + SubmissionColumns + ` FROM submissions WHERE id=$1`
	if lock {
		q += db.ForUpdate(s.driver)
	}
	sub, err := ScanSubmission(x.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return sub, err
}

func (s *SQLStore) Answers(ctx context.Context, submissionID string) ([]Answer, error) {
	return s.answers(ctx, s.db, submissionID)
}

func (s *SQLStore) answers(ctx context.Context, x db.DBTX, submissionID string) ([]Answer, error) {
	rows, err := x.QueryContext(ctx, `SELECT `+AnswerColumns+` FROM answers
		WHERE submission_id=$1 ORDER BY question_id, created_at, id`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		a, err := ScanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByUser returns in-progress submissions first, then the rest by most
// recent start.
func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]WithTestInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id,s.test_id,s.user_id,s.started_at,s.submitted_at,
			s.score,s.max_score,s.is_fully_graded,s.created_at, t.id,t.name,t.description
		FROM submissions s JOIN tests t ON t.id = s.test_id
		WHERE s.user_id=$1
		ORDER BY CASE WHEN s.submitted_at IS NULL THEN 0 ELSE 1 END, s.started_at DESC, s.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WithTestInfo{}
	for rows.Next() {
		var (
			w                  WithTestInfo
			startedAt, created int64
			submittedAt        sql.NullInt64
			score, maxScore    sql.NullInt64
			desc               sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.TestID, &w.UserID, &startedAt, &submittedAt, &score, &maxScore,
			&w.IsFullyGraded, &created, &w.Test.ID, &w.Test.Name, &desc); err != nil {
			return nil, err
		}
		w.StartedAt = db.Millis(startedAt)
		w.SubmittedAt = db.NullMillis(submittedAt)
		w.Score = db.NullInt(score)
		w.MaxScore = db.NullInt(maxScore)
		w.CreatedAt = db.Millis(created)
		w.Test.Description = db.NullString(desc)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLStore) ReplaceAnswers(ctx context.Context, submissionID, questionID string, p AnswerPayload, now time.Time) ([]Answer, error) {
	out := []Answer{}
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		sub, err := s.get(ctx, tx, submissionID, true)
		if err != nil {
			return err
		}
		if !sub.InProgress() {
			return ErrSubmissionClosed
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM answers WHERE submission_id=$1 AND question_id=$2`, submissionID, questionID); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
		created := now.UTC().Truncate(time.Millisecond)
		for _, r := range answerRows(p) {
			a := Answer{
				ID:           uuid.NewString(),
				SubmissionID: submissionID,
				QuestionID:   questionID,
				ChoiceID:     r.choiceID,
				TextResponse: r.text,
				CreatedAt:    created,
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO answers
				(id,submission_id,question_id,choice_id,text_response,is_correct,graded_at,graded_by,created_at)
				VALUES ($1,$2,$3,$4,$5,NULL,NULL,NULL,$6)`,
				a.ID, a.SubmissionID, a.QuestionID, a.ChoiceID, a.TextResponse, created.UnixMilli()); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) Finalize(ctx context.Context, submissionID string, plan func(Submission, []Answer) (Finalization, error)) (Submission, error) {
	var out Submission
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		sub, err := s.get(ctx, tx, submissionID, true)
		if err != nil {
			return err
		}
		if !sub.InProgress() {
			return ErrSubmissionClosed
		}
		answers, err := s.answers(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		f, err := plan(sub, answers)
		if err != nil {
			return err
		}

		ms := f.SubmittedAt.UnixMilli()
		for _, id := range f.StaleAnswers {
			if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE id=$1`, id); err != nil {
				return fmt.Errorf("drop stale answer: %w", err)
			}
		}
		for id, correct := range f.Marks {
			if _, err := tx.ExecContext(ctx,
				`UPDATE answers SET is_correct=$1, graded_at=$2, graded_by=NULL WHERE id=$3`,
				correct, ms, id); err != nil {
				return fmt.Errorf("grade answer: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `UPDATE submissions
			SET submitted_at=$1, max_score=$2, score=$3, is_fully_graded=$4
			WHERE id=$5 AND submitted_at IS NULL`,
			ms, f.MaxScore, f.Score, f.IsFullyGraded, submissionID)
		if err != nil {
			return fmt.Errorf("close submission: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return ErrSubmissionClosed
		}
		if err := s.events.Append(ctx, tx, syncx.TypeSubmissionSubmitted, submissionID, map[string]any{
			"test_id":         sub.TestID,
			"user_id":         sub.UserID,
			"score":           f.Score,
			"max_score":       f.MaxScore,
			"is_fully_graded": f.IsFullyGraded,
		}); err != nil {
			return err
		}

		submittedAt := db.Millis(ms)
		maxScore := f.MaxScore
		sub.SubmittedAt = &submittedAt
		sub.MaxScore = &maxScore
		sub.Score = f.Score
		sub.IsFullyGraded = f.IsFullyGraded
		out = sub
		return nil
	})
	return out, err
}
