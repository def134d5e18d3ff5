package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(h *sql.DB) *SQLStore {
	return &SQLStore{db: h, now: time.Now}
}

// PutTest imports a complete definition. The test row is upserted so existing
// submissions survive; questions and choices are replaced wholesale.
func (s *SQLStore) PutTest(ctx context.Context, d Definition) error {
	if d.ID == "" {
		return errors.New("test id required")
	}
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tests (id,name,description,created_by,created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, description=EXCLUDED.description`,
			d.ID, d.Name, d.Description, d.CreatedBy, s.now().UnixMilli())
		if err != nil {
			return fmt.Errorf("upsert test: %w", err)
		}
		var owner string
		if err := tx.QueryRowContext(ctx, `SELECT created_by FROM tests WHERE id=$1`, d.ID).Scan(&owner); err != nil {
			return err
		}
		if owner != d.CreatedBy {
			return fmt.Errorf("test %s: %w", d.ID, ErrNotOwner)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE test_id=$1`, d.ID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		for i, q := range d.Questions {
			var mode any
			if q.Type == TypeFreeText {
				m := q.FreeTextMode
				if m == "" {
					m = ModeManual
				}
				mode = m
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO questions
				(id,test_id,text,type,free_text_mode,expected_answer,order_index,image_url,audio_url)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				q.ID, d.ID, q.Text, q.Type, mode, q.ExpectedAnswer, orderOr(q.OrderIndex, i),
				nullIfEmpty(q.ImageURL), nullIfEmpty(q.AudioURL)); err != nil {
				return fmt.Errorf("insert question %s: %w", q.ID, err)
			}
			for j, c := range q.Choices {
				if _, err := tx.ExecContext(ctx, `INSERT INTO choices
					(id,question_id,text,is_correct,order_index,audio_url)
					VALUES ($1,$2,$3,$4,$5,$6)`,
					c.ID, q.ID, c.Text, c.IsCorrect, orderOr(c.OrderIndex, j), nullIfEmpty(c.AudioURL)); err != nil {
					return fmt.Errorf("insert choice %s: %w", c.ID, err)
				}
			}
		}
		return nil
	})
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,name,description,created_by,created_at FROM tests WHERE id=$1`, id)
	var (
		t         Test
		desc      sql.NullString
		createdAt int64
	)
	if err := row.Scan(&t.ID, &t.Name, &desc, &t.CreatedBy, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, ErrTestNotFound
		}
		return Test{}, err
	}
	t.Description = db.NullString(desc)
	t.CreatedAt = db.Millis(createdAt)
	return t, nil
}

// TestsByCreator lists a teacher's tests, newest first.
func (s *SQLStore) TestsByCreator(ctx context.Context, userID string) ([]Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,description,created_by,created_at FROM tests
		 WHERE created_by=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Test
	for rows.Next() {
		var (
			t         Test
			desc      sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Name, &desc, &t.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		t.Description = db.NullString(desc)
		t.CreatedAt = db.Millis(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// QuestionsForTest returns the test's questions with their choices, both in
// authoring order. Answer keys are included; use TakerView before serving.
func (s *SQLStore) QuestionsForTest(ctx context.Context, testID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,test_id,text,type,free_text_mode,expected_answer,
		order_index,image_url,audio_url FROM questions WHERE test_id=$1 ORDER BY order_index, id`, testID)
	if err != nil {
		return nil, err
	}
	var (
		out   []Question
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			q                  Question
			mode, expected     sql.NullString
			imageURL, audioURL sql.NullString
		)
		if err := rows.Scan(&q.ID, &q.TestID, &q.Text, &q.Type, &mode, &expected,
			&q.OrderIndex, &imageURL, &audioURL); err != nil {
			rows.Close()
			return nil, err
		}
		q.FreeTextMode = mode.String
		q.ExpectedAnswer = db.NullString(expected)
		q.ImageURL = imageURL.String
		q.AudioURL = audioURL.String
		index[q.ID] = len(out)
		out = append(out, q)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	crows, err := s.db.QueryContext(ctx, `SELECT c.id,c.question_id,c.text,c.is_correct,c.order_index,c.audio_url
		FROM choices c JOIN questions q ON q.id = c.question_id
		WHERE q.test_id=$1 ORDER BY c.order_index, c.id`, testID)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var (
			c        Choice
			audioURL sql.NullString
		)
		if err := crows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect, &c.OrderIndex, &audioURL); err != nil {
			return nil, err
		}
		c.AudioURL = audioURL.String
		if i, ok := index[c.QuestionID]; ok {
			out[i].Choices = append(out[i].Choices, c)
		}
	}
	return out, crows.Err()
}

// CanUserAccessTest reports whether userID created the test.
func (s *SQLStore) CanUserAccessTest(ctx context.Context, testID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM tests WHERE id=$1 AND created_by=$2`, testID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func orderOr(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
