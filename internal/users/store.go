// Package users keeps local accounts and their role assignments.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUsernameTaken      = errors.New("username already taken")
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type RoleAssignment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidRole reports whether role is one the rbac policy knows.
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

type Store struct {
	db   *sql.DB
	now  func() time.Time
	cost int
}

func NewStore(h *sql.DB) *Store {
	return &Store{db: h, now: time.Now, cost: 12}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Store) WithHashCost(cost int) *Store {
	s.cost = cost
	return s
}

// Create adds a local account with a bcrypt-hashed password.
func (s *Store) Create(ctx context.Context, username, name, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, errors.New("username and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Username: username, Name: name, CreatedAt: db.Millis(s.now().UnixMilli())}
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (id,username,name,password_hash,created_at)
		VALUES ($1,$2,$3,$4,$5) ON CONFLICT (username) DO NOTHING`,
		u.ID, u.Username, u.Name, string(hash), u.CreatedAt.UnixMilli())
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrUsernameTaken
	}
	return u, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	var (
		u       User
		hash    string
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id,username,name,password_hash,created_at FROM users WHERE username=$1`,
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &u.Name, &hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	u.CreatedAt = db.Millis(created)
	return u, nil
}

func (s *Store) Get(ctx context.Context, id string) (User, error) {
	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id,username,name,created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = db.Millis(created)
	return u, nil
}

// PrimaryRole returns the user's oldest role assignment, or "" when the user
// has none.
func (s *Store) PrimaryRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM user_roles WHERE user_id=$1 ORDER BY created_at, id LIMIT 1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

// SetRole replaces every role the user holds with a single assignment.
func (s *Store) SetRole(ctx context.Context, userID, role string) (RoleAssignment, error) {
	if !ValidRole(role) {
		return RoleAssignment{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	ra := RoleAssignment{ID: uuid.NewString(), UserID: userID, Role: role, CreatedAt: db.Millis(s.now().UnixMilli())}
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1`, userID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=$1`, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO user_roles (id,user_id,role,created_at) VALUES ($1,$2,$3,$4)`,
			ra.ID, ra.UserID, ra.Role, ra.CreatedAt.UnixMilli())
		return err
	})
	if err != nil {
		return RoleAssignment{}, err
	}
	return ra, nil
}

// ChangePassword replaces the hash after checking the current password.
func (s *Store) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return errors.New("new password required")
	}
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID)
	return err
}

// Account is one row of a roster import.
type Account struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Name     string `json:"name" validate:"max=200"`
	Role     string `json:"role" validate:"omitempty,oneof=student teacher admin"`
	Password string `json:"password,omitempty" validate:"max=72"`
}

// Upsert imports a roster in one transaction, matching existing users by
// username. New accounts need a password; for existing ones an empty password
// keeps the current hash. Role defaults to student and replaces any prior role.
func (s *Store) Upsert(ctx context.Context, accounts []Account) (inserted, updated int, err error) {
	ms := s.now().UnixMilli()
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		for _, a := range accounts {
			a.Username = strings.TrimSpace(a.Username)
			if a.Role == "" {
				a.Role = RoleStudent
			}
			if !ValidRole(a.Role) {
				return fmt.Errorf("%w: %q", ErrInvalidRole, a.Role)
			}
			var hash string
			if a.Password != "" {
				b, err := bcrypt.GenerateFromPassword([]byte(a.Password), s.cost)
				if err != nil {
					return err
				}
				hash = string(b)
			}

			var id string
			err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username=$1`, a.Username).Scan(&id)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				if hash == "" {
					return fmt.Errorf("password required for new user %s", a.Username)
				}
				id = uuid.NewString()
				if _, err := tx.ExecContext(ctx, `INSERT INTO users (id,username,name,password_hash,created_at)
					VALUES ($1,$2,$3,$4,$5)`, id, a.Username, a.Name, hash, ms); err != nil {
					return fmt.Errorf("insert %s: %w", a.Username, err)
				}
				inserted++
			case err != nil:
				return err
			default:
				q, args := `UPDATE users SET name=$1 WHERE id=$2`, []any{a.Name, id}
				if hash != "" {
					q, args = `UPDATE users SET name=$1, password_hash=$2 WHERE id=$3`, []any{a.Name, hash, id}
				}
				if _, err := tx.ExecContext(ctx, q, args...); err != nil {
					return fmt.Errorf("update %s: %w", a.Username, err)
				}
				updated++
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=$1`, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (id,user_id,role,created_at) VALUES ($1,$2,$3,$4)`,
				uuid.NewString(), id, a.Role, ms); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}
