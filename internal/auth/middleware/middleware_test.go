package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/users"
)

type fakeUsers struct {
	users map[string]string // username -> password
	roles map[string]string // user id -> role
	err   error
}

func (f *fakeUsers) Authenticate(_ context.Context, username, password string) (users.User, error) {
	if f.err != nil {
		return users.User{}, f.err
	}
	if pw, ok := f.users[username]; !ok || pw != password {
		return users.User{}, users.ErrInvalidCredentials
	}
	return users.User{ID: "id-" + username, Username: username}, nil
}

func (f *fakeUsers) PrimaryRole(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.roles[userID], nil
}

func echo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(SubjectFromContext(r.Context()) + "|" + rbac.RoleFromContext(r.Context())))
	})
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("k1")
	tok, err := a.IssueJWT("u1", "teacher")
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Parse(tok)
	if err != nil || c.Sub != "u1" || c.Role != "teacher" {
		t.Fatalf("claims = %+v, err = %v", c, err)
	}

	if _, err := NewAuthService("other").Parse(tok); err == nil {
		t.Fatal("token signed with another key accepted")
	}

	expired := NewAuthService("k1")
	expired.now = func() time.Time { return time.Now().Add(-24 * time.Hour) }
	old, _ := expired.IssueJWT("u1", "teacher")
	if _, err := a.Parse(old); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestLoginHandler(t *testing.T) {
	a := NewAuthService("k1")
	creds := &fakeUsers{users: map[string]string{"ada": "pw"}, roles: map[string]string{"id-ada": "student"}}
	h := LoginHandler(a, creds)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ada","password":"pw"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	c, err := a.Parse(out.AccessToken)
	if err != nil || c.Sub != "id-ada" || c.Role != "student" || out.Role != "student" {
		t.Fatalf("token claims %+v (%v), role %q", c, err, out.Role)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ada","password":"nope"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", rec.Code)
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("k1")
	h := JWTMiddleware(a)(echo())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}

	tok, _ := a.IssueJWT("u1", "student")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "u1|student" {
		t.Fatalf("status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestAttachRoleFromDB(t *testing.T) {
	store := &fakeUsers{roles: map[string]string{"u1": "teacher"}}
	tests := []struct {
		name       string
		sub, claim string
		fallback   bool
		err        error
		wantCode   int
		wantBody   string
	}{
		{name: "stored role wins", sub: "u1", claim: "student", wantCode: 200, wantBody: "u1|teacher"},
		{name: "no role, no fallback", sub: "u2", claim: "student", wantCode: 200, wantBody: "u2|" + rbac.RoleNone},
		{name: "no role, claim fallback", sub: "u2", claim: "student", fallback: true, wantCode: 200, wantBody: "u2|student"},
		{name: "store error denies", sub: "u1", claim: "teacher", err: errors.New("db down"), wantCode: 403},
		{name: "store error with fallback", sub: "u1", claim: "teacher", fallback: true, err: errors.New("db down"), wantCode: 200, wantBody: "u1|teacher"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store.err = tc.err
			h := AttachRoleFromDB(store, tc.fallback)(echo())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			ctx := rbac.WithRole(WithSubject(req.Context(), tc.sub), tc.claim)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req.WithContext(ctx))
			if rec.Code != tc.wantCode {
				t.Fatalf("status %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantBody != "" && rec.Body.String() != tc.wantBody {
				t.Fatalf("body %q, want %q", rec.Body.String(), tc.wantBody)
			}
		})
	}
}
