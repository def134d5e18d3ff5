package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/db/dbtest"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/review"
	"github.com/mind-engage/mindengage-quiz/internal/submission"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
	"github.com/mind-engage/mindengage-quiz/internal/users"
)

// fakeAuth trusts X-User / X-Role headers in place of a real token.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authmw.WithSubject(r.Context(), r.Header.Get("X-User"))
		ctx = rbac.WithRole(ctx, r.Header.Get("X-Role"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	h := dbtest.Open(t)
	events := syncx.NewEventRepo(h, "test")
	defs := quiz.NewSQLStore(h)
	r := chi.NewRouter()
	r.Use(fakeAuth)
	MountQuiz(r, Deps{
		Tests:       defs,
		Submissions: submission.NewService(submission.NewSQLStore(h, db.DriverSQLite, events), defs, nil),
		Grading:     review.NewService(h, db.DriverSQLite, events, nil),
		Accounts:    users.NewStore(h).WithHashCost(bcrypt.MinCost),
		Events:      events,
	})
	return r
}

type caller struct{ user, role string }

var (
	teacher  = caller{"teacher-1", "teacher"}
	teacher2 = caller{"teacher-2", "teacher"}
	student  = caller{"student-1", "student"}
	student2 = caller{"student-2", "student"}
	admin    = caller{"admin-1", "admin"}
)

func call(t *testing.T, h http.Handler, c caller, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", c.user)
	req.Header.Set("X-Role", c.role)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status %d, want %d: %s", rec.Code, status, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const definition = `{
  "id": "t1", "name": "Rivers",
  "questions": [
    {"id": "q1", "text": "Longest river?", "type": "single_choice",
     "choices": [{"id": "q1a", "text": "Nile", "is_correct": true}, {"id": "q1b", "text": "Thames"}]},
    {"id": "q2", "text": "Explain a delta", "type": "free_text", "free_text_mode": "manual"}
  ]
}`

func TestSubmissionAndGradingFlow(t *testing.T) {
	h := newRouter(t)

	expect(t, call(t, h, teacher, "POST", "/tests", definition), http.StatusCreated)

	rec := call(t, h, student, "GET", "/tests/t1", "")
	expect(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), `"is_correct":true`) {
		t.Fatalf("taker view leaks answer key: %s", rec.Body.String())
	}
	rec = call(t, h, teacher, "GET", "/tests/t1", "")
	if !strings.Contains(rec.Body.String(), `"is_correct":true`) {
		t.Fatalf("creator should see answer key: %s", rec.Body.String())
	}

	rec = call(t, h, student, "POST", "/submissions", `{"test_id":"t1"}`)
	expect(t, rec, http.StatusCreated)
	sub := decode[startSubmissionResp](t, rec).Submission
	rec = call(t, h, student, "POST", "/submissions", `{"test_id":"t1"}`)
	expect(t, rec, http.StatusOK)
	if again := decode[startSubmissionResp](t, rec); again.Submission.ID != sub.ID || again.Created {
		t.Fatalf("resume returned %+v", again)
	}

	base := "/submissions/" + sub.ID
	expect(t, call(t, h, student, "PUT", base+"/answers/q1", `{"choice_ids":["q1a"]}`), http.StatusOK)

	rec = call(t, h, student, "POST", base+"/submit", "")
	expect(t, rec, http.StatusUnprocessableEntity)
	if body := decode[map[string]any](t, rec); body["unanswered"] != float64(1) {
		t.Fatalf("incomplete body = %v", body)
	}

	expect(t, call(t, h, student, "PUT", base+"/answers/q2", `{"text_response":"Sediment at a river mouth"}`), http.StatusOK)
	rec = call(t, h, student, "POST", base+"/submit", "")
	expect(t, rec, http.StatusOK)
	done := decode[submission.Submission](t, rec)
	if done.IsFullyGraded || done.Score != nil || done.MaxScore == nil || *done.MaxScore != 2 {
		t.Fatalf("submitted = %+v", done)
	}
	expect(t, call(t, h, student, "POST", base+"/submit", ""), http.StatusConflict)
	expect(t, call(t, h, student, "PUT", base+"/answers/q1", `{"choice_ids":["q1b"]}`), http.StatusConflict)

	rec = call(t, h, teacher, "GET", "/grading/submissions?state=pending", "")
	expect(t, rec, http.StatusOK)
	pending := decode[[]review.SubmissionForGrading](t, rec)
	if len(pending) != 1 || pending[0].ID != sub.ID || pending[0].UngradedCount != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	rec = call(t, h, teacher, "GET", "/grading/submissions/"+sub.ID, "")
	expect(t, rec, http.StatusOK)
	details := decode[review.SubmissionGradingDetails](t, rec)
	var essay string
	for _, a := range details.Answers {
		if a.QuestionID == "q2" {
			essay = a.ID
		}
	}
	if essay == "" {
		t.Fatalf("essay answer missing: %+v", details.Answers)
	}

	expect(t, call(t, h, teacher, "POST", "/grading/answers/"+essay, `{"is_correct":true}`), http.StatusOK)
	rec = call(t, h, teacher, "POST", "/grading/submissions/"+sub.ID+"/recalculate", "")
	expect(t, rec, http.StatusOK)
	graded := decode[submission.Submission](t, rec)
	if !graded.IsFullyGraded || graded.Score == nil || *graded.Score != 2 {
		t.Fatalf("recalculated = %+v", graded)
	}

	rec = call(t, h, teacher, "GET", "/grading/submissions?state=graded", "")
	expect(t, rec, http.StatusOK)
	if list := decode[[]review.GradedSubmission](t, rec); len(list) != 1 || *list[0].Score != 2 {
		t.Fatalf("graded list = %+v", list)
	}

	rec = call(t, h, student, "GET", "/submissions", "")
	expect(t, rec, http.StatusOK)
	if mine := decode[[]submission.WithTestInfo](t, rec); len(mine) != 1 || mine[0].Test.Name != "Rivers" {
		t.Fatalf("my submissions = %+v", mine)
	}

	rec = call(t, h, admin, "GET", "/events?after=0", "")
	expect(t, rec, http.StatusOK)
	if evs := decode[[]syncx.Event](t, rec); len(evs) != 4 {
		t.Fatalf("want 4 events, got %d", len(evs))
	}
}

func TestAccessControl(t *testing.T) {
	h := newRouter(t)
	expect(t, call(t, h, teacher, "POST", "/tests", definition), http.StatusCreated)
	rec := call(t, h, student, "POST", "/submissions", `{"test_id":"t1"}`)
	expect(t, rec, http.StatusCreated)
	sub := decode[startSubmissionResp](t, rec).Submission

	denied := []struct {
		name         string
		c            caller
		method, path string
		body         string
	}{
		{"other student reads", student2, "GET", "/submissions/" + sub.ID, ""},
		{"other student saves", student2, "PUT", "/submissions/" + sub.ID + "/answers/q1", `{"choice_ids":["q1a"]}`},
		{"other student submits", student2, "POST", "/submissions/" + sub.ID + "/submit", ""},
		{"student grades", student, "GET", "/grading/submissions", ""},
		{"teacher starts", teacher, "POST", "/submissions", `{"test_id":"t1"}`},
		{"other teacher views grading", teacher2, "GET", "/grading/submissions/" + sub.ID, ""},
		{"other teacher recalculates", teacher2, "POST", "/grading/submissions/" + sub.ID + "/recalculate", ""},
		{"teacher reads events", teacher, "GET", "/events", ""},
		{"student imports", student, "POST", "/tests", definition},
		{"other teacher re-imports", teacher2, "POST", "/tests", definition},
		{"no role", caller{"x", ""}, "GET", "/tests/t1", ""},
	}
	for _, tc := range denied {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, h, tc.c, tc.method, tc.path, tc.body)
			expect(t, rec, http.StatusForbidden)
			if got := decode[map[string]any](t, rec); got["error"] != "access denied" {
				t.Fatalf("body = %v", got)
			}
		})
	}

	expect(t, call(t, h, teacher, "GET", "/grading/submissions/missing", ""), http.StatusNotFound)
	expect(t, call(t, h, teacher, "POST", "/grading/answers/missing", `{"is_correct":true}`), http.StatusNotFound)
	expect(t, call(t, h, student, "GET", "/tests/missing", ""), http.StatusNotFound)
}

func TestValidation(t *testing.T) {
	h := newRouter(t)
	expect(t, call(t, h, teacher, "POST", "/tests", definition), http.StatusCreated)

	rec := call(t, h, student, "POST", "/submissions", `{}`)
	expect(t, rec, http.StatusBadRequest)
	if body := decode[map[string]any](t, rec); body["fields"] == nil {
		t.Fatalf("validation body = %v", body)
	}
	expect(t, call(t, h, student, "POST", "/submissions", `{"test_id":`), http.StatusBadRequest)
	expect(t, call(t, h, student, "POST", "/submissions", `{"test_id":"nope"}`), http.StatusNotFound)

	rec = call(t, h, student, "POST", "/submissions", `{"test_id":"t1"}`)
	sub := decode[startSubmissionResp](t, rec).Submission
	expect(t, call(t, h, student, "PUT", "/submissions/"+sub.ID+"/answers/q1", `{"choice_ids":["q1a","q1b"]}`), http.StatusBadRequest)
	expect(t, call(t, h, student, "PUT", "/submissions/"+sub.ID+"/answers/q9", `{}`), http.StatusNotFound)

	twoCorrect := strings.Replace(definition, `{"id": "q1b", "text": "Thames"}`, `{"id": "q1b", "text": "Thames", "is_correct": true}`, 1)
	expect(t, call(t, h, teacher, "POST", "/tests", twoCorrect), http.StatusBadRequest)
	expect(t, call(t, h, teacher, "POST", "/tests", `{"name":"Empty","questions":[]}`), http.StatusBadRequest)
	expect(t, call(t, h, teacher, "GET", "/grading/submissions?state=weird", ""), http.StatusBadRequest)
}

func TestAccountsEndpoints(t *testing.T) {
	r := chi.NewRouter()
	accounts := users.NewStore(dbtest.Open(t)).WithHashCost(bcrypt.MinCost)
	r.Post("/auth/register", RegisterHandler(accounts))
	r.Group(func(pr chi.Router) {
		pr.Use(fakeAuth)
		MountQuiz(pr, Deps{Accounts: accounts})
	})

	rec := call(t, r, caller{}, "POST", "/auth/register", `{"username":"ada","name":"Ada","password":"long-enough"}`)
	expect(t, rec, http.StatusCreated)
	u := decode[users.User](t, rec)
	expect(t, call(t, r, caller{}, "POST", "/auth/register", `{"username":"ada","password":"long-enough"}`), http.StatusConflict)
	expect(t, call(t, r, caller{}, "POST", "/auth/register", `{"username":"bo","password":"short"}`), http.StatusBadRequest)

	me := caller{u.ID, rbac.RoleNone}
	expect(t, call(t, r, me, "POST", "/me/role", `{"role":"admin"}`), http.StatusBadRequest)
	expect(t, call(t, r, me, "POST", "/me/role", `{"role":"teacher"}`), http.StatusOK)
	rec = call(t, r, me, "GET", "/me", "")
	expect(t, rec, http.StatusOK)
	if body := decode[map[string]any](t, rec); body["role"] != "teacher" {
		t.Fatalf("me = %v", body)
	}

	expect(t, call(t, r, me, "POST", "/me/password", `{"old_password":"wrong","new_password":"another-one"}`), http.StatusForbidden)
	expect(t, call(t, r, me, "POST", "/me/password", `{"old_password":"long-enough","new_password":"another-one"}`), http.StatusNoContent)

	expect(t, call(t, r, me, "POST", "/users/bulk", `[]`), http.StatusForbidden)
	roster := `[{"username":"bob","password":"bob-password","role":"student"}]`
	rec = call(t, r, caller{"admin-1", "admin"}, "POST", "/users/bulk", roster)
	expect(t, rec, http.StatusOK)
	if got := decode[map[string]int](t, rec); got["inserted"] != 1 {
		t.Fatalf("bulk = %v", got)
	}
}

func TestParseRosterCSV(t *testing.T) {
	rows, err := parseRoster(strings.NewReader("\n username,role,name,password\nada,Teacher,Ada,pw-123456\nbob,student,,\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Role != "teacher" || rows[0].Password != "pw-123456" || rows[1].Username != "bob" {
		t.Fatalf("rows = %+v", rows)
	}
	if _, err := parseRoster(strings.NewReader("username,name\nada,Ada\n")); err == nil {
		t.Fatal("missing role column accepted")
	}
	rows, err = parseRoster(strings.NewReader(`[{"username":"cy","role":"admin"}]`))
	if err != nil || len(rows) != 1 || rows[0].Role != "admin" {
		t.Fatalf("json roster = %+v (%v)", rows, err)
	}
}
