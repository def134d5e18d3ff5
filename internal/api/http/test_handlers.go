package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

type testView struct {
	quiz.Test
	Questions []quiz.Question `json:"questions"`
}

// POST /tests  (import a complete definition; re-importing replaces questions)
func ImportTestHandler(store TestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var d quiz.Definition
		if !decodeBody(w, r, &d) {
			return
		}
		if err := d.Check(); err != nil {
			writeError(w, r, err)
			return
		}
		if strings.TrimSpace(d.ID) == "" {
			d.ID = uuid.NewString()
		}
		d.CreatedBy = authmw.SubjectFromContext(r.Context())
		if err := store.PutTest(r.Context(), d); err != nil {
			writeError(w, r, err)
			return
		}
		t, err := store.GetTest(r.Context(), d.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		qs, err := store.QuestionsForTest(r.Context(), d.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, testView{Test: t, Questions: qs})
	}
}

// GET /tests  (the caller's own tests)
func ListMyTestsHandler(store TestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.TestsByCreator(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []quiz.Test{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /tests/{testID}
// The creator sees answer keys; everyone else gets the taker view.
func GetTestHandler(store TestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID := strings.TrimSpace(chi.URLParam(r, "testID"))
		t, err := store.GetTest(r.Context(), testID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		qs, err := store.QuestionsForTest(r.Context(), testID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		owner, err := store.CanUserAccessTest(r.Context(), testID, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !owner {
			qs = quiz.TakerView(qs)
		}
		if qs == nil {
			qs = []quiz.Question{}
		}
		writeJSON(w, http.StatusOK, testView{Test: t, Questions: qs})
	}
}
