package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/submission"
)

type gradeAnswerReq struct {
	IsCorrect *bool `json:"is_correct" validate:"required"`
}

// canGrade lets admins (grading:all) through and otherwise asks check.
// Missing rows surface as 404 from check; a false answer becomes 403.
func canGrade(w http.ResponseWriter, r *http.Request, id string, check func(ctx context.Context, id, userID string) (bool, error)) bool {
	ok, err := check(r.Context(), id, authmw.SubjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return false
	}
	if !ok && !rbac.Can(r.Context(), "grading:all") {
		writeError(w, r, submission.ErrAccessDenied)
		return false
	}
	return true
}

// GET /grading/submissions?state=pending|graded
func ListGradingHandler(svc Grading) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teacher := authmw.SubjectFromContext(r.Context())
		switch state := strings.TrimSpace(r.URL.Query().Get("state")); state {
		case "", "pending":
			list, err := svc.SubmissionsNeedingGrading(r.Context(), teacher)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case "graded":
			list, err := svc.GradedSubmissions(r.Context(), teacher)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		default:
			writeMessage(w, http.StatusBadRequest, "state must be pending or graded")
		}
	}
}

// GET /grading/submissions/{submissionID}
func GetGradingHandler(svc Grading) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "submissionID"))
		if !canGrade(w, r, id, svc.CanUserGradeSubmission) {
			return
		}
		d, err := svc.SubmissionForGrading(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// POST /grading/answers/{answerID}  { "is_correct": true }
// Does not recalculate; clients follow up with .../recalculate.
func GradeAnswerHandler(svc Grading) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "answerID"))
		if !canGrade(w, r, id, svc.CanUserGradeAnswer) {
			return
		}
		var req gradeAnswerReq
		if !decodeBody(w, r, &req) {
			return
		}
		a, err := svc.GradeAnswer(r.Context(), id, *req.IsCorrect, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /grading/submissions/{submissionID}/recalculate
func RecalculateHandler(svc Grading) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "submissionID"))
		if !canGrade(w, r, id, svc.CanUserGradeSubmission) {
			return
		}
		sub, err := svc.RecalculateSubmissionScore(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}
