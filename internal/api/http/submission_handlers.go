package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/submission"
)

type startSubmissionReq struct {
	TestID string `json:"test_id" validate:"required"`
}

type startSubmissionResp struct {
	Submission submission.Submission `json:"submission"`
	Created    bool                  `json:"created"`
}

// POST /submissions  { "test_id": "..." }
// Resumes the caller's in-progress attempt or starts one. Safe to repeat.
func StartSubmissionHandler(svc Submissions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSubmissionReq
		if !decodeBody(w, r, &req) {
			return
		}
		sub, created, err := svc.GetOrCreateSubmission(r.Context(), req.TestID, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, startSubmissionResp{Submission: sub, Created: created})
	}
}

// GET /submissions  (caller's own, in-progress first)
func ListMySubmissionsHandler(svc Submissions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.SubmissionsByUser(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ownSubmission resolves {submissionID} and checks the caller owns it. It
// writes the error response itself and returns "" on failure.
func ownSubmission(w http.ResponseWriter, r *http.Request, svc Submissions) string {
	id := strings.TrimSpace(chi.URLParam(r, "submissionID"))
	ok, err := svc.CanUserAccessSubmission(r.Context(), id, authmw.SubjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return ""
	}
	if !ok {
		writeError(w, r, submission.ErrAccessDenied)
		return ""
	}
	return id
}

// GET /submissions/{submissionID}
func GetSubmissionHandler(svc Submissions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := ownSubmission(w, r, svc)
		if id == "" {
			return
		}
		sub, err := svc.GetSubmission(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// PUT /submissions/{submissionID}/answers/{questionID}
// { "choice_ids": [...] } or { "text_response": "..." }; {} clears the answer.
func SaveAnswerHandler(svc Submissions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := ownSubmission(w, r, svc)
		if id == "" {
			return
		}
		var in submission.AnswerInput
		if !decodeBody(w, r, &in) {
			return
		}
		rows, err := svc.SaveAnswer(r.Context(), id, strings.TrimSpace(chi.URLParam(r, "questionID")), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"answers": rows})
	}
}

// POST /submissions/{submissionID}/submit
func SubmitSubmissionHandler(svc Submissions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := ownSubmission(w, r, svc)
		if id == "" {
			return
		}
		sub, err := svc.SubmitSubmission(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}
