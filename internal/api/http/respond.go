package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/review"
	"github.com/mind-engage/mindengage-quiz/internal/submission"
	"github.com/mind-engage/mindengage-quiz/internal/users"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads one JSON value into dst and runs its validate tags.
// It writes the 400 itself and reports false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad json")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeValidation(w, err)
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeMessage(w, http.StatusBadRequest, "invalid input")
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Namespace()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var incomplete *submission.IncompleteSubmissionError
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      incomplete.Error(),
			"unanswered": incomplete.Unanswered,
		})
	case errors.Is(err, submission.ErrAccessDenied), errors.Is(err, quiz.ErrNotOwner):
		writeMessage(w, http.StatusForbidden, "access denied")
	case errors.Is(err, submission.ErrNotFound), errors.Is(err, quiz.ErrTestNotFound), errors.Is(err, users.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, submission.ErrSubmissionClosed), errors.Is(err, review.ErrNotSubmitted),
		errors.Is(err, users.ErrUsernameTaken):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, submission.ErrInvalidAnswer), errors.Is(err, quiz.ErrInvalidDefinition),
		errors.Is(err, users.ErrInvalidRole):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
