package http

import (
	"errors"
	"net/http"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/users"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// POST /me/password
func ChangePasswordHandler(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if !decodeBody(w, r, &req) {
			return
		}
		err := accounts.ChangePassword(r.Context(), authmw.SubjectFromContext(r.Context()), req.OldPassword, req.NewPassword)
		if errors.Is(err, users.ErrInvalidCredentials) {
			writeMessage(w, http.StatusForbidden, "incorrect old password")
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
