package http

import (
	"net/http"
	"strconv"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
)

type registerReq struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Name     string `json:"name" validate:"max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type setRoleReq struct {
	Role string `json:"role" validate:"required,oneof=student teacher"`
}

// POST /auth/register  (local accounts start without a role)
func RegisterHandler(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if !decodeBody(w, r, &req) {
			return
		}
		u, err := accounts.Create(r.Context(), req.Username, req.Name, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

// GET /me
func MeHandler(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		u, err := accounts.Get(r.Context(), sub)
		if err != nil {
			writeError(w, r, err)
			return
		}
		role, err := accounts.PrimaryRole(r.Context(), sub)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u, "role": role})
	}
}

// POST /me/role  { "role": "student|teacher" }
// Replaces the caller's role. Admin is never self-assigned.
func SetRoleHandler(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setRoleReq
		if !decodeBody(w, r, &req) {
			return
		}
		ra, err := accounts.SetRole(r.Context(), authmw.SubjectFromContext(r.Context()), req.Role)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ra)
	}
}

// GET /events?after=<seq>&limit=<n>
func EventsHandler(feed EventFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		if err != nil && r.URL.Query().Get("after") != "" {
			writeMessage(w, http.StatusBadRequest, "after must be an integer")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		evs, err := feed.Since(r.Context(), after, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, evs)
	}
}
