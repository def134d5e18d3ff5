package http

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/users"
)

// POST /users/bulk
// Accepts a JSON array of accounts, or a multipart file= holding JSON or CSV
// with columns username, role and optional name, password.
func BulkUpsertUsersHandler(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			rows []users.Account
			err  error
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, ferr := r.FormFile("file")
			if ferr != nil {
				writeMessage(w, http.StatusBadRequest, "file required")
				return
			}
			defer f.Close()
			rows, err = parseRoster(f)
		} else {
			err = json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(&rows)
		}
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "bad roster: "+err.Error())
			return
		}
		for i := range rows {
			if err := validate.Struct(rows[i]); err != nil {
				writeValidation(w, err)
				return
			}
		}
		if len(rows) == 0 {
			writeJSON(w, http.StatusOK, map[string]int{"inserted": 0, "updated": 0})
			return
		}
		ins, upd, err := accounts.Upsert(r.Context(), rows)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"inserted": ins, "updated": upd})
	}
}

// parseRoster sniffs the first non-space byte to pick JSON or CSV.
func parseRoster(r io.Reader) ([]users.Account, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err != nil {
			return nil, errors.New("empty file")
		}
		if b[0] == ' ' || b[0] == '\n' || b[0] == '\r' || b[0] == '\t' {
			_, _ = br.ReadByte()
			continue
		}
		if b[0] == '[' {
			var rows []users.Account
			err := json.NewDecoder(br).Decode(&rows)
			return rows, err
		}
		return parseCSV(br)
	}
}

func parseCSV(r io.Reader) ([]users.Account, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"username", "role"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, k string) string {
		if i, ok := idx[k]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var rows []users.Account
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, users.Account{
			Username: col(rec, "username"),
			Name:     col(rec, "name"),
			Role:     strings.ToLower(col(rec, "role")),
			Password: col(rec, "password"),
		})
	}
	return rows, nil
}
