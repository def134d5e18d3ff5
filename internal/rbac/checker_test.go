package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChecker_DefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	tests := []struct {
		role, perm string
		want       bool
	}{
		{"student", "submission:save", true},
		{"student", "grading:grade", false},
		{"student", "test:create", false},
		{"teacher", "grading:grade", true},
		{"teacher", "submission:start", false},
		{"admin", "events:read", true},
		{RoleNone, "user:set_role", true},
		{RoleNone, "test:view", false},
		{"", "test:view", false},
		{"ghost", "test:view", false},
	}
	for _, tc := range tests {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestChecker_WildcardNamespace(t *testing.T) {
	c := NewChecker(map[string][]string{"grader": {"grading:*"}})
	if !c.Has("grader", "grading:view") || !c.Any("grader", "test:create", "grading:grade") {
		t.Fatal("namespace wildcard should match")
	}
	if c.Has("grader", "submission:start") {
		t.Fatal("wildcard leaked outside its namespace")
	}
}

func TestRequire(t *testing.T) {
	h := Require("grading:grade")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{
		"teacher": http.StatusNoContent,
		"student": http.StatusForbidden,
		"":        http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/grading/answers/a1", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %q: status %d, want %d", role, rec.Code, want)
		}
		if want == http.StatusForbidden && rec.Body.String() != "{\"error\":\"access denied\"}\n" {
			t.Errorf("role %q: body %q", role, rec.Body.String())
		}
	}
}

func TestCan(t *testing.T) {
	ctx := WithRole(context.Background(), "admin")
	if !Can(ctx, "events:read") {
		t.Fatal("admin should read events")
	}
	if Can(context.Background(), "test:view") {
		t.Fatal("no role must grant nothing")
	}
}
