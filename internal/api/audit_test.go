package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nerrad567/ledger-core/internal/audit"
	"github.com/nerrad567/ledger-core/internal/auth"
)

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "password123", auth.RankAdmin)

	env.do(jsonRequest(http.MethodPost, "/auth/login", map[string]string{"username": "root", "password": "wrong-password"}))
	token, _ := env.login(t, "root", "password123")
	env.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	env.flushAudit()

	w := env.do(withBearer(httptest.NewRequest(http.MethodGet, "/audit?action="+audit.ActionLoginFailed, nil), token))
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d: %s", w.Code, w.Body.String())
	}

	var result audit.ListResult
	decodeBody(t, w, &result)
	if result.Total != 1 || len(result.Logs) != 1 {
		t.Fatalf("login_failed entries = %d, want 1", result.Total)
	}
	entry := result.Logs[0]
	if entry.Details["username"] != "root" {
		t.Errorf("details = %v, want attempted username", entry.Details)
	}
	if entry.RemoteAddr == "" {
		t.Error("remote address should be recorded")
	}
	if _, ok := entry.Details["password"]; ok {
		t.Error("audit entry must not contain the password")
	}

	w = env.do(withBearer(httptest.NewRequest(http.MethodGet, "/audit", nil), token))
	decodeBody(t, w, &result)
	if result.Total != 3 {
		t.Errorf("total entries = %d, want 3 (failed, succeeded, logout)", result.Total)
	}
}

func TestAuditTrail_BadPaging(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "password123", auth.RankAdmin)
	token, _ := env.login(t, "root", "password123")

	w := env.do(withBearer(httptest.NewRequest(http.MethodGet, "/audit?limit=ten", nil), token))
	assertError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
}
