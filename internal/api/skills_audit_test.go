//go:build !windows

package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSkillLifecycleAudited(t *testing.T) {
	ts := newTestServer(t, nil)
	h := ts.srv.Handler()

	dir := filepath.Join(ts.skillsDir, "echoer")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `
name = "echoer"
skill_type = "daemon"
enabled = true
entrypoint = "run.sh"
`
	if err := os.WriteFile(filepath.Join(dir, "skill.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\nsleep 30\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ts.sup.Reconcile(); err != nil {
		t.Fatal(err)
	}

	rec, _ := doJSON(t, h, http.MethodPost, "/api/skills/echoer/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: status %d body %s", rec.Code, rec.Body)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/api/skills/echoer/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status %d body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "skill_stopped") || !strings.Contains(body, "skill_started") {
		t.Errorf("lifecycle actions missing from audit trail: %s", body)
	}
	if !strings.Contains(body, "echoer") {
		t.Errorf("audit entries do not name the skill: %s", body)
	}
}
