package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clawinfra/clawguard/internal/audit"
	"github.com/clawinfra/clawguard/internal/creds"
	"github.com/clawinfra/clawguard/internal/notify"
	"github.com/clawinfra/clawguard/internal/skills"
)

// handleSkills lists all skills with their live state.
func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.supervisor.List())
}

// handleSkillDetail handles /api/skills/{name}, lifecycle actions, and the
// credentials subresource.
func (s *Server) handleSkillDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/skills/"), "/")
	name := parts[0]
	if name == "" {
		writeError(w, http.StatusBadRequest, "skill name required")
		return
	}
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	if action == "credentials" {
		credName := ""
		if len(parts) > 2 {
			credName = parts[2]
		}
		s.handleCredentials(w, r, name, credName)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		state, err := s.supervisor.Get(name)
		if err != nil {
			writeSkillError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)

	case r.Method == http.MethodPost:
		s.skillLifecycle(w, r, name, action)

	default:
		writeError(w, http.StatusBadRequest, "invalid action or method")
	}
}

func (s *Server) skillLifecycle(w http.ResponseWriter, r *http.Request, name, action string) {
	var err error
	switch action {
	case "start":
		err = s.supervisor.Start(name)
	case "stop":
		err = s.supervisor.Stop(name)
	case "restart":
		err = s.supervisor.Restart(name)
	case "trigger":
		err = s.supervisor.Trigger(name)
	default:
		writeError(w, http.StatusBadRequest, "unknown action "+action)
		return
	}
	if err != nil {
		writeSkillError(w, err)
		return
	}

	event := audit.EventSkillStarted
	if action == "stop" {
		event = audit.EventSkillStopped
	}
	s.audit.Record(r.Context(), reviewerFromRequest(r), event, "", name, action)
	s.events.Publish(notify.EventSkillChanged, map[string]any{"skill": name, "action": action})
	writeJSON(w, http.StatusOK, map[string]string{"skill": name, "action": action})
}

// handleCredentials manages a skill's stored credentials. Values are write
// only: the API never returns them.
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request, skill, credName string) {
	switch {
	case credName == "" && r.Method == http.MethodGet:
		names, err := s.creds.Names(skill)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, names)

	case credName != "" && r.Method == http.MethodPut:
		var req struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == "" {
			writeError(w, http.StatusBadRequest, "value required")
			return
		}
		if err := s.creds.Set(skill, credName, req.Value); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.audit.Record(r.Context(), reviewerFromRequest(r), audit.EventCredUpdated, "", skill+"/"+credName, "")
		writeJSON(w, http.StatusOK, map[string]string{"skill": skill, "credential": credName})

	case credName != "" && r.Method == http.MethodDelete:
		if err := s.creds.Delete(skill, credName); err != nil {
			if errors.Is(err, creds.ErrNotFound) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.audit.Record(r.Context(), reviewerFromRequest(r), audit.EventCredDeleted, "", skill+"/"+credName, "")
		writeJSON(w, http.StatusOK, map[string]string{"skill": skill, "credential": credName})

	default:
		writeError(w, http.StatusBadRequest, "invalid action or method")
	}
}

// handleJobs lists scheduled jobs.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Jobs())
}

// handleJobDetail handles /api/jobs/{name}/run.
func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	name, action := splitDetailPath(r.URL.Path, "/api/jobs/")
	if name == "" || action != "run" || r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "invalid action or method")
		return
	}
	if err := s.sched.RunNow(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job": name, "action": "run"})
}

func writeSkillError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, skills.ErrSkillNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, skills.ErrAlreadyRunning), errors.Is(err, skills.ErrNotRunning),
		errors.Is(err, skills.ErrCrashLoop):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, skills.ErrCredentialMissing):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
