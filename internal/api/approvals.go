package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/clawinfra/clawguard/internal/approval"
	"github.com/clawinfra/clawguard/internal/security"
)

// handleMessage injects a message into the agent loop and returns the reply.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}

	reply, err := s.agent.HandleMessage(r.Context(), reviewerFromRequest(r), req.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// handleApprovals lists pending actions, or all with ?status=.
func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := approval.StatusPending
	switch q := r.URL.Query().Get("status"); q {
	case "":
	case "all":
		status = ""
	default:
		status = approval.Status(q)
	}

	actions, err := s.queue.List(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// handleApprovalDetail handles /api/approvals/{id} and
// /api/approvals/{id}/approve|reject.
func (s *Server) handleApprovalDetail(w http.ResponseWriter, r *http.Request) {
	id, action := splitDetailPath(r.URL.Path, "/api/approvals/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "action id required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		pa, err := s.queue.Get(r.Context(), id)
		if err != nil {
			writeQueueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pa)

	case action == "approve" && r.Method == http.MethodPost:
		s.resolve(w, r, id, approval.StatusApproved)

	case action == "reject" && r.Method == http.MethodPost:
		s.resolve(w, r, id, approval.StatusRejected)

	default:
		writeError(w, http.StatusBadRequest, "invalid action or method")
	}
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, id string, status approval.Status) {
	if err := s.agent.Resolve(r.Context(), reviewerFromRequest(r), id, status); err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

// handleConfirmations lists pending confirmation challenges.
func (s *Server) handleConfirmations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	challenges := s.confirmer.Pending()
	if challenges == nil {
		challenges = []*security.Challenge{}
	}
	writeJSON(w, http.StatusOK, challenges)
}

// handleConfirmationDetail handles /api/confirmations/{id}/confirm.
func (s *Server) handleConfirmationDetail(w http.ResponseWriter, r *http.Request) {
	id, action := splitDetailPath(r.URL.Path, "/api/confirmations/")
	if id == "" || action != "confirm" || r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "invalid action or method")
		return
	}

	err := s.agent.ConfirmChallenge(r.Context(), reviewerFromRequest(r), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "confirmed"})
	case errors.Is(err, security.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, security.ErrChallengeExpired):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeError(w, http.StatusConflict, err.Error())
	}
}

// handleAudit returns recent audit entries, newest first.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, approval.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, approval.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// splitDetailPath peels "{id}" and an optional "{action}" off a prefixed path.
func splitDetailPath(path, prefix string) (id, action string) {
	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if len(parts) > 0 {
		id = parts[0]
	}
	if len(parts) > 1 {
		action = parts[1]
	}
	return id, action
}
