package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ledger-core/internal/audit"
	"github.com/nerrad567/ledger-core/internal/directory"
)

// handleListUsers returns all user accounts. Admin only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeFailure(w, "failed to list users", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleGetUser returns a single account by username. Admin only.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeFailure(w, "failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser applies a partial update. Callers may update their own
// account; updating another account or any rank requires admin.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req directory.Changes
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	actor, err := s.actorFromRequest(r)
	if err != nil {
		s.writeFailure(w, "failed to authorise request", err)
		return
	}

	user, err := s.users.Update(r.Context(), actor, chi.URLParam(r, "username"), req)
	if err != nil {
		s.writeFailure(w, "failed to update user", err)
		return
	}

	details := map[string]any{"username": user.Username}
	if req.Rank != nil {
		details["rank"] = int(*req.Rank)
	}
	if req.Password != nil {
		details["password_changed"] = true
	}
	s.recordEvent(r, audit.ActionUserUpdated, audit.EntityUser, user.ID, actor.ID, details)

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes an account. Callers may delete their own
// account; deleting another requires admin.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actorFromRequest(r)
	if err != nil {
		s.writeFailure(w, "failed to authorise request", err)
		return
	}

	user, err := s.users.Delete(r.Context(), actor, chi.URLParam(r, "username"))
	if err != nil {
		s.writeFailure(w, "failed to delete user", err)
		return
	}

	s.recordEvent(r, audit.ActionUserDeleted, audit.EntityUser, user.ID, actor.ID, map[string]any{
		"username": user.Username,
	})
	w.WriteHeader(http.StatusNoContent)
}
