package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/nerrad567/ledger-core/internal/audit"
	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/directory"
)

// tokenTypeBearer is the OAuth2 token_type for issued access tokens.
const tokenTypeBearer = "bearer"

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is returned by login and refresh.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func newTokenResponse(t auth.IssuedToken) tokenResponse {
	return tokenResponse{
		AccessToken: t.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int(t.TTL.Seconds()),
	}
}

// handleRegister creates a standard-rank account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req directory.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.Register(r.Context(), req)
	if err != nil {
		s.writeFailure(w, "register failed", err)
		return
	}

	s.recordEvent(r, audit.ActionUserRegistered, audit.EntityUser, user.ID, user.ID, map[string]any{
		"username": user.Username,
	})
	writeJSON(w, http.StatusCreated, user)
}

// handleLogin checks credentials and issues a token pair. The access token
// is returned in the body and the refresh token is set as a cookie.
//
// Accepts an OAuth2 password form (application/x-www-form-urlencoded) or
// a JSON body.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLogin(w, r)
	if !ok {
		return
	}

	sess, err := s.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.recordEvent(r, audit.ActionLoginFailed, audit.EntitySession, "", "", map[string]any{
				"username": auth.NormalizeUsername(req.Username),
			})
		}
		s.writeFailure(w, "login failed", err)
		return
	}

	s.recordEvent(r, audit.ActionLoginSucceeded, audit.EntitySession, sess.User.ID, sess.User.ID, nil)

	http.SetCookie(w, sess.RefreshCookie)
	writeJSON(w, http.StatusAccepted, newTokenResponse(sess.Access))
}

// handleRefresh exchanges the refresh cookie for a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := s.authSvc.CookiePolicy().Read(r)

	access, user, err := s.authSvc.Refresh(r.Context(), token)
	if err != nil {
		if token != "" {
			s.recordEvent(r, audit.ActionRefreshRejected, audit.EntitySession, "", "", map[string]any{
				"reason": err.Error(),
			})
		}
		s.writeFailure(w, "refresh failed", err)
		return
	}

	s.recordEvent(r, audit.ActionTokenRefreshed, audit.EntitySession, user.ID, user.ID, nil)
	writeJSON(w, http.StatusOK, newTokenResponse(access))
}

// handleLogout clears the refresh cookie. It never fails.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.recordEvent(r, audit.ActionLogout, audit.EntitySession, "", "", nil)

	http.SetCookie(w, s.authSvc.Logout())
	writeJSON(w, http.StatusOK, map[string]string{"detail": "logged out"})
}

// handleMe returns the live identity behind the bearer token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityFromContext(r.Context()))
}

// decodeLogin reads credentials from a form or JSON body. On failure it
// writes a 400 and reports false.
func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	var req loginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty or invalid falls through to JSON
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			writeBadRequest(w, "invalid form body")
			return req, false
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return req, false
		}
	}

	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return req, false
	}
	return req, true
}

// writeFailure maps err to a response, logging anything unexpected.
func (s *Server) writeFailure(w http.ResponseWriter, msg string, err error) {
	if writeServiceError(w, err) {
		return
	}
	s.logger.Error(msg, "error", err)
	writeInternalError(w, msg)
}

// recordEvent queues an audit entry for the request.
func (s *Server) recordEvent(r *http.Request, action, entityType, entityID, userID string, details map[string]any) {
	if s.recorder == nil {
		return
	}
	if userID == "" {
		if identity := identityFromContext(r.Context()); identity != nil {
			userID = identity.ID
		}
	}
	s.recorder.Record(&audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     audit.SourceAPI,
		RemoteAddr: r.RemoteAddr,
		Details:    details,
	})
}
