package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/directory"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyIdentity  contextKey = "identity"
	ctxKeyAdmin     contextKey = "admin"
)

// requestIDMiddleware tags each request with an ID, reusing a client
// supplied X-Request-ID when present.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	})
}

// recoveryMiddleware catches panics in handlers and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles Cross-Origin Resource Sharing headers.
//
// Only origins listed explicitly in allowed_origins receive credentialed
// CORS, which is what lets a browser send the refresh cookie cross-site and
// read the response. A "*" entry grants plain wildcard CORS without
// credentials. An empty list emits no CORS headers at all.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			switch s.originAccess(origin) {
			case originListed:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
				s.setCORSPreflightHeaders(w)
			case originWildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
				s.setCORSPreflightHeaders(w)
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) setCORSPreflightHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(s.cfg.CORS.AllowedMethods, "GET, POST, PATCH, DELETE, OPTIONS"))
	w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(s.cfg.CORS.AllowedHeaders, "Authorization, Content-Type, X-Request-ID"))
	w.Header().Set("Access-Control-Max-Age", "86400")
}

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the bearer token to the live identity and stores
// it in the request context. Refresh tokens are rejected here.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeUnauthenticated(w, ErrCodeInvalidToken, "missing bearer token")
			return
		}

		user, err := s.authSvc.CurrentIdentity(r.Context(), token)
		if err != nil {
			if !writeServiceError(w, err) {
				s.logger.Error("resolving identity failed", "error", err)
				writeInternalError(w, "failed to authenticate request")
			}
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin re-checks the caller's rank against the directory.
// Must be mounted after authMiddleware.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		live, err := s.guard.RequireAdmin(r.Context(), identityFromContext(r.Context()))
		if err != nil {
			if !writeServiceError(w, err) {
				s.logger.Error("admin check failed", "error", err)
				writeInternalError(w, "failed to authorise request")
			}
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity, live)
		ctx = context.WithValue(ctx, ctxKeyAdmin, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFromRequest builds the directory actor for the caller, consulting
// the guard for admin status. Only a privilege failure downgrades to a
// non-admin actor; any other guard error is returned.
func (s *Server) actorFromRequest(r *http.Request) (directory.Actor, error) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		return directory.Actor{}, auth.ErrUnauthenticated
	}
	if admin, _ := r.Context().Value(ctxKeyAdmin).(bool); admin {
		return directory.Actor{ID: identity.ID, Admin: true}, nil
	}

	_, err := s.guard.RequireAdmin(r.Context(), identity)
	switch {
	case err == nil:
		return directory.Actor{ID: identity.ID, Admin: true}, nil
	case errors.Is(err, auth.ErrInsufficientPrivilege):
		return directory.Actor{ID: identity.ID}, nil
	default:
		return directory.Actor{}, err
	}
}

// identityFromContext returns the authenticated user, or nil.
func identityFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(ctxKeyIdentity).(*auth.User)
	return u
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// originAccessLevel is the CORS treatment an Origin receives.
type originAccessLevel int

const (
	originDenied originAccessLevel = iota
	originWildcard
	originListed
)

// originAccess classifies origin against allowed_origins. An exact match
// wins over a "*" entry.
func (s *Server) originAccess(origin string) originAccessLevel {
	level := originDenied
	for _, allowed := range s.cfg.CORS.AllowedOrigins {
		switch allowed {
		case origin:
			return originListed
		case "*":
			level = originWildcard
		}
	}
	return level
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// joinOrDefault joins values with ", " or returns defaultVal if empty.
func joinOrDefault(values []string, defaultVal string) string {
	if len(values) == 0 {
		return defaultVal
	}
	return strings.Join(values, ", ")
}
