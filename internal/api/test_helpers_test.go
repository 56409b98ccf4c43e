package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/ledger-core/internal/audit"
	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/directory"
	"github.com/nerrad567/ledger-core/internal/infrastructure/config"
	"github.com/nerrad567/ledger-core/internal/infrastructure/database"
	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
	_ "github.com/nerrad567/ledger-core/migrations" // registers embedded schema
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// testEnv is a fully wired server over a temporary SQLite database.
type testEnv struct {
	srv       *Server
	router    http.Handler
	db        *database.DB
	repo      *directory.SQLRepository
	hasher    *auth.Hasher
	authSvc   *auth.Service
	auditRepo *audit.SQLRepository
	recorder  *audit.Recorder
}

func testSigning() auth.SigningConfig {
	return auth.SigningConfig{
		Secret:     []byte(testSecret),
		Algorithm:  "HS256",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	hasher, err := auth.NewHasher(auth.HasherConfig{Algorithm: auth.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}

	log := logging.Discard()
	repo := directory.NewSQLRepository(db)

	authSvc, err := auth.NewService(auth.ServiceConfig{
		Directory: repo,
		Hasher:    hasher,
		Signing:   testSigning(),
		Cookie: auth.CookiePolicy{
			Name:     auth.DefaultRefreshCookieName,
			Path:     auth.DefaultRefreshCookiePath,
			SameSite: http.SameSiteNoneMode,
			Secure:   true,
		},
		LookupTimeout: time.Second,
		Logger:        log,
	})
	if err != nil {
		t.Fatalf("auth.NewService() error = %v", err)
	}

	auditRepo := audit.NewSQLRepository(db)
	recorder := audit.NewRecorder(auditRepo, nil, log, 64)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:    log,
		Auth:      authSvc,
		Guard:     auth.NewGuard(repo, time.Second),
		Directory: directory.NewService(repo, hasher, log),
		AuditRepo: auditRepo,
		Recorder:  recorder,
		Database:  db,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{
		srv:       srv,
		router:    srv.Handler(),
		db:        db,
		repo:      repo,
		hasher:    hasher,
		authSvc:   authSvc,
		auditRepo: auditRepo,
		recorder:  recorder,
	}
}

// seedUser stores an account with the given password and rank.
func (e *testEnv) seedUser(t *testing.T, username, password string, rank auth.Rank) *auth.User {
	t.Helper()

	hash, err := e.hasher.Hash(context.Background(), password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u := &auth.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Rank:         rank,
	}
	if err := e.repo.Create(context.Background(), u); err != nil {
		t.Fatalf("creating user %q: %v", username, err)
	}
	return u
}

// login performs a JSON login and returns the access token and refresh cookie.
func (e *testEnv) login(t *testing.T, username, password string) (string, *http.Cookie) {
	t.Helper()

	w := e.do(jsonRequest(http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}))
	if w.Code != http.StatusAccepted {
		t.Fatalf("login status = %d, want %d: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var resp tokenResponse
	decodeBody(t, w, &resp)

	var refresh *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.DefaultRefreshCookieName {
			refresh = c
		}
	}
	if refresh == nil {
		t.Fatal("login did not set the refresh cookie")
	}
	return resp.AccessToken, refresh
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// flushAudit runs the recorder until its queue is empty.
func (e *testEnv) flushAudit() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.recorder.Run(ctx)
}

func jsonRequest(method, target string, body any) *http.Request {
	var b strings.Builder
	if body != nil {
		//nolint:errcheck // test bodies always marshal
		json.NewEncoder(&b).Encode(body)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(b.String()))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body %q: %v", w.Body.String(), err)
	}
}

// assertError checks status and envelope code.
func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	if w.Code != status {
		t.Fatalf("status = %d, want %d: %s", w.Code, status, w.Body.String())
	}
	var e Error
	decodeBody(t, w, &e)
	if e.Code != code {
		t.Errorf("error code = %q, want %q", e.Code, code)
	}
	if e.Status != status {
		t.Errorf("envelope status = %d, want %d", e.Status, status)
	}
}
