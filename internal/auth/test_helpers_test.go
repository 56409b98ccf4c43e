package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
)

// testSecret meets the 32-character minimum enforced by config validation.
const testSecret = "test-secret-key-at-least-32-chars!"

// memDirectory is an in-memory Directory for tests.
type memDirectory struct {
	mu      sync.Mutex
	byID    map[string]*User
	failErr error
	delay   time.Duration
	updates int
}

func newMemDirectory() *memDirectory {
	return &memDirectory{byID: make(map[string]*User)}
}

func (d *memDirectory) wait(ctx context.Context) error {
	d.mu.Lock()
	delay, failErr := d.delay, d.failErr
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return failErr
}

func (d *memDirectory) FindByUsername(ctx context.Context, username string) (*User, error) {
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.byID {
		if u.Username == NormalizeUsername(username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *memDirectory) FindByID(ctx context.Context, id string) (*User, error) {
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *memDirectory) UpdatePassword(_ context.Context, id, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	d.updates++
	return nil
}

func (d *memDirectory) put(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[u.ID] = u
}

func (d *memDirectory) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, id)
}

func (d *memDirectory) setRank(id string, rank Rank) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[id].Rank = rank
}

func (d *memDirectory) stored(id string) User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.byID[id]
}

// testHasher returns a fast bcrypt hasher.
func testHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := NewHasher(HasherConfig{Algorithm: AlgorithmBcrypt, BcryptCost: bcrypt.MinCost, Workers: 4})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	return h
}

// seedTestUser registers a user in dir with the given plaintext password.
func seedTestUser(t *testing.T, dir *memDirectory, h *Hasher, username, password string, rank Rank) *User {
	t.Helper()

	hash, err := h.Hash(context.Background(), password)
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}
	now := time.Now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Username:     NormalizeUsername(username),
		Email:        NormalizeUsername(username) + "@example.com",
		PasswordHash: hash,
		Rank:         rank,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	dir.put(u)
	return u
}

func testSigning() SigningConfig {
	return SigningConfig{
		Secret:     []byte(testSecret),
		Algorithm:  "HS256",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
}

func testCodec(t *testing.T) *Codec {
	t.Helper()

	c, err := NewCodec([]byte(testSecret), "HS256", nil)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

// testService builds a Service over dir with a fast hasher.
func testService(t *testing.T, dir *memDirectory, mutate ...func(*ServiceConfig)) *Service {
	t.Helper()

	cfg := ServiceConfig{
		Directory: dir,
		Hasher:    testHasher(t),
		Signing:   testSigning(),
		Cookie: CookiePolicy{
			Name:     DefaultRefreshCookieName,
			Path:     DefaultRefreshCookiePath,
			SameSite: http.SameSiteNoneMode,
			Secure:   true,
		},
		LookupTimeout: time.Second,
		Logger:        logging.Discard(),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}
