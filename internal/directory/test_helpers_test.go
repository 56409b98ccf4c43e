package directory

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/infrastructure/config"
	"github.com/nerrad567/ledger-core/internal/infrastructure/database"
	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
	_ "github.com/nerrad567/ledger-core/migrations" // registers embedded schema
)

// testDB opens a temporary SQLite database with the real schema applied.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "directory-test.db"),
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
	return db
}

func testHasher(t *testing.T) *auth.Hasher {
	t.Helper()

	h, err := auth.NewHasher(auth.HasherConfig{Algorithm: auth.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	return h
}

func testService(t *testing.T) (*Service, *SQLRepository) {
	t.Helper()

	repo := NewSQLRepository(testDB(t))
	return NewService(repo, testHasher(t), logging.Discard()), repo
}

// seedTestUser inserts a user directly through the repository.
func seedTestUser(t *testing.T, repo *SQLRepository, username string, rank auth.Rank) *auth.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}
	u := &auth.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Rank:         rank,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("creating test user %q: %v", username, err)
	}
	return u
}
