package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// Seed admin identity.
const (
	SeedAdminUsername = "admin"
	SeedAdminEmail    = "admin@localhost.localdomain"
)

// SeedAdmin creates the initial administrator on first boot if the
// directory is empty. The generated password is logged once at WARN and
// returned; it must be changed immediately. Returns "" if seeding was
// skipped.
func SeedAdmin(ctx context.Context, repo Repository, hasher *auth.Hasher, logger *logging.Logger) (string, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := hasher.Hash(ctx, password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &auth.User{
		Username:     SeedAdminUsername,
		Email:        SeedAdminEmail,
		PasswordHash: hash,
		Rank:         auth.RankAdmin,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", SeedAdminUsername,
		"generated_password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
