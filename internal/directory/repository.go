package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/infrastructure/database"
)

// Repository defines user account persistence.
//
// Lookups by username or email expect the normalised (lowercase) form.
// A missing account is reported as auth.ErrUserNotFound.
type Repository interface {
	auth.Directory
	auth.PasswordUpdater

	Create(ctx context.Context, user *auth.User) error
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	List(ctx context.Context) ([]auth.User, error)
	Update(ctx context.Context, user *auth.User) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// userColumns is the column list shared by every SELECT.
const userColumns = "id, username, email, password_hash, rank, created_at, updated_at"

// SQLRepository implements Repository on SQLite or PostgreSQL.
type SQLRepository struct {
	db *database.DB
}

// NewSQLRepository creates a user repository over db.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create inserts a new user account. ID and timestamps are generated.
// Username and email are normalised before storage.
func (r *SQLRepository) Create(ctx context.Context, user *auth.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Username = auth.NormalizeUsername(user.Username)
	user.Email = auth.NormalizeEmail(user.Email)

	now := time.Now().UTC().Truncate(time.Second)
	user.CreatedAt = now
	user.UpdatedAt = now
	ts := now.Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, rank, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, int(user.Rank), ts, ts,
	)
	if err != nil {
		if dupErr := duplicateError(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by immutable ID.
func (r *SQLRepository) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// FindByUsername retrieves a user by username.
func (r *SQLRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", auth.NormalizeUsername(username))
}

// FindByEmail retrieves a user by email address.
func (r *SQLRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", auth.NormalizeEmail(email))
}

// List returns all users ordered by creation date.
func (r *SQLRepository) List(ctx context.Context) ([]auth.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at ASC, username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []auth.User{}
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// Update modifies username, email, rank and password hash in one statement,
// so a failure leaves the row exactly as it was. An empty PasswordHash keeps
// the stored one.
func (r *SQLRepository) Update(ctx context.Context, user *auth.User) error {
	user.Username = auth.NormalizeUsername(user.Username)
	user.Email = auth.NormalizeEmail(user.Email)
	user.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, rank = ?,
			password_hash = COALESCE(NULLIF(?, ''), password_hash), updated_at = ?
		WHERE id = ?`,
		user.Username, user.Email, int(user.Rank), user.PasswordHash, user.UpdatedAt.Format(time.RFC3339), user.ID,
	)
	if err != nil {
		if dupErr := duplicateError(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return requireAffected(result)
}

// UpdatePassword replaces a user's password hash.
func (r *SQLRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a user account by ID.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return requireAffected(result)
}

// Count returns the total number of user accounts.
func (r *SQLRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *SQLRepository) getUser(ctx context.Context, query string, args ...any) (*auth.User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, query, args...))
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUserFrom(s scanner) (*auth.User, error) {
	var u auth.User
	var rank int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &rank, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Rank = auth.Rank(rank)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if rows == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// duplicateError maps a unique-constraint failure onto the matching
// sentinel, or returns nil if err is something else.
func duplicateError(err error) error {
	detail, ok := database.UniqueViolation(err)
	if !ok {
		return nil
	}
	if strings.Contains(detail, "email") {
		return ErrEmailExists
	}
	return ErrUsernameExists
}
