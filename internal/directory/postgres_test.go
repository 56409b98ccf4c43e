package directory

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/infrastructure/database"
)

func mockPostgresRepo(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	return NewSQLRepository(database.Wrap(sqlDB, database.DialectPostgres)), mock
}

func TestSQLRepository_Postgres_FindByUsername(t *testing.T) {
	repo, mock := mockPostgresRepo(t)

	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "rank", "created_at", "updated_at"}).
		AddRow("u-1", "alice", "alice@example.com", "hash", 1337, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(rows)

	u, err := repo.FindByUsername(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("FindByUsername() error = %v", err)
	}
	if u.ID != "u-1" || u.Rank != auth.RankAdmin {
		t.Errorf("got %+v, want u-1 with admin rank", u)
	}
	if u.UpdatedAt.Day() != 2 {
		t.Errorf("UpdatedAt = %v, want 2026-01-02", u.UpdatedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLRepository_Postgres_UniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"email", "users_email_key", ErrEmailExists},
		{"username", "users_username_key", ErrUsernameExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := mockPostgresRepo(t)

			mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7)")).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			err := repo.Create(context.Background(), &auth.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"})
			if !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestSQLRepository_Postgres_UpdateSingleStatement(t *testing.T) {
	repo, mock := mockPostgresRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("password_hash = COALESCE(NULLIF($4, ''), password_hash), updated_at = $5")).
		WithArgs("alice", "alice@example.com", 1337, "new-hash", sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &auth.User{
		ID: "u-1", Username: "Alice", Email: "alice@example.com", PasswordHash: "new-hash", Rank: auth.RankAdmin,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLRepository_Postgres_DeleteNotFound(t *testing.T) {
	repo, mock := mockPostgresRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("Delete() error = %v, want ErrUserNotFound", err)
	}
}

func TestSQLRepository_Postgres_ConnectionFailure(t *testing.T) {
	repo, mock := mockPostgresRepo(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).WillReturnError(boom)

	_, err := repo.FindByID(context.Background(), "u-1")
	if !errors.Is(err, boom) {
		t.Errorf("FindByID() error = %v, want wrapped %v", err, boom)
	}
	if errors.Is(err, auth.ErrUserNotFound) {
		t.Error("a driver failure must not look like a missing user")
	}
}
