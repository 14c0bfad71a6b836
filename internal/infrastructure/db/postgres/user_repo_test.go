package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/meeting-machine/internal/domain"
	"github.com/baechuer/meeting-machine/internal/infrastructure/db/postgres/migrations"
)

var userCols = []string{"id", "email", "password", "first_name", "last_name", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepo(db), mock
}

func TestCreate_ReturnsStoredRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (email, password, first_name, last_name, created_at, updated_at)")).
		WithArgs("Ada@Example.com", "HASH", "Ada", "Lovelace").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("0b7c1c5e-0000-4000-8000-000000000001", "Ada@Example.com", "HASH", "Ada", "Lovelace", now, now))

	u, err := repo.Create(context.Background(), domain.NewUser{
		Email: "Ada@Example.com", PasswordHash: "HASH", FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "0b7c1c5e-0000-4000-8000-000000000001", u.ID)
	assert.Equal(t, "Ada@Example.com", u.Email)
	assert.Equal(t, now, u.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolationMapsToDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"users_email_key\""})

	_, err := repo.Create(context.Background(), domain.NewUser{Email: "a@x.com", PasswordHash: "H"})
	assert.True(t, domain.Is(err, "user_already_exists"), "got %v", err)
	assert.Equal(t, domain.KindDuplicate, domain.KindOf(err))
}

func TestCreate_UniqueViolationByMessage(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint"))

	_, err := repo.Create(context.Background(), domain.NewUser{Email: "a@x.com", PasswordHash: "H"})
	assert.True(t, domain.Is(err, "user_already_exists"), "got %v", err)
}

func TestCreate_OtherFailureIsDBError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery("INSERT INTO users").WillReturnError(boom)

	_, err := repo.Create(context.Background(), domain.NewUser{Email: "a@x.com", PasswordHash: "H"})
	assert.True(t, domain.Is(err, "db_error"), "got %v", err)
	assert.ErrorIs(t, err, boom)
}

func TestCreate_MissingFields(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, err := repo.Create(context.Background(), domain.NewUser{PasswordHash: "H"})
	assert.True(t, domain.Is(err, "missing_field"))

	_, err = repo.Create(context.Background(), domain.NewUser{Email: "a@x.com"})
	assert.True(t, domain.Is(err, "missing_field"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM users WHERE email = $1);")).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByEmail_QueryFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("timeout"))

	_, err := repo.ExistsByEmail(context.Background(), "a@x.com")
	assert.True(t, domain.Is(err, "db_error"))
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM users").
		WithArgs("ghost@x.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByEmail(context.Background(), "ghost@x.com")
	assert.True(t, domain.Is(err, "user_not_found"), "got %v", err)
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM users").
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("id-1", "a@x.com", "H", "A", "B", now, now))

	u, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", u.ID)
	assert.Equal(t, "B", u.LastName)
}

func TestMigrate_RunsEmbeddedMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(ctx context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, ".", gotDir)
}

func TestMigrate_Failure(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUp
	defer func() { gooseUp = orig }()
	gooseUp = func(context.Context, *sql.DB, string) error {
		return errors.New("permission denied")
	}

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrations.FS.ReadDir(".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	raw, err := migrations.FS.ReadFile(entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "-- +goose Up")
	assert.Contains(t, string(raw), "CREATE TABLE IF NOT EXISTS users")
}
