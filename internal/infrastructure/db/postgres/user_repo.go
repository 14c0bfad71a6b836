// Package postgres stores users in the users table created by the embedded
// migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/meeting-machine/internal/domain"
)

// sqlstateUniqueViolation is Postgres' unique_violation.
const sqlstateUniqueViolation = "23505"

const userColumns = `id, email, password, first_name, last_name, created_at, updated_at`

// UserRepo implements signup.UserRepo over database/sql with the pgx driver.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// duplicateEmail recognises the unique index on email firing. The message
// match covers drivers that do not surface *pgconn.PgError.
func duplicateEmail(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, domain.ErrMissingField("email")
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1);`, email,
	).Scan(&exists)
	if err != nil {
		return false, domain.ErrDB(err)
	}
	return exists, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1;`, email,
	))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.User{}, domain.ErrUserNotFound()
	case err != nil:
		return domain.User{}, domain.ErrDB(err)
	}
	return u, nil
}

// Create inserts nu and returns the stored row with its database-assigned id
// and timestamps. When two signups race past ExistsByEmail the unique index
// decides, and the loser gets user_already_exists.
func (r *UserRepo) Create(ctx context.Context, nu domain.NewUser) (domain.User, error) {
	switch {
	case nu.Email == "":
		return domain.User{}, domain.ErrMissingField("email")
	case nu.PasswordHash == "":
		return domain.User{}, domain.ErrMissingField("password")
	}

	u, err := scanUser(r.db.QueryRowContext(ctx, `
INSERT INTO users (email, password, first_name, last_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
RETURNING `+userColumns+`;`,
		nu.Email, nu.PasswordHash, nu.FirstName, nu.LastName,
	))
	if err == nil {
		return u, nil
	}
	if duplicateEmail(err) {
		return domain.User{}, domain.ErrUserAlreadyExists()
	}
	return domain.User{}, domain.ErrDB(err)
}
