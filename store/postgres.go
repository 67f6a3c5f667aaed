package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/princinho/authgate/models"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps identities in the users table created by the goose migrations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, username, email, password_hash, is_admin, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *PostgresStore) Create(ctx context.Context, u *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, username, email, password_hash, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ` + userColumns

	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	created, err := scanUser(s.db.QueryRowContext(ctx, query,
		NewID(), u.Username, u.Email, u.PasswordHash, u.IsAdmin, createdAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, DuplicateError{Field: constraintField(pgErr.ConstraintName)}
		}
		return nil, wrapContextErr(ctx, "db error", err)
	}
	return created, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapContextErr(ctx, "db error", err)
	}
	return u, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, wrapContextErr(ctx, "db error", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapContextErr(ctx, "db error", err)
	}
	return out, nil
}

func (s *PostgresStore) ToggleAdmin(ctx context.Context, id string) (*models.User, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx,
		`UPDATE users SET is_admin = NOT is_admin
		 WHERE id = $1
		 RETURNING `+userColumns, id)
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	id, err := ParseID(id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return wrapContextErr(ctx, "db error", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func constraintField(name string) string {
	switch name {
	case "users_username_key":
		return "username"
	default:
		return "email"
	}
}
