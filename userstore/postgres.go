package userstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/permission"
)

// Schema is the users table the store reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id                 UUID PRIMARY KEY,
	email              TEXT NOT NULL UNIQUE,
	password_hash      TEXT NOT NULL,
	first_name         TEXT NOT NULL,
	last_name          TEXT NOT NULL,
	role               TEXT NOT NULL,
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	is_verified        BOOLEAN NOT NULL DEFAULT FALSE,
	two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	two_factor_secret  TEXT NOT NULL DEFAULT '',
	totp_last_counter  BIGINT NOT NULL DEFAULT 0,
	license_number     TEXT NOT NULL DEFAULT '',
	department         TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	last_login         TIMESTAMPTZ
);
`

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, is_verified,
	two_factor_enabled, two_factor_secret, totp_last_counter, license_number, department, created_at, updated_at, last_login`

const uniqueViolation = "23505"

// PgxConn is the subset of *pgxpool.Pool the store uses.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements medauth.UserStore on the users table.
type PostgresStore struct {
	db PgxConn
}

var _ medauth.UserStore = (*PostgresStore)(nil)

func NewPostgresStore(db PgxConn) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the users table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create users schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (medauth.User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (medauth.User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) CreateUser(ctx context.Context, u medauth.User) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role.String(),
		u.IsActive, u.IsVerified, u.TwoFactorEnabled, u.TwoFactorSecret, u.TOTPLastCounter,
		u.LicenseNumber, u.Department, u.CreatedAt.UTC(), u.UpdatedAt.UTC(), lastLogin(u),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return medauth.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u medauth.User) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE users
		 SET email = $1, password_hash = $2, first_name = $3, last_name = $4, role = $5,
		     is_active = $6, is_verified = $7, two_factor_enabled = $8, two_factor_secret = $9,
		     totp_last_counter = $10, license_number = $11, department = $12, updated_at = $13,
		     last_login = $14
		 WHERE id = $15`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role.String(),
		u.IsActive, u.IsVerified, u.TwoFactorEnabled, u.TwoFactorSecret, u.TOTPLastCounter,
		u.LicenseNumber, u.Department, u.UpdatedAt.UTC(), lastLogin(u), u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return medauth.ErrUserExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return medauth.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) scanUser(ctx context.Context, query string, arg any) (medauth.User, error) {
	var (
		u     medauth.User
		role  string
		login pgtype.Timestamptz
	)

	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&role,
		&u.IsActive,
		&u.IsVerified,
		&u.TwoFactorEnabled,
		&u.TwoFactorSecret,
		&u.TOTPLastCounter,
		&u.LicenseNumber,
		&u.Department,
		&u.CreatedAt,
		&u.UpdatedAt,
		&login,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return medauth.User{}, medauth.ErrUserNotFound
		}
		return medauth.User{}, fmt.Errorf("scan user: %w", err)
	}

	u.Role = permission.Role(role)
	if login.Valid {
		t := login.Time.UTC()
		u.LastLogin = &t
	}
	return u, nil
}

func lastLogin(u medauth.User) any {
	if u.LastLogin == nil {
		return nil
	}
	return u.LastLogin.UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
