package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pantry-to-plate/internal/domain"
)

var (
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateUsername = errors.New("duplicate username")
)

const uniqueViolation = "23505"

// UserRepository define el contrato de persistencia para usuarios.
// Los lookups sin resultado devuelven pgx.ErrNoRows, igual que las
// actualizaciones condicionales que no encuentran la fila esperada.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (domain.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	MarkEmailVerified(ctx context.Context, id, token string) error
	SetVerificationToken(ctx context.Context, id, token string) error
	SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	CompletePasswordReset(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, user domain.User) error
}

// DBTX es el subconjunto de pgxpool.Pool que usa el repositorio.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository sobre Postgres.
type PgUserRepository struct {
	pool DBTX
}

func NewPgUserRepository(pool DBTX) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, username, email, password_hash, first_name, last_name, role,
	is_email_verified, verification_token, password_reset_token,
	password_reset_expires, created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (
			id, username, email, password_hash, first_name, last_name, role,
			is_email_verified, verification_token, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		string(user.Role),
		user.IsEmailVerified,
		nullableText(user.VerificationToken),
		user.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PgUserRepository) GetByVerificationToken(ctx context.Context, token string) (domain.User, error) {
	return r.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE verification_token = $1`, token)
}

func (r *PgUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	return r.getOne(ctx,
		`SELECT`+userColumns+` FROM users WHERE password_reset_token = $1 AND password_reset_expires > $2`,
		tokenHash, now,
	)
}

func (r *PgUserRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, email, excludeID).Scan(&exists)
	return exists, err
}

func (r *PgUserRepository) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, username, excludeID).Scan(&exists)
	return exists, err
}

// MarkEmailVerified solo actualiza si el token sigue siendo el almacenado,
// de modo que dos consumos concurrentes no pueden tener éxito ambos.
func (r *PgUserRepository) MarkEmailVerified(ctx context.Context, id, token string) error {
	const query = `
		UPDATE users
		SET is_email_verified = TRUE, verification_token = NULL, updated_at = now()
		WHERE id = $1 AND verification_token = $2
	`
	return r.execOne(ctx, query, id, token)
}

func (r *PgUserRepository) SetVerificationToken(ctx context.Context, id, token string) error {
	const query = `
		UPDATE users
		SET verification_token = $2, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, nullableText(token))
}

func (r *PgUserRepository) SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_token = $2, password_reset_expires = $3, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, tokenHash, expiresAt)
}

func (r *PgUserRepository) CompletePasswordReset(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $3,
		    password_reset_token = NULL,
		    password_reset_expires = NULL,
		    updated_at = now()
		WHERE id = $1 AND password_reset_token = $2 AND password_reset_expires > $4
	`
	return r.execOne(ctx, query, id, tokenHash, passwordHash, now)
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users
		SET username = $2,
		    email = $3,
		    first_name = $4,
		    last_name = $5,
		    is_email_verified = $6,
		    verification_token = $7,
		    updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.IsEmailVerified,
		nullableText(user.VerificationToken),
	)
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	var (
		u            domain.User
		role         string
		verification *string
		resetToken   *string
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&role,
		&u.IsEmailVerified,
		&verification,
		&resetToken,
		&u.PasswordResetExpires,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	if verification != nil {
		u.VerificationToken = *verification
	}
	if resetToken != nil {
		u.PasswordResetToken = *resetToken
	}
	return u, nil
}

func (r *PgUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return ErrDuplicateEmail
	case strings.Contains(pgErr.ConstraintName, "username"):
		return ErrDuplicateUsername
	default:
		return err
	}
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
