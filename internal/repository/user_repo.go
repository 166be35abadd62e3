package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-api/internal/domain"
)

// ErrDuplicateEmail se devuelve al crear un usuario con email ya registrado.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateVerifyOTP(ctx context.Context, id, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id string) error
	UpdateResetOTP(ctx context.Context, id, code string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, email, password_hash, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		user.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = selectUser + ` WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = selectUser + ` WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// UpdateVerifyOTP pisa el par OTP de verificación; el código anterior queda inválido.
func (r *PgUserRepository) UpdateVerifyOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET verify_otp = $2, verify_otp_expires_at = $3
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, code, expiresAt)
	return err
}

// MarkVerified marca la cuenta como verificada y limpia el par OTP en la misma sentencia.
func (r *PgUserRepository) MarkVerified(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET is_verified = TRUE, verify_otp = '', verify_otp_expires_at = NULL
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *PgUserRepository) UpdateResetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_otp = $2, reset_otp_expires_at = $3
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, code, expiresAt)
	return err
}

// UpdatePassword reemplaza el hash y consume el par OTP de reset.
func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $2, reset_otp = '', reset_otp_expires_at = NULL
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, passwordHash)
	return err
}

const selectUser = `
	SELECT id, name, email, password_hash, is_verified,
	       COALESCE(verify_otp, ''), verify_otp_expires_at,
	       COALESCE(reset_otp, ''), reset_otp_expires_at,
	       created_at
	FROM users
`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PgUserRepository) scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.IsVerified,
		&u.VerifyOTP,
		&u.VerifyOTPExpiresAt,
		&u.ResetOTP,
		&u.ResetOTPExpiresAt,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
