package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"streamchat/internal/domain"
)

var ErrNotFound = errors.New("not found")

// UserRepository es el directorio de usuarios que consulta el identity provider.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// PgxQuerier es el subconjunto de *pgxpool.Pool que usa el directorio.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository sobre Postgres.
type PgUserRepository struct {
	db  PgxQuerier
	now func() time.Time
}

func NewPgUserRepository(db PgxQuerier) *PgUserRepository {
	return &PgUserRepository{db: db, now: time.Now}
}

// Create da de alta el usuario. Es idempotente por id: un alta repetida no pisa los datos guardados.
func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("create user: id is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now()
	}
	const query = `
		INSERT INTO users (id, email, display_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query,
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		user.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("create user %s: %w", user.ID, err)
	}
	return nil
}

// GetByID devuelve ErrNotFound si el usuario no existe.
func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `
		SELECT id, email, display_name, created_at
		FROM users
		WHERE id = $1
	`
	var u domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.CreatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.User{}, ErrNotFound
	case err != nil:
		return domain.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}
