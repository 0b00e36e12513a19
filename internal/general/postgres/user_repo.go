package postgres

import (
	"context"
	"errors"
	"fmt"

	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// UserRepo persists users using pgx and plain SQL.
type UserRepo struct{}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo() ports.UserRepository {
	return &UserRepo{}
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, role, password_hash, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Role.String(), u.PasswordHash, u.Active).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByUsername fetches a user for login. Missing users come back nil so the
// caller can fold them into a uniform bad-credentials error.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var u user.User
	var role string
	err = tx.QueryRow(ctx, `
		SELECT id, username, role, password_hash, active, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &role, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by username: %w", err)
	}
	u.Role = user.Role(role)
	return &u, nil
}
