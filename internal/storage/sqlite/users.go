package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aquaguard/aquaguard/internal/models"
	"github.com/aquaguard/aquaguard/internal/storage"
)

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (id, email, display_name, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		string(user.Role),
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return classify("create user", err)
	}

	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

// UpdateUser stores a user's profile fields and role.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, display_name = ?, role = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.DisplayName, string(user.Role), toMillis(user.UpdatedAt), user.ID,
	)
	if err != nil {
		return classify("update user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Unavailable("update user", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) getUser(ctx context.Context, column, key string) (*models.User, error) {
	query := `
		SELECT id, email, display_name, password_hash, role, created_at, updated_at
		FROM users
		WHERE ` + column + ` = ?
	`

	user := &models.User{}
	var created, updated int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.Role,
		&created,
		&updated,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.Unavailable("get user by "+column, err)
	}

	user.CreatedAt = fromMillis(created)
	user.UpdatedAt = fromMillis(updated)
	return user, nil
}
