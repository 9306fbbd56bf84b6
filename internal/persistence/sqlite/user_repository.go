package sqlite

import (
	"context"
	"strings"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool *ConnectionPool
}

// CreateUser inserts a user together with their credentials.
func (r *UserRepository) CreateUser(ctx context.Context, creds persistence.UserCredentials) error {
	user := creds.User
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, is_admin, password_hash, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		boolToInt(user.IsAdmin),
		creds.PasswordHash,
		boolToInt(creds.Disabled),
		formatTimestamp(user.CreatedAt),
		formatTimestamp(user.UpdatedAt),
	)
	return mapSQLError(err)
}

// UpdateUser updates a user's profile fields. Credentials are untouched.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE users SET email = ?, display_name = ?, is_admin = ?, updated_at = ?
		WHERE id = ?`,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		boolToInt(user.IsAdmin),
		formatTimestamp(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return mapSQLError(err)
	}
	return requireAffected(result)
}

// GetUser retrieves a user by id.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, email, display_name, is_admin, created_at, updated_at
		FROM users WHERE id = ?`, id)

	var (
		user      persistence.User
		isAdmin   int
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &isAdmin, &createdAt, &updatedAt); err != nil {
		return persistence.User{}, mapSQLError(err)
	}
	user.IsAdmin = isAdmin != 0
	user.CreatedAt = parseTimestamp(createdAt)
	user.UpdatedAt = parseTimestamp(updatedAt)
	return user, nil
}

// GetUserCredentialsByEmail retrieves a user with credentials by email.
func (r *UserRepository) GetUserCredentialsByEmail(ctx context.Context, email string) (persistence.UserCredentials, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, email, display_name, is_admin, password_hash, disabled, created_at, updated_at
		FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))

	var (
		creds     persistence.UserCredentials
		isAdmin   int
		disabled  int
		createdAt string
		updatedAt string
	)
	err := row.Scan(&creds.User.ID, &creds.User.Email, &creds.User.DisplayName, &isAdmin,
		&creds.PasswordHash, &disabled, &createdAt, &updatedAt)
	if err != nil {
		return persistence.UserCredentials{}, mapSQLError(err)
	}
	creds.User.IsAdmin = isAdmin != 0
	creds.Disabled = disabled != 0
	creds.User.CreatedAt = parseTimestamp(createdAt)
	creds.User.UpdatedAt = parseTimestamp(updatedAt)
	return creds, nil
}

// ListUsers returns all users ordered by creation time.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, email, display_name, is_admin, created_at, updated_at
		FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		var (
			user      persistence.User
			isAdmin   int
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &isAdmin, &createdAt, &updatedAt); err != nil {
			return nil, mapSQLError(err)
		}
		user.IsAdmin = isAdmin != 0
		user.CreatedAt = parseTimestamp(createdAt)
		user.UpdatedAt = parseTimestamp(updatedAt)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return users, nil
}

// DeleteUser removes a user. Assignments or exceptions referencing the user
// block the delete through foreign keys, preserving schedule history.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapSQLError(err)
	}
	return requireAffected(result)
}
