package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/primisapp/primis-backend/internal/infrastructure/database"
)

// Repository defines the interface for user persistence.
type Repository interface {
	// List returns all users, newest first.
	List(ctx context.Context) ([]User, error)

	// GetByID retrieves a user by UUID.
	// Returns ErrUserNotFound if no such user exists.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email address.
	// Returns ErrUserNotFound if no such user exists.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create inserts a new user with a generated UUID.
	// Returns ErrEmailExists if the email is already registered.
	Create(ctx context.Context, name, email, passwordHash string) (*User, error)

	// Update changes a user's name and/or email. Empty fields are left
	// unchanged. Returns ErrUserNotFound or ErrEmailExists.
	Update(ctx context.Context, id string, name, email string) (*User, error)

	// Delete removes a user. Returns ErrUserNotFound if the ID is unknown.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a new SQLite-backed user repository.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all users ordered newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// GetByID retrieves a user by UUID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getWhere(ctx, "id", id)
}

// GetByEmail retrieves a user by email address.
func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getWhere(ctx, "email", email)
}

func (r *SQLiteRepository) getWhere(ctx context.Context, column, value string) (*User, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE %s = ?
	`, column), value)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrUserNotFound, column, value)
	}
	if err != nil {
		return nil, err
	}

	return u, nil
}

// Create inserts a new user row.
func (r *SQLiteRepository) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	if email == "" {
		return nil, ErrInvalidEmail
	}

	now := time.Now().UTC()
	u := &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.PasswordHash,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %q", ErrEmailExists, email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// Update changes the mutable fields of a user.
func (r *SQLiteRepository) Update(ctx context.Context, id string, name, email string) (*User, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = existing.Name
	}
	if email == "" {
		email = existing.Email
	}

	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?
	`, name, email, now.Format(time.RFC3339), id)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %q", ErrEmailExists, email)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	existing.Name = name
	existing.Email = email
	existing.UpdatedAt = now

	return existing, nil
}

// Delete removes a user by UUID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %q", ErrUserNotFound, id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u         User
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &u, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
