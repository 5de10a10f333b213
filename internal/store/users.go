package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
)

// NewUser holds the fields needed to register a user.
type NewUser struct {
	Username     string
	PasswordHash string
	Role         string
	Email        string
	Phone        string
	TrustScore   int
}

var userColumns = []string{
	"id", "username", "password_hash", "role", "email", "phone",
	"trust_score", "warning_count", "suspended_until", "created_at", "deleted_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	u := &model.User{}
	err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Email, &u.Phone,
		&u.TrustScore, &u.WarningCount, &u.SuspendedUntil, &u.CreatedAt, &u.DeletedAt)
	return u, err
}

// CreateUser creates a new user.
func CreateUser(ctx context.Context, q db.DBTX, nu NewUser) (*model.User, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, email, phone, trust_score)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nu.Username, nu.PasswordHash, nu.Role, nu.Email, nu.Phone, nu.TrustScore,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, q, id)
}

func getUserWhere(ctx context.Context, q db.DBTX, where sq.Eq) (*model.User, error) {
	row, err := queryRow(ctx, q, psql.Select(userColumns...).From("users").Where(where))
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetUser returns a user by ID, or nil if there is none.
func GetUser(ctx context.Context, q db.DBTX, id int64) (*model.User, error) {
	u, err := getUserWhere(ctx, q, sq.Eq{"id": id})
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active user with the given username.
func GetUserByUsername(ctx context.Context, q db.DBTX, username string) (*model.User, error) {
	u, err := getUserWhere(ctx, q, sq.Eq{"username": username, "deleted_at": nil})
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, q db.DBTX) ([]model.User, error) {
	rows, err := queryRows(ctx, q, psql.Select(userColumns...).From("users").
		Where(sq.Eq{"deleted_at": nil}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of non-deleted users.
func CountUsers(ctx context.Context, q db.DBTX) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func updateUser(ctx context.Context, q db.DBTX, id int64, set map[string]any) (bool, error) {
	n, err := execAffected(ctx, q, psql.Update("users").SetMap(set).
		Where(sq.Eq{"id": id, "deleted_at": nil}))
	return n > 0, err
}

// UpdateUserRole changes a user's role.
func UpdateUserRole(ctx context.Context, q db.DBTX, id int64, role string) (bool, error) {
	ok, err := updateUser(ctx, q, id, map[string]any{"role": role})
	if err != nil {
		return false, fmt.Errorf("updating user role: %w", err)
	}
	return ok, nil
}

// UpdateUserContact replaces the user's e-mail and phone.
func UpdateUserContact(ctx context.Context, q db.DBTX, id int64, email, phone string) (bool, error) {
	ok, err := updateUser(ctx, q, id, map[string]any{"email": email, "phone": phone})
	if err != nil {
		return false, fmt.Errorf("updating user contact: %w", err)
	}
	return ok, nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q db.DBTX, id int64, passwordHash string) (bool, error) {
	ok, err := updateUser(ctx, q, id, map[string]any{"password_hash": passwordHash})
	if err != nil {
		return false, fmt.Errorf("updating user password: %w", err)
	}
	return ok, nil
}

// IncrementWarnings adds one to the user's warning count.
func IncrementWarnings(ctx context.Context, q db.DBTX, id int64) (bool, error) {
	ok, err := updateUser(ctx, q, id, map[string]any{"warning_count": sq.Expr("warning_count + 1")})
	if err != nil {
		return false, fmt.Errorf("incrementing warnings: %w", err)
	}
	return ok, nil
}

// SetSuspendedUntil sets or, with a nil until, clears a suspension.
func SetSuspendedUntil(ctx context.Context, q db.DBTX, id int64, until *time.Time) (bool, error) {
	var v any
	if until != nil {
		v = until.UTC()
	}
	ok, err := updateUser(ctx, q, id, map[string]any{"suspended_until": v})
	if err != nil {
		return false, fmt.Errorf("setting suspension: %w", err)
	}
	return ok, nil
}

// AdjustTrustScore adds delta, which may be negative, to the trust score.
func AdjustTrustScore(ctx context.Context, q db.DBTX, id int64, delta int) (bool, error) {
	ok, err := updateUser(ctx, q, id, map[string]any{"trust_score": sq.Expr("trust_score + ?", delta)})
	if err != nil {
		return false, fmt.Errorf("adjusting trust score: %w", err)
	}
	return ok, nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, q db.DBTX, id int64) (bool, error) {
	ok, err := updateUser(ctx, q, id, map[string]any{"deleted_at": sq.Expr("CURRENT_TIMESTAMP")})
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	return ok, nil
}
