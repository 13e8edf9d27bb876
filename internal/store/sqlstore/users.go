package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"

	"thumbexpert/internal/model"
	"thumbexpert/internal/store"
)

const userColumns = `id, name, username, email, password_hash, plan, profile_photo, role, preferred_language, created_at`

func (db *DB) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Plan == "" {
		u.Plan = model.PlanFree
	}
	u.Email = normalizeEmail(u.Email)

	_, err := db.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Username, u.Email, u.PasswordHash, string(u.Plan),
		u.ProfilePhoto, u.Role, u.PreferredLanguage, formatTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, store.ErrEmailTaken
		}
		return model.User{}, fmt.Errorf("sqlstore: inserting user %s: %w", u.ID, err)
	}
	return u, nil
}

func (db *DB) UserByID(ctx context.Context, id string) (model.User, error) {
	return db.userBy(ctx, "id", id)
}

func (db *DB) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return db.userBy(ctx, "email", normalizeEmail(email))
}

func (db *DB) UpdateUser(ctx context.Context, u model.User) error {
	u.Email = normalizeEmail(u.Email)
	res, err := db.exec(ctx,
		`UPDATE users SET name = ?, username = ?, email = ?, password_hash = ?, plan = ?,
		 profile_photo = ?, role = ?, preferred_language = ? WHERE id = ?`,
		u.Name, u.Username, u.Email, u.PasswordHash, string(u.Plan),
		u.ProfilePhoto, u.Role, u.PreferredLanguage, u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailTaken
		}
		return fmt.Errorf("sqlstore: updating user %s: %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: updating user %s: %w", u.ID, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// column is always a literal from this file.
func (db *DB) userBy(ctx context.Context, column, value string) (model.User, error) {
	var (
		u       model.User
		plan    string
		created string
	)
	err := db.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value,
	).Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &plan,
		&u.ProfilePhoto, &u.Role, &u.PreferredLanguage, &created)
	if err != nil {
		if isNoRows(err) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, fmt.Errorf("sqlstore: getting user by %s: %w", column, err)
	}

	u.Plan = model.Plan(plan)
	if u.CreatedAt, err = parseTime(created); err != nil {
		return model.User{}, fmt.Errorf("sqlstore: user %s: %w", u.ID, err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
