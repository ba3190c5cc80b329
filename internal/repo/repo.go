// Package repo is the SQLite implementation of store.Store.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tasktrail/internal/domain"
	"tasktrail/internal/store"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z"

type Repo struct {
	DB *sql.DB
}

var _ store.Store = Repo{}

func (r Repo) Close() error { return r.DB.Close() }

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(timeLayout, v)
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// constraintErr maps uniqueness violations onto store.ErrConflict.
func constraintErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrConflict
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

const userColumns = `id,name,email,password_hash,role,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	var role, created, updated string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &created, &updated); err != nil {
		return u, notFound(err)
	}
	u.Role = domain.Role(role)
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return u, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return u, err
	}
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, domain.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	return constraintErr(err)
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, domain.NormalizeEmail(email)))
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
}

func (r Repo) GetUsers(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`) ORDER BY created_at, id`, args...)
}

func (r Repo) queryUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
