package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"tasktrail/internal/domain"
	"tasktrail/internal/store"
)

const projectColumns = `id,title,COALESCE(description,''),start_date,end_date,status,created_at,updated_at`

func scanProject(row scanner) (domain.Project, error) {
	var p domain.Project
	var start, end sql.NullString
	var status, created, updated string
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &start, &end, &status, &created, &updated); err != nil {
		return p, notFound(err)
	}
	p.Status = domain.ProjectStatus(status)
	var err error
	if p.StartDate, err = parseNullTime(start); err != nil {
		return p, err
	}
	if p.EndDate, err = parseNullTime(end); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return p, err
	}
	return p, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id,title,description,start_date,end_date,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Title, nullable(p.Description), formatTimePtr(p.StartDate), formatTimePtr(p.EndDate), string(p.Status), formatTime(p.CreatedAt), formatTime(p.UpdatedAt)); err != nil {
		return constraintErr(err)
	}
	if err := addMembers(ctx, tx, p.ID, p.AssignedUsers); err != nil {
		return err
	}
	return tx.Commit()
}

func addMembers(ctx context.Context, tx *sql.Tx, projectID string, userIDs []string) error {
	for _, id := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO project_members(project_id,user_id) VALUES (?,?)`, projectID, id); err != nil {
			return err
		}
	}
	return nil
}

func members(ctx context.Context, q querier, projectID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT user_id FROM project_members WHERE project_id=? ORDER BY rowid`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func getProject(ctx context.Context, q querier, id string) (domain.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if err != nil {
		return p, err
	}
	p.AssignedUsers, err = members(ctx, q, id)
	return p, err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return getProject(ctx, r.DB, id)
}

func projectWhere(f domain.ProjectFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.Member != "" {
		clauses = append(clauses, "id IN (SELECT project_id FROM project_members WHERE user_id=?)")
		args = append(args, f.Member)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r Repo) ListProjects(ctx context.Context, f domain.ProjectFilter) ([]domain.Project, error) {
	where, args := projectWhere(f)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects`+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range res {
		if res[i].AssignedUsers, err = members(ctx, r.DB, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) UpdateProject(ctx context.Context, p domain.Project) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE projects SET title=?,description=?,start_date=?,end_date=?,status=?,updated_at=? WHERE id=?`,
		p.Title, nullable(p.Description), formatTimePtr(p.StartDate), formatTimePtr(p.EndDate), string(p.Status), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=?`, p.ID); err != nil {
		return err
	}
	if err := addMembers(ctx, tx, p.ID, p.AssignedUsers); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) DeleteProject(ctx context.Context, id string) (domain.Project, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	p, err := getProject(ctx, tx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id); err != nil {
		return domain.Project{}, err
	}
	return p, tx.Commit()
}

func (r Repo) AddProjectMembers(ctx context.Context, id string, userIDs []string, at time.Time) (domain.Project, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at=MAX(updated_at, ?) WHERE id=?`, formatTime(at), id)
	if err != nil {
		return domain.Project{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Project{}, store.ErrNotFound
	}
	if err := addMembers(ctx, tx, id, userIDs); err != nil {
		return domain.Project{}, err
	}
	p, err := getProject(ctx, tx, id)
	if err != nil {
		return domain.Project{}, err
	}
	return p, tx.Commit()
}

func (r Repo) CountProjectsByStatus(ctx context.Context, f domain.ProjectFilter) (map[string]int, error) {
	where, args := projectWhere(f)
	return countBy(ctx, r.DB, `SELECT status, COUNT(*) FROM projects`+where+` GROUP BY status`, args...)
}

func countBy(ctx context.Context, q querier, query string, args ...any) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		res[key] = n
	}
	return res, rows.Err()
}
