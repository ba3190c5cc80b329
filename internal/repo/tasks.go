package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tasktrail/internal/domain"
	"tasktrail/internal/store"
)

const taskColumns = `id,title,COALESCE(description,''),due_date,status,priority,COALESCE(assigned_to,''),COALESCE(project_id,''),sub_tasks_json,created_at,updated_at`

var taskSortColumns = map[string]string{
	"title":     "title",
	"status":    "status",
	"priority":  "priority",
	"dueDate":   "due_date",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	var due sql.NullString
	var status, priority, subTasks, created, updated string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &due, &status, &priority, &t.AssignedTo, &t.Project, &subTasks, &created, &updated); err != nil {
		return t, notFound(err)
	}
	t.Status = domain.TaskStatus(status)
	t.Priority = domain.TaskPriority(priority)
	if err := json.Unmarshal([]byte(subTasks), &t.SubTasks); err != nil {
		return t, fmt.Errorf("decode sub tasks: %w", err)
	}
	if t.SubTasks == nil {
		t.SubTasks = []domain.SubTask{}
	}
	var err error
	if t.DueDate, err = parseNullTime(due); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, err
	}
	return t, nil
}

func encodeSubTasks(subs []domain.SubTask) (string, error) {
	if subs == nil {
		subs = []domain.SubTask{}
	}
	b, err := json.Marshal(subs)
	if err != nil {
		return "", fmt.Errorf("encode sub tasks: %w", err)
	}
	return string(b), nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	subs, err := encodeSubTasks(t.SubTasks)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO tasks(id,title,description,due_date,status,priority,assigned_to,project_id,sub_tasks_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), formatTimePtr(t.DueDate), string(t.Status), string(t.Priority), nullable(t.AssignedTo), nullable(t.Project), subs, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	return constraintErr(err)
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

// likePattern builds a case-insensitive substring pattern with LIKE wildcards escaped.
func likePattern(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

func taskWhere(f domain.TaskFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, string(f.Priority))
	}
	if f.DueBefore != nil {
		clauses = append(clauses, "due_date IS NOT NULL AND due_date<=?")
		args = append(args, formatTime(*f.DueBefore))
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		clauses = append(clauses, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(COALESCE(description,'')) LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func taskOrder(s domain.Sort) string {
	col, ok := taskSortColumns[s.Field]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if s.Order == domain.Descending {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)
}

func (r Repo) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	where, args := taskWhere(f)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+where+taskOrder(f.Sort), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTask(ctx context.Context, t domain.Task) error {
	subs, err := encodeSubTasks(t.SubTasks)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET title=?,description=?,due_date=?,status=?,priority=?,assigned_to=?,project_id=?,sub_tasks_json=?,updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), formatTimePtr(t.DueDate), string(t.Status), string(t.Priority), nullable(t.AssignedTo), nullable(t.Project), subs, formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id); err != nil {
		return domain.Task{}, err
	}
	return t, tx.Commit()
}

func (r Repo) SetTaskAssignee(ctx context.Context, id, userID string, at time.Time) (domain.Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET assigned_to=?, updated_at=MAX(updated_at, ?) WHERE id=?`, nullable(userID), formatTime(at), id)
	if err != nil {
		return domain.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Task{}, store.ErrNotFound
	}
	t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if err != nil {
		return domain.Task{}, err
	}
	return t, tx.Commit()
}

func (r Repo) CountTasksBy(ctx context.Context, f domain.TaskFilter, field string) (map[string]int, error) {
	col := "status"
	if field == "priority" {
		col = "priority"
	}
	where, args := taskWhere(f)
	return countBy(ctx, r.DB, fmt.Sprintf(`SELECT %s, COUNT(*) FROM tasks%s GROUP BY %s`, col, where, col), args...)
}
