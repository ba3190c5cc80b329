package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"tasktrail/internal/domain"
)

func (r Repo) AppendActivity(ctx context.Context, e domain.ActivityLogEntry) error {
	details := e.Details
	if details == nil {
		details = domain.Details{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO activity_logs(id,user_id,action,target_type,target_id,details_json,ts) VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.User, e.Action, string(e.TargetType), e.TargetID, string(data), formatTime(e.Timestamp))
	return err
}

func (r Repo) ListActivity(ctx context.Context, f domain.ActivityFilter) ([]domain.ActivityLogEntry, error) {
	query := `SELECT id,user_id,action,target_type,target_id,details_json,ts FROM activity_logs`
	var args []any
	if f.User != "" {
		query += ` WHERE user_id=?`
		args = append(args, f.User)
	}
	query += ` ORDER BY ts DESC, seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityLogEntry
	for rows.Next() {
		var e domain.ActivityLogEntry
		var targetType, details, ts string
		if err := rows.Scan(&e.ID, &e.User, &e.Action, &targetType, &e.TargetID, &details, &ts); err != nil {
			return nil, err
		}
		e.TargetType = domain.TargetType(targetType)
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("decode activity details: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
