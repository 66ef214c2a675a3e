package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opsarch/admin-core/internal/loginlog/entity"
)

// LogRepo provides data access for the app_login_log table.
type LogRepo struct {
	db *sqlx.DB
}

func NewLogRepo(db *sqlx.DB) *LogRepo { return &LogRepo{db: db} }

// EnsureTable creates the app_login_log table if not exists (idempotent).
func (r *LogRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS app_login_log (
  log_id BIGSERIAL PRIMARY KEY,
  user_name VARCHAR(50) NOT NULL DEFAULT '',
  ipaddr VARCHAR(128) NOT NULL DEFAULT '',
  login_location VARCHAR(255) NOT NULL DEFAULT '',
  browser VARCHAR(50) NOT NULL DEFAULT '',
  os VARCHAR(50) NOT NULL DEFAULT '',
  status VARCHAR(1) NOT NULL DEFAULT '0',
  msg VARCHAR(255) NOT NULL DEFAULT '',
  login_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_app_login_log_time ON app_login_log (login_time);
CREATE INDEX IF NOT EXISTS idx_app_login_log_user ON app_login_log (user_name);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Insert appends one record.
func (r *LogRepo) Insert(ctx context.Context, l *entity.LoginLog) error {
	const q = `INSERT INTO app_login_log (user_name, ipaddr, login_location, browser, os, status, msg, login_time)
		VALUES (:user_name, :ipaddr, :login_location, :browser, :os, :status, :msg, :login_time)`
	if l.LoginTime.IsZero() {
		l.LoginTime = time.Now()
	}
	_, err := r.db.NamedExecContext(ctx, q, l)
	return err
}

func buildFilter(q entity.ListQuery) (string, []any) {
	var conds []string
	var args []any
	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}
	if q.UserName != "" {
		add("user_name LIKE $%d", "%"+q.UserName+"%")
	}
	if q.IPAddr != "" {
		add("ipaddr LIKE $%d", "%"+q.IPAddr+"%")
	}
	if q.Status != "" {
		add("status = $%d", q.Status)
	}
	if q.BeginTime != nil {
		add("login_time >= $%d", *q.BeginTime)
	}
	if q.EndTime != nil {
		add("login_time <= $%d", *q.EndTime)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns records matching the filters ordered by login_time DESC.
func (r *LogRepo) List(ctx context.Context, q entity.ListQuery) ([]entity.LoginLog, error) {
	where, args := buildFilter(q)
	query := `SELECT log_id, user_name, ipaddr, login_location, browser, os, status, msg, login_time
		FROM app_login_log` + where +
		fmt.Sprintf(" ORDER BY login_time DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)
	logs := []entity.LoginLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, err
	}
	return logs, nil
}

// Count returns the total matching the same filters as List.
func (r *LogRepo) Count(ctx context.Context, q entity.ListQuery) (int64, error) {
	where, args := buildFilter(q)
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM app_login_log`+where, args...); err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteOlderThan purges records before the cutoff. Returns rows removed.
func (r *LogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM app_login_log WHERE login_time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Clear truncates the log.
func (r *LogRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `TRUNCATE app_login_log`)
	return err
}

// CountSince returns successful logins at or after the given time.
func (r *LogRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	const q = `SELECT COUNT(*) FROM app_login_log WHERE status=$1 AND login_time >= $2`
	if err := r.db.GetContext(ctx, &n, q, entity.StatusSuccess, since); err != nil {
		return 0, err
	}
	return n, nil
}
