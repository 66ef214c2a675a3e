package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opsarch/admin-core/internal/appuser/entity"
)

// UserRepo provides data access for the app_user table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the app_user table if not exists (idempotent).
// Uniqueness of user_name, phone and email is enforced here so concurrent
// writers racing past the service-level existence check still fail cleanly.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS app_user (
  user_id BIGSERIAL PRIMARY KEY,
  user_name VARCHAR(30) NOT NULL,
  nick_name VARCHAR(30) NOT NULL,
  email VARCHAR(50) NOT NULL DEFAULT '',
  phone VARCHAR(20) NOT NULL DEFAULT '',
  sex VARCHAR(1) NOT NULL DEFAULT '2',
  avatar VARCHAR(200) NOT NULL DEFAULT '',
  password VARCHAR(100) NOT NULL DEFAULT '',
  status VARCHAR(1) NOT NULL DEFAULT '0',
  login_ip VARCHAR(128) NOT NULL DEFAULT '',
  login_date TIMESTAMPTZ,
  create_by VARCHAR(64) NOT NULL DEFAULT '',
  create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  update_by VARCHAR(64) NOT NULL DEFAULT '',
  update_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  remark VARCHAR(500)
);
CREATE UNIQUE INDEX IF NOT EXISTS uidx_app_user_name ON app_user (user_name);
CREATE UNIQUE INDEX IF NOT EXISTS uidx_app_user_phone ON app_user (phone) WHERE phone <> '';
CREATE UNIQUE INDEX IF NOT EXISTS uidx_app_user_email ON app_user (email) WHERE email <> '';
CREATE INDEX IF NOT EXISTS idx_app_user_create_time ON app_user (create_time);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `user_id, user_name, nick_name, email, phone, sex, avatar, password,
	status, login_ip, login_date, create_by, create_time, update_by, update_time, remark`

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.AppUser, error) {
	q := `SELECT ` + userColumns + ` FROM app_user WHERE user_id=$1`
	var u entity.AppUser
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername fetches by exact account name.
func (r *UserRepo) GetByUsername(ctx context.Context, name string) (*entity.AppUser, error) {
	q := `SELECT ` + userColumns + ` FROM app_user WHERE user_name=$1`
	var u entity.AppUser
	if err := r.db.GetContext(ctx, &u, q, name); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail fetches by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.AppUser, error) {
	q := `SELECT ` + userColumns + ` FROM app_user WHERE email=$1`
	var u entity.AppUser
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByPhone fetches by exact phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*entity.AppUser, error) {
	q := `SELECT ` + userColumns + ` FROM app_user WHERE phone=$1`
	var u entity.AppUser
	if err := r.db.GetContext(ctx, &u, q, phone); err != nil {
		return nil, err
	}
	return &u, nil
}

// buildFilter translates a ListQuery into a WHERE clause with positional args.
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
	if q.NickName != "" {
		add("nick_name LIKE $%d", "%"+q.NickName+"%")
	}
	if q.Email != "" {
		add("email LIKE $%d", "%"+q.Email+"%")
	}
	if q.Phone != "" {
		add("phone LIKE $%d", "%"+q.Phone+"%")
	}
	if q.Sex != "" {
		add("sex = $%d", q.Sex)
	}
	if q.Status != "" {
		add("status = $%d", q.Status)
	}
	if q.BeginTime != nil {
		add("create_time >= $%d", *q.BeginTime)
	}
	if q.EndTime != nil {
		add("create_time <= $%d", *q.EndTime)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns users matching the filters ordered by create_time DESC.
func (r *UserRepo) List(ctx context.Context, q entity.ListQuery) ([]entity.AppUser, error) {
	where, args := buildFilter(q)
	query := `SELECT ` + userColumns + ` FROM app_user` + where +
		fmt.Sprintf(" ORDER BY create_time DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)
	users := []entity.AppUser{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the total matching the same filters as List.
func (r *UserRepo) Count(ctx context.Context, q entity.ListQuery) (int64, error) {
	where, args := buildFilter(q)
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM app_user`+where, args...); err != nil {
		return 0, err
	}
	return total, nil
}

// Insert creates a user row and returns the new ID.
func (r *UserRepo) Insert(ctx context.Context, u *entity.AppUser) (int64, error) {
	const q = `INSERT INTO app_user
		(user_name, nick_name, email, phone, sex, avatar, password, status, create_by, update_by, remark)
		VALUES (:user_name, :nick_name, :email, :phone, :sex, :avatar, :password, :status, :create_by, :update_by, :remark)
		RETURNING user_id`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&u.UserID); err != nil {
			return 0, err
		}
		return u.UserID, nil
	}
	return 0, fmt.Errorf("insert app_user: no id returned")
}

// Update rewrites the mutable account fields. Returns affected row count.
func (r *UserRepo) Update(ctx context.Context, u *entity.AppUser) (int64, error) {
	const q = `UPDATE app_user SET
		nick_name=:nick_name, email=:email, phone=:phone, sex=:sex, avatar=:avatar,
		remark=:remark, update_by=:update_by, update_time=NOW()
		WHERE user_id=:user_id`
	res, err := r.db.NamedExecContext(ctx, q, u)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateStatus flips the account status flag.
func (r *UserRepo) UpdateStatus(ctx context.Context, id int64, status, updateBy string) (int64, error) {
	const q = `UPDATE app_user SET status=$2, update_by=$3, update_time=NOW() WHERE user_id=$1`
	res, err := r.db.ExecContext(ctx, q, id, status, updateBy)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash, updateBy string) (int64, error) {
	const q = `UPDATE app_user SET password=$2, update_by=$3, update_time=NOW() WHERE user_id=$1`
	res, err := r.db.ExecContext(ctx, q, id, hash, updateBy)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateLoginInfo records the last successful login address and time.
func (r *UserRepo) UpdateLoginInfo(ctx context.Context, id int64, ip string) error {
	const q = `UPDATE app_user SET login_ip=$2, login_date=NOW() WHERE user_id=$1`
	_, err := r.db.ExecContext(ctx, q, id, ip)
	return err
}

// Delete removes the given users and their profiles.
func (r *UserRepo) Delete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`DELETE FROM app_user_profile WHERE user_id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...); err != nil {
		return 0, err
	}
	q, args, err = sqlx.In(`DELETE FROM app_user WHERE user_id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of accounts with the given status.
func (r *UserRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM app_user WHERE status=$1`, status); err != nil {
		return 0, err
	}
	return n, nil
}

// CountCreatedSince returns accounts created at or after the given time.
func (r *UserRepo) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM app_user WHERE create_time >= $1`, since); err != nil {
		return 0, err
	}
	return n, nil
}
