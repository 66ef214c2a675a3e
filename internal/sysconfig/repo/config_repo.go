package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/opsarch/admin-core/internal/sysconfig/entity"
)

// ConfigRepo provides data access for the sys_config table.
type ConfigRepo struct {
	db *sqlx.DB
}

func NewConfigRepo(db *sqlx.DB) *ConfigRepo { return &ConfigRepo{db: db} }

// EnsureTable creates the sys_config table and seeds the switches the
// application depends on (idempotent).
func (r *ConfigRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sys_config (
  config_id BIGSERIAL PRIMARY KEY,
  config_key VARCHAR(100) NOT NULL,
  config_value VARCHAR(500) NOT NULL DEFAULT '',
  remark VARCHAR(500) NOT NULL DEFAULT '',
  version BIGINT NOT NULL DEFAULT 1,
  create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  update_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uidx_sys_config_key ON sys_config (config_key);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	const seed = `INSERT INTO sys_config (config_key, config_value, remark) VALUES
		($1, 'true', 'whether image captcha is required at login'),
		($2, 'true', 'whether self registration is open')
	ON CONFLICT (config_key) DO NOTHING`
	_, err := r.db.ExecContext(ctx, seed, entity.KeyCaptchaEnabled, entity.KeyRegisterEnabled)
	return err
}

// List returns every configuration row ordered by key.
func (r *ConfigRepo) List(ctx context.Context) ([]entity.Config, error) {
	const q = `SELECT config_id, config_key, config_value, remark, version, create_time, update_time
		FROM sys_config ORDER BY config_key`
	rows := []entity.Config{}
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetByKey returns one row or sql.ErrNoRows.
func (r *ConfigRepo) GetByKey(ctx context.Context, key string) (*entity.Config, error) {
	const q = `SELECT config_id, config_key, config_value, remark, version, create_time, update_time
		FROM sys_config WHERE config_key=$1`
	var c entity.Config
	if err := r.db.GetContext(ctx, &c, q, key); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update rewrites a value using optimistic locking on version. Returns the
// affected row count; 0 with a nil error means version mismatch.
func (r *ConfigRepo) Update(ctx context.Context, key, value string, expectedVersion int64) (int64, error) {
	const q = `UPDATE sys_config SET config_value=$2, version=version+1, update_time=NOW()
		WHERE config_key=$1 AND version=$3`
	res, err := r.db.ExecContext(ctx, q, key, value, expectedVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Upsert inserts or overwrites a value unconditionally (used by seeding and
// admin-created keys).
func (r *ConfigRepo) Upsert(ctx context.Context, key, value, remark string) error {
	const q = `INSERT INTO sys_config (config_key, config_value, remark) VALUES ($1, $2, $3)
		ON CONFLICT (config_key) DO UPDATE SET
			config_value=EXCLUDED.config_value, version=sys_config.version+1, update_time=NOW()`
	_, err := r.db.ExecContext(ctx, q, key, value, remark)
	return err
}
