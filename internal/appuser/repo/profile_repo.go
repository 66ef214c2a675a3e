package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/opsarch/admin-core/internal/appuser/entity"
)

// ProfileRepo provides data access for the one-to-one app_user_profile table.
type ProfileRepo struct {
	db *sqlx.DB
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// EnsureTable creates the app_user_profile table if it does not already exist.
func (r *ProfileRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS app_user_profile (
  profile_id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  real_name VARCHAR(30) NOT NULL DEFAULT '',
  id_card VARCHAR(18) NOT NULL DEFAULT '',
  birthday DATE,
  address VARCHAR(200) NOT NULL DEFAULT '',
  education VARCHAR(20) NOT NULL DEFAULT '',
  occupation VARCHAR(50) NOT NULL DEFAULT '',
  income_level VARCHAR(20) NOT NULL DEFAULT '',
  marital_status VARCHAR(1) NOT NULL DEFAULT '0',
  emergency_contact VARCHAR(30) NOT NULL DEFAULT '',
  emergency_phone VARCHAR(20) NOT NULL DEFAULT '',
  create_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  update_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uidx_app_user_profile_user ON app_user_profile (user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// GetByUserID returns the profile for a user or sql.ErrNoRows.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID int64) (*entity.AppUserProfile, error) {
	const q = `SELECT profile_id, user_id, real_name, id_card, birthday, address, education,
		occupation, income_level, marital_status, emergency_contact, emergency_phone,
		create_time, update_time
	FROM app_user_profile WHERE user_id=$1`
	var p entity.AppUserProfile
	if err := r.db.GetContext(ctx, &p, q, userID); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts or updates the profile keyed by user_id.
func (r *ProfileRepo) Upsert(ctx context.Context, p *entity.AppUserProfile) error {
	const q = `INSERT INTO app_user_profile
		(user_id, real_name, id_card, birthday, address, education, occupation,
		 income_level, marital_status, emergency_contact, emergency_phone)
	VALUES (:user_id, :real_name, :id_card, :birthday, :address, :education, :occupation,
		:income_level, :marital_status, :emergency_contact, :emergency_phone)
	ON CONFLICT (user_id) DO UPDATE SET
		real_name=EXCLUDED.real_name, id_card=EXCLUDED.id_card, birthday=EXCLUDED.birthday,
		address=EXCLUDED.address, education=EXCLUDED.education, occupation=EXCLUDED.occupation,
		income_level=EXCLUDED.income_level, marital_status=EXCLUDED.marital_status,
		emergency_contact=EXCLUDED.emergency_contact, emergency_phone=EXCLUDED.emergency_phone,
		update_time=NOW()`
	_, err := r.db.NamedExecContext(ctx, q, p)
	return err
}
