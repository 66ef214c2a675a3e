package appuser

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/opsarch/admin-core/internal/appuser/entity"
	"github.com/opsarch/admin-core/pkg/cache"
)

// PasswordHasher defines the minimal hashing interface so the algorithm can
// be swapped without touching callers.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher is the default PasswordHasher.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateName  = errors.New("username already exists")
	ErrDuplicatePhone = errors.New("phone number already exists")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrBadOldPassword = errors.New("old password incorrect")
)

// UserStore is the persistence surface the service needs; *repo.UserRepo
// satisfies it.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*entity.AppUser, error)
	GetByUsername(ctx context.Context, name string) (*entity.AppUser, error)
	GetByEmail(ctx context.Context, email string) (*entity.AppUser, error)
	GetByPhone(ctx context.Context, phone string) (*entity.AppUser, error)
	List(ctx context.Context, q entity.ListQuery) ([]entity.AppUser, error)
	Count(ctx context.Context, q entity.ListQuery) (int64, error)
	Insert(ctx context.Context, u *entity.AppUser) (int64, error)
	Update(ctx context.Context, u *entity.AppUser) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status, updateBy string) (int64, error)
	UpdatePassword(ctx context.Context, id int64, hash, updateBy string) (int64, error)
	UpdateLoginInfo(ctx context.Context, id int64, ip string) error
	Delete(ctx context.Context, ids []int64) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

// ProfileStore is satisfied by *repo.ProfileRepo.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID int64) (*entity.AppUserProfile, error)
	Upsert(ctx context.Context, p *entity.AppUserProfile) error
}

// LoginCounter reports login activity for the stats overview; the login-log
// repository satisfies it.
type LoginCounter interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// MetricRecorder increments best-effort business counters.
type MetricRecorder interface {
	Incr(ctx context.Context, name string)
}

// Cache TTLs per read path.
const (
	listCacheTTL   = 5 * time.Minute
	detailCacheTTL = 10 * time.Minute
	statsCacheTTL  = time.Minute
)

// Service orchestrates user lifecycle flows and the read-through caching
// around them.
type Service struct {
	users    UserStore
	profiles ProfileStore
	logins   LoginCounter
	cache    *cache.Client
	metrics  MetricRecorder
	hasher   PasswordHasher
	logger   *zap.SugaredLogger
}

func NewService(users UserStore, profiles ProfileStore, logins LoginCounter, c *cache.Client, metrics MetricRecorder, logger *zap.SugaredLogger) *Service {
	return &Service{
		users:    users,
		profiles: profiles,
		logins:   logins,
		cache:    c,
		metrics:  metrics,
		hasher:   BcryptHasher{Cost: 12},
		logger:   logger,
	}
}

// listResult is the cached shape of a List call.
type listResult struct {
	Rows  []entity.AppUser `json:"rows"`
	Total int64            `json:"total"`
}

// List returns a filtered page of users plus the total count, served from
// cache when possible.
func (s *Service) List(ctx context.Context, q entity.ListQuery) ([]entity.AppUser, int64, error) {
	key := listCacheKey(q)
	res, err := cache.Remember(ctx, s.cache, key, listCacheTTL, func(ctx context.Context) (listResult, error) {
		rows, err := s.users.List(ctx, q)
		if err != nil {
			return listResult{}, err
		}
		total, err := s.users.Count(ctx, q)
		if err != nil {
			return listResult{}, err
		}
		return listResult{Rows: rows, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Rows, res.Total, nil
}

func listCacheKey(q entity.ListQuery) string {
	begin, end := "", ""
	if q.BeginTime != nil {
		begin = q.BeginTime.Format(time.RFC3339)
	}
	if q.EndTime != nil {
		end = q.EndTime.Format(time.RFC3339)
	}
	return cache.HashKey(cache.PrefixUserList,
		q.UserName, q.NickName, q.Email, q.Phone, q.Sex, q.Status,
		begin, end, fmt.Sprint(q.Limit), fmt.Sprint(q.Offset))
}

// GetDetail returns the user with its profile, cached for ten minutes.
func (s *Service) GetDetail(ctx context.Context, id int64) (*entity.UserDetail, error) {
	key := fmt.Sprintf("%s:%d", cache.PrefixUserDetail, id)
	detail, err := cache.Remember(ctx, s.cache, key, detailCacheTTL, func(ctx context.Context) (entity.UserDetail, error) {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return entity.UserDetail{}, ErrNotFound
			}
			return entity.UserDetail{}, err
		}
		d := entity.UserDetail{User: *u}
		p, err := s.profiles.GetByUserID(ctx, id)
		if err == nil {
			d.Profile = p
		} else if !errors.Is(err, sql.ErrNoRows) {
			return entity.UserDetail{}, err
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetByID returns the bare account row.
func (s *Service) GetByID(ctx context.Context, id int64) (*entity.AppUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// Create adds an account after uniqueness pre-checks. The DB unique indexes
// back the pre-checks up, so a concurrent duplicate still maps to the same
// error instead of surfacing as an internal failure.
func (s *Service) Create(ctx context.Context, u *entity.AppUser, plainPassword string) (int64, error) {
	if err := s.checkUnique(ctx, u.UserName, u.Phone, u.Email, 0); err != nil {
		return 0, err
	}
	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return 0, err
	}
	u.Password = hash
	if u.Status == "" {
		u.Status = entity.StatusNormal
	}
	if u.Sex == "" {
		u.Sex = "2"
	}
	id, err := s.users.Insert(ctx, u)
	if err != nil {
		return 0, mapUniqueViolation(err)
	}
	s.invalidateUserCaches(ctx)
	s.metrics.Incr(ctx, "user_add")
	s.logger.Infow("user created", "userId", id, "userName", u.UserName)
	return id, nil
}

// Update rewrites mutable fields of an existing account.
func (s *Service) Update(ctx context.Context, u *entity.AppUser) error {
	if err := s.checkUnique(ctx, "", u.Phone, u.Email, u.UserID); err != nil {
		return err
	}
	rows, err := s.users.Update(ctx, u)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	s.invalidateUserCaches(ctx)
	return nil
}

// Delete removes the given accounts and their profiles.
func (s *Service) Delete(ctx context.Context, ids []int64) (int64, error) {
	n, err := s.users.Delete(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.invalidateUserCaches(ctx)
	s.metrics.Incr(ctx, "user_delete")
	return n, nil
}

// ChangeStatus enables or disables an account.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status, by string) error {
	rows, err := s.users.UpdateStatus(ctx, id, status, by)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	s.invalidateUserCaches(ctx)
	return nil
}

// ResetPassword sets a new password without checking the old one (admin op).
func (s *Service) ResetPassword(ctx context.Context, id int64, newPassword, by string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	rows, err := s.users.UpdatePassword(ctx, id, hash, by)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ChangePassword verifies the old password before setting the new one.
func (s *Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !s.hasher.Verify(u.Password, oldPassword) {
		return ErrBadOldPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	_, err = s.users.UpdatePassword(ctx, id, hash, u.UserName)
	return err
}

// GetProfile returns the demographics record; nil when none exists yet.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*entity.AppUserProfile, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// SaveProfile inserts or updates the demographics record.
func (s *Service) SaveProfile(ctx context.Context, p *entity.AppUserProfile) error {
	if _, err := s.users.GetByID(ctx, p.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return err
	}
	s.invalidateUserCaches(ctx)
	return nil
}

// Stats aggregates the overview counters, cached for one minute.
func (s *Service) Stats(ctx context.Context) (*entity.StatsOverview, error) {
	stats, err := cache.Remember(ctx, s.cache, cache.PrefixStats, statsCacheTTL, func(ctx context.Context) (entity.StatsOverview, error) {
		var out entity.StatsOverview
		var err error
		if out.TotalUsers, err = s.users.Count(ctx, entity.ListQuery{}); err != nil {
			return out, err
		}
		if out.ActiveUsers, err = s.users.CountByStatus(ctx, entity.StatusNormal); err != nil {
			return out, err
		}
		if out.DisabledUsers, err = s.users.CountByStatus(ctx, entity.StatusDisabled); err != nil {
			return out, err
		}
		// Truncate works in UTC; "today" must follow the server's zone.
		now := time.Now()
		y, m, d := now.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		if out.NewUsersToday, err = s.users.CountCreatedSince(ctx, midnight); err != nil {
			return out, err
		}
		if out.LoginsToday, err = s.logins.CountSince(ctx, midnight); err != nil {
			return out, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// checkUnique runs existence pre-checks for username/phone/email. selfID
// excludes the record being updated.
func (s *Service) checkUnique(ctx context.Context, name, phone, email string, selfID int64) error {
	if name != "" {
		if other, err := s.users.GetByUsername(ctx, name); err == nil && other.UserID != selfID {
			return ErrDuplicateName
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	if phone != "" {
		if other, err := s.users.GetByPhone(ctx, phone); err == nil && other.UserID != selfID {
			return ErrDuplicatePhone
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	if email != "" {
		if other, err := s.users.GetByEmail(ctx, email); err == nil && other.UserID != selfID {
			return ErrDuplicateEmail
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	return nil
}

// mapUniqueViolation folds a Postgres 23505 into the matching duplicate
// sentinel so concurrent inserts behave like the pre-check.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	switch {
	case strings.Contains(pqErr.Constraint, "phone"):
		return ErrDuplicatePhone
	case strings.Contains(pqErr.Constraint, "email"):
		return ErrDuplicateEmail
	default:
		return ErrDuplicateName
	}
}

func (s *Service) invalidateUserCaches(ctx context.Context) {
	for _, prefix := range []string{cache.PrefixUserList, cache.PrefixUserDetail, cache.PrefixStats} {
		if _, err := s.cache.DeleteByPrefix(ctx, prefix); err != nil && !errors.Is(err, cache.ErrUnavailable) {
			s.logger.Warnw("cache invalidation failed", "prefix", prefix, "err", err)
		}
	}
}
