package appuser

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/appuser/entity"
	"github.com/opsarch/admin-core/pkg/cache"
)

// memStore is an in-memory UserStore for service tests.
type memStore struct {
	users        map[int64]*entity.AppUser
	nextID       int64
	createdSince time.Time
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]*entity.AppUser{}}
}

func (m *memStore) GetByID(_ context.Context, id int64) (*entity.AppUser, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) findBy(match func(*entity.AppUser) bool) (*entity.AppUser, error) {
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStore) GetByUsername(_ context.Context, name string) (*entity.AppUser, error) {
	return m.findBy(func(u *entity.AppUser) bool { return u.UserName == name })
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*entity.AppUser, error) {
	return m.findBy(func(u *entity.AppUser) bool { return u.Email == email })
}

func (m *memStore) GetByPhone(_ context.Context, phone string) (*entity.AppUser, error) {
	return m.findBy(func(u *entity.AppUser) bool { return u.Phone == phone })
}

func (m *memStore) List(_ context.Context, _ entity.ListQuery) ([]entity.AppUser, error) {
	out := make([]entity.AppUser, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, _ entity.ListQuery) (int64, error) {
	return int64(len(m.users)), nil
}

func (m *memStore) Insert(_ context.Context, u *entity.AppUser) (int64, error) {
	m.nextID++
	u.UserID = m.nextID
	cp := *u
	m.users[u.UserID] = &cp
	return u.UserID, nil
}

func (m *memStore) Update(_ context.Context, u *entity.AppUser) (int64, error) {
	existing, ok := m.users[u.UserID]
	if !ok {
		return 0, nil
	}
	existing.NickName = u.NickName
	existing.Email = u.Email
	existing.Phone = u.Phone
	existing.Sex = u.Sex
	existing.Status = u.Status
	return 1, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, status, _ string) (int64, error) {
	u, ok := m.users[id]
	if !ok {
		return 0, nil
	}
	u.Status = status
	return 1, nil
}

func (m *memStore) UpdatePassword(_ context.Context, id int64, hash, _ string) (int64, error) {
	u, ok := m.users[id]
	if !ok {
		return 0, nil
	}
	u.Password = hash
	return 1, nil
}

func (m *memStore) UpdateLoginInfo(_ context.Context, id int64, ip string) error {
	if u, ok := m.users[id]; ok {
		u.LoginIP = ip
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.users[id]; ok {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountByStatus(_ context.Context, status string) (int64, error) {
	var n int64
	for _, u := range m.users {
		if u.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	m.createdSince = since
	var n int64
	for _, u := range m.users {
		if !u.CreateTime.Before(since) {
			n++
		}
	}
	return n, nil
}

type memProfiles struct {
	profiles map[int64]*entity.AppUserProfile
}

func (m *memProfiles) GetByUserID(_ context.Context, userID int64) (*entity.AppUserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) Upsert(_ context.Context, p *entity.AppUserProfile) error {
	if m.profiles == nil {
		m.profiles = map[int64]*entity.AppUserProfile{}
	}
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

type staticLogins struct{ n int64 }

func (s staticLogins) CountSince(_ context.Context, _ time.Time) (int64, error) {
	return s.n, nil
}

type noopMetrics struct{}

func (noopMetrics) Incr(_ context.Context, _ string) {}

func downCache() *cache.Client {
	return cache.New(cache.Config{
		Addr:           "127.0.0.1:1",
		Timeout:        100 * time.Millisecond,
		RedialInterval: time.Hour,
	}, zap.NewNop().Sugar())
}

func newTestService(store *memStore) *Service {
	svc := NewService(store, &memProfiles{}, staticLogins{n: 3}, downCache(), noopMetrics{}, zap.NewNop().Sugar())
	svc.hasher = BcryptHasher{Cost: 4}
	return svc
}

func TestCreateAndGetDetail(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store)

	id, err := svc.Create(context.Background(), &entity.AppUser{
		UserName: "alice",
		NickName: "Alice",
		Email:    "alice@example.com",
	}, "secret1")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero id")
	}

	detail, err := svc.GetDetail(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDetail error: %v", err)
	}
	if detail.User.UserName != "alice" {
		t.Fatalf("userName mismatch: got %q", detail.User.UserName)
	}
	if detail.User.Status != entity.StatusNormal {
		t.Fatalf("expected default status %q, got %q", entity.StatusNormal, detail.User.Status)
	}
	if detail.User.Password == "secret1" {
		t.Fatal("password stored in plaintext")
	}
}

func TestCreateDuplicateName(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store)

	if _, err := svc.Create(context.Background(), &entity.AppUser{UserName: "alice"}, "secret1"); err != nil {
		t.Fatalf("first Create error: %v", err)
	}
	_, err := svc.Create(context.Background(), &entity.AppUser{UserName: "alice"}, "secret1")
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestCreateDuplicatePhoneAndEmail(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store)

	if _, err := svc.Create(context.Background(), &entity.AppUser{
		UserName: "alice", Phone: "13800000000", Email: "alice@example.com",
	}, "secret1"); err != nil {
		t.Fatalf("first Create error: %v", err)
	}

	_, err := svc.Create(context.Background(), &entity.AppUser{UserName: "bob", Phone: "13800000000"}, "secret1")
	if !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}

	_, err = svc.Create(context.Background(), &entity.AppUser{UserName: "bob", Email: "alice@example.com"}, "secret1")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestGetDetailNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemStore())

	_, err := svc.GetDetail(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store)

	id, err := svc.Create(context.Background(), &entity.AppUser{UserName: "alice"}, "oldpw1")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), id, "wrongpw", "newpw1"); !errors.Is(err, ErrBadOldPassword) {
		t.Fatalf("expected ErrBadOldPassword, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), id, "oldpw1", "newpw1"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	u := store.users[id]
	if !(BcryptHasher{}).Verify(u.Password, "newpw1") {
		t.Fatal("new password does not verify")
	}
}

func TestChangeStatusNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemStore())

	if err := svc.ChangeStatus(context.Background(), 42, entity.StatusDisabled, "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store)

	id1, _ := svc.Create(context.Background(), &entity.AppUser{UserName: "a"}, "secret1")
	id2, _ := svc.Create(context.Background(), &entity.AppUser{UserName: "b"}, "secret1")

	n, err := svc.Delete(context.Background(), []int64{id1, id2, 999})
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", n)
	}
}

func TestSaveAndGetProfile(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store)

	if err := svc.SaveProfile(context.Background(), &entity.AppUserProfile{UserID: 42}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	id, _ := svc.Create(context.Background(), &entity.AppUser{UserName: "alice"}, "secret1")
	if err := svc.SaveProfile(context.Background(), &entity.AppUserProfile{
		UserID:   id,
		RealName: "Alice Z",
	}); err != nil {
		t.Fatalf("SaveProfile error: %v", err)
	}

	p, err := svc.GetProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if p == nil || p.RealName != "Alice Z" {
		t.Fatalf("profile mismatch: %+v", p)
	}

	p, err = svc.GetProfile(context.Background(), id+1)
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil profile for user without one, got %+v", p)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store)

	_, _ = svc.Create(context.Background(), &entity.AppUser{UserName: "a"}, "secret1")
	id, _ := svc.Create(context.Background(), &entity.AppUser{UserName: "b"}, "secret1")
	_ = svc.ChangeStatus(context.Background(), id, entity.StatusDisabled, "admin")

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.TotalUsers != 2 || stats.ActiveUsers != 1 || stats.DisabledUsers != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.LoginsToday != 3 {
		t.Fatalf("expected 3 logins today, got %d", stats.LoginsToday)
	}
}

func TestStatsTodayBoundaryIsLocal(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store)

	before := time.Now()
	if _, err := svc.Stats(context.Background()); err != nil {
		t.Fatalf("Stats error: %v", err)
	}

	y, m, d := before.Date()
	want := time.Date(y, m, d, 0, 0, 0, 0, before.Location())
	if !store.createdSince.Equal(want) {
		t.Fatalf("today boundary = %v, want local midnight %v", store.createdSince, want)
	}
}

func TestMapUniqueViolation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want error
	}{
		{&pq.Error{Code: "23505", Constraint: "uidx_app_user_name"}, ErrDuplicateName},
		{&pq.Error{Code: "23505", Constraint: "uidx_app_user_phone"}, ErrDuplicatePhone},
		{&pq.Error{Code: "23505", Constraint: "uidx_app_user_email"}, ErrDuplicateEmail},
		{&pq.Error{Code: "42601"}, &pq.Error{Code: "42601"}},
		{errors.New("plain"), errors.New("plain")},
	}
	for _, tc := range cases {
		got := mapUniqueViolation(tc.err)
		if got.Error() != tc.want.Error() {
			t.Errorf("mapUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
