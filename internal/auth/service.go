package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/appuser"
	userentity "github.com/opsarch/admin-core/internal/appuser/entity"
	logentity "github.com/opsarch/admin-core/internal/loginlog/entity"
	cfgentity "github.com/opsarch/admin-core/internal/sysconfig/entity"
	"github.com/opsarch/admin-core/pkg/cache"
	"github.com/opsarch/admin-core/pkg/utilities"
)

var (
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrDisabled         = errors.New("account disabled")
	ErrLocked           = errors.New("account locked")
	ErrRegisterClosed   = errors.New("registration closed")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrWeakPassword     = errors.New("password too weak")
)

// UserStore is the account lookup surface; *repo.UserRepo satisfies it.
type UserStore interface {
	GetByUsername(ctx context.Context, name string) (*userentity.AppUser, error)
	GetByEmail(ctx context.Context, email string) (*userentity.AppUser, error)
	UpdateLoginInfo(ctx context.Context, id int64, ip string) error
}

// UserService is the slice of the appuser service the auth flows need.
type UserService interface {
	Create(ctx context.Context, u *userentity.AppUser, plainPassword string) (int64, error)
	GetDetail(ctx context.Context, id int64) (*userentity.UserDetail, error)
}

// LogRecorder appends login log entries best effort.
type LogRecorder interface {
	Record(ctx context.Context, l *logentity.LoginLog)
}

// SwitchSource reports feature switches (captcha / open registration).
type SwitchSource interface {
	BoolValue(ctx context.Context, key string, fallback bool) bool
}

// MetricRecorder increments best-effort business counters.
type MetricRecorder interface {
	Incr(ctx context.Context, name string)
}

// Lockout knobs: failures are counted in Redis inside a sliding window so
// a burst of bad passwords locks the account out temporarily.
const (
	maxFailedLogins = 5
	lockWindow      = 15 * time.Minute
)

// LoginInput is the credentials payload after validation.
type LoginInput struct {
	Identifier  string
	Password    string
	CaptchaID   string
	CaptchaCode string
	IP          string
	UserAgent   string
}

// LoginResult carries the issued session.
type LoginResult struct {
	Token     string              `json:"token"`
	TokenType string              `json:"tokenType"`
	ExpiresIn int64               `json:"expiresIn"`
	User      *userentity.AppUser `json:"user"`
}

// Service orchestrates login, registration and logout.
type Service struct {
	cfg      TokenConfig
	users    UserStore
	accounts UserService
	captcha  *CaptchaService
	logs     LogRecorder
	switches SwitchSource
	cache    *cache.Client
	metrics  MetricRecorder
	hasher   appuser.PasswordHasher
	logger   *zap.SugaredLogger
}

func NewService(
	cfg TokenConfig,
	users UserStore,
	accounts UserService,
	captcha *CaptchaService,
	logs LogRecorder,
	switches SwitchSource,
	c *cache.Client,
	metrics MetricRecorder,
	logger *zap.SugaredLogger,
) *Service {
	return &Service{
		cfg:      cfg,
		users:    users,
		accounts: accounts,
		captcha:  captcha,
		logs:     logs,
		switches: switches,
		cache:    c,
		metrics:  metrics,
		hasher:   appuser.BcryptHasher{Cost: 12},
		logger:   logger,
	}
}

// Login authenticates by username or email, enforces the captcha and the
// lockout window, then issues a session token. Every attempt is recorded in
// the login log.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	return s.login(ctx, in, false)
}

// login implements Login. skipCaptcha lets Register issue the session for an
// account it just created without forcing a second captcha round trip.
func (s *Service) login(ctx context.Context, in LoginInput, skipCaptcha bool) (*LoginResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, ErrBadCredentials
	}

	if !skipCaptcha && s.switches.BoolValue(ctx, cfgentity.KeyCaptchaEnabled, true) {
		if err := s.captcha.Verify(ctx, in.CaptchaID, in.CaptchaCode); err != nil {
			s.recordAttempt(ctx, identifier, in, logentity.StatusFailure, "captcha failed")
			return nil, err
		}
	}

	if s.isLockedOut(ctx, identifier) {
		s.recordAttempt(ctx, identifier, in, logentity.StatusFailure, "account locked")
		return nil, ErrLocked
	}

	var u *userentity.AppUser
	var err error
	if strings.Contains(identifier, "@") {
		u, err = s.users.GetByEmail(ctx, identifier)
	} else {
		u, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// same failure path as a wrong password, avoids enumeration
			s.failLogin(ctx, identifier, in, "unknown account")
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(u.Password, in.Password) {
		s.failLogin(ctx, identifier, in, "wrong password")
		return nil, ErrBadCredentials
	}
	if u.Disabled() {
		s.recordAttempt(ctx, identifier, in, logentity.StatusFailure, "account disabled")
		return nil, ErrDisabled
	}

	s.clearLockout(ctx, identifier)
	if err := s.users.UpdateLoginInfo(ctx, u.UserID, in.IP); err != nil {
		s.logger.Warnw("update login info failed", "userId", u.UserID, "err", err)
	}

	sessionID := utilities.NewSessionID()
	meta := s.loginMeta(in)
	token, err := IssueToken(s.cfg, u.UserID, u.UserName, sessionID, meta)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if err := s.cache.Set(ctx, cache.PrefixAccessToken+":"+sessionID, token, s.cfg.TTL); err != nil {
		if !errors.Is(err, cache.ErrUnavailable) {
			s.logger.Warnw("store session token failed", "sessionId", sessionID, "err", err)
		}
	}

	s.recordAttempt(ctx, u.UserName, in, logentity.StatusSuccess, "login success")
	s.metrics.Incr(ctx, "user_login_success")
	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.cfg.TTL.Seconds()),
		User:      u,
	}, nil
}

// RegisterInput is the registration payload after validation.
type RegisterInput struct {
	UserName        string
	Email           string
	Phone           string
	NickName        string
	Password        string
	ConfirmPassword string
	IP              string
	UserAgent       string
}

// Register creates an account when self registration is open, then logs the
// user straight in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	if !s.switches.BoolValue(ctx, cfgentity.KeyRegisterEnabled, true) {
		return nil, ErrRegisterClosed
	}
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if !passwordStrongEnough(in.Password) {
		return nil, ErrWeakPassword
	}
	nick := in.NickName
	if nick == "" {
		nick = in.UserName
	}
	u := &userentity.AppUser{
		UserName: in.UserName,
		NickName: nick,
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:    in.Phone,
		Status:   userentity.StatusNormal,
		CreateBy: in.UserName,
		UpdateBy: in.UserName,
	}
	if _, err := s.accounts.Create(ctx, u, in.Password); err != nil {
		return nil, err
	}
	s.metrics.Incr(ctx, "user_register")
	return s.login(ctx, LoginInput{
		Identifier: in.UserName,
		Password:   in.Password,
		IP:         in.IP,
		UserAgent:  in.UserAgent,
	}, true)
}

// Logout drops the session key so the token fails the middleware check.
func (s *Service) Logout(ctx context.Context, sessionID, userName string) {
	if err := s.cache.Delete(ctx, cache.PrefixAccessToken+":"+sessionID); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		s.logger.Warnw("delete session failed", "sessionId", sessionID, "err", err)
	}
	s.logs.Record(ctx, &logentity.LoginLog{
		UserName:  userName,
		Status:    logentity.StatusSuccess,
		Msg:       "logout",
		LoginTime: time.Now(),
	})
}

// GetInfo returns the current user's detail record.
func (s *Service) GetInfo(ctx context.Context, userID int64) (*userentity.UserDetail, error) {
	return s.accounts.GetDetail(ctx, userID)
}

// SessionAlive reports whether the session key still exists. With Redis
// down there is nothing to consult, so the JWT alone is trusted.
func (s *Service) SessionAlive(ctx context.Context, sessionID string) bool {
	_, err := s.cache.Get(ctx, cache.PrefixAccessToken+":"+sessionID)
	if err == nil {
		return true
	}
	return errors.Is(err, cache.ErrUnavailable)
}

func (s *Service) loginMeta(in LoginInput) LoginMeta {
	browser, osName := parseUserAgent(in.UserAgent)
	return LoginMeta{
		IPAddr:    in.IP,
		Browser:   browser,
		OS:        osName,
		LoginTime: time.Now().Format("2006-01-02 15:04:05"),
	}
}

func (s *Service) failLogin(ctx context.Context, identifier string, in LoginInput, msg string) {
	if _, err := s.cache.Incr(ctx, cache.PrefixLoginFail+":"+identifier, lockWindow); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		s.logger.Warnw("increment login failures failed", "identifier", identifier, "err", err)
	}
	s.recordAttempt(ctx, identifier, in, logentity.StatusFailure, msg)
	s.metrics.Incr(ctx, "user_login_failure")
}

func (s *Service) isLockedOut(ctx context.Context, identifier string) bool {
	v, err := s.cache.Get(ctx, cache.PrefixLoginFail+":"+identifier)
	if err != nil {
		return false
	}
	var n int
	_, _ = fmt.Sscanf(v, "%d", &n)
	return n >= maxFailedLogins
}

func (s *Service) clearLockout(ctx context.Context, identifier string) {
	_ = s.cache.Delete(ctx, cache.PrefixLoginFail+":"+identifier)
}

func (s *Service) recordAttempt(ctx context.Context, userName string, in LoginInput, status, msg string) {
	browser, osName := parseUserAgent(in.UserAgent)
	s.logs.Record(ctx, &logentity.LoginLog{
		UserName:  userName,
		IPAddr:    in.IP,
		Browser:   browser,
		OS:        osName,
		Status:    status,
		Msg:       msg,
		LoginTime: time.Now(),
	})
}

// passwordStrongEnough requires at least six characters with both a letter
// and a digit.
func passwordStrongEnough(pw string) bool {
	if len(pw) < 6 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// parseUserAgent extracts a coarse browser/OS pair, enough for the login
// log and online-session display.
func parseUserAgent(ua string) (browser, osName string) {
	browser, osName = "Unknown", "Unknown"
	switch {
	case strings.Contains(ua, "Edg/"):
		browser = "Edge"
	case strings.Contains(ua, "Firefox/"):
		browser = "Firefox"
	case strings.Contains(ua, "Chrome/"):
		browser = "Chrome"
	case strings.Contains(ua, "Safari/"):
		browser = "Safari"
	case strings.Contains(ua, "curl/"):
		browser = "curl"
	}
	switch {
	case strings.Contains(ua, "Windows"):
		osName = "Windows"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		osName = "macOS"
	case strings.Contains(ua, "Android"):
		osName = "Android"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		osName = "iOS"
	case strings.Contains(ua, "Linux"):
		osName = "Linux"
	}
	return browser, osName
}
