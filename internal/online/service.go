package online

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/auth"
	"github.com/opsarch/admin-core/pkg/cache"
)

// Session is one live login rebuilt from a stored access token.
type Session struct {
	TokenID       string `json:"tokenId"`
	UserName      string `json:"userName"`
	IPAddr        string `json:"ipaddr"`
	LoginLocation string `json:"loginLocation"`
	Browser       string `json:"browser"`
	OS            string `json:"os"`
	LoginTime     string `json:"loginTime"`
}

// ListQuery filters the session list. Matches are exact.
type ListQuery struct {
	UserName string
	IPAddr   string
}

// Service lists active sessions and evicts them. Sessions live only in
// Redis, so with Redis down the list is simply empty.
type Service struct {
	cfg    auth.TokenConfig
	cache  *cache.Client
	logger *zap.SugaredLogger
}

func NewService(cfg auth.TokenConfig, c *cache.Client, logger *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, cache: c, logger: logger}
}

// List scans the stored access tokens and decodes each into a session row.
// Tokens that no longer parse are skipped.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Session, error) {
	keys, err := s.cache.Keys(ctx, cache.PrefixAccessToken)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			return []Session{}, nil
		}
		return nil, err
	}
	sessions := make([]Session, 0, len(keys))
	for _, key := range keys {
		raw, err := s.cache.Get(ctx, key)
		if err != nil {
			continue
		}
		claims, err := auth.ParseToken(s.cfg, raw)
		if err != nil {
			s.logger.Debugw("skip undecodable session token", "key", key, "err", err)
			continue
		}
		if q.UserName != "" && claims.UserName != q.UserName {
			continue
		}
		if q.IPAddr != "" && claims.Login.IPAddr != q.IPAddr {
			continue
		}
		sessions = append(sessions, Session{
			TokenID:       claims.SessionID,
			UserName:      claims.UserName,
			IPAddr:        claims.Login.IPAddr,
			LoginLocation: claims.Login.LoginLocation,
			Browser:       claims.Login.Browser,
			OS:            claims.Login.OS,
			LoginTime:     claims.Login.LoginTime,
		})
	}
	return sessions, nil
}

// ForceLogout deletes the session keys so the tokens fail the auth check on
// their next request.
func (s *Service) ForceLogout(ctx context.Context, tokenIDs []string) error {
	keys := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		keys = append(keys, cache.PrefixAccessToken+":"+id)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Delete(ctx, keys...)
}
