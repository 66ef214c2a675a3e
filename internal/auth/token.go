package auth

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// TokenConfigFromEnv reads JWT settings from env vars. Tokens default to a
// 24h lifetime.
func TokenConfigFromEnv() TokenConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "change-me-in-production"
	}
	ttl := 24 * time.Hour
	if v := os.Getenv("JWT_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Minute
		}
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "admin-core"
	}
	return TokenConfig{Secret: []byte(secret), TTL: ttl, Issuer: issuer}
}

// LoginMeta is embedded into token claims so the online-session list can be
// rebuilt from the stored tokens alone.
type LoginMeta struct {
	IPAddr        string `json:"ipaddr"`
	LoginLocation string `json:"loginLocation"`
	Browser       string `json:"browser"`
	OS            string `json:"os"`
	LoginTime     string `json:"loginTime"`
}

// Claims carries the registered claims plus the session identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	SessionID string    `json:"sessionId"`
	Login     LoginMeta `json:"loginInfo"`
}

// IssueToken signs an HS256 token for the given user session.
func IssueToken(cfg TokenConfig, userID int64, userName, sessionID string, meta LoginMeta) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		},
		UserID:    userID,
		UserName:  userName,
		SessionID: sessionID,
		Login:     meta,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// ParseToken verifies the signature and expiry and returns the claims.
func ParseToken(cfg TokenConfig, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
