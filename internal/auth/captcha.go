package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mojocn/base64Captcha"
	"go.uber.org/zap"

	"github.com/opsarch/admin-core/pkg/cache"
)

var (
	ErrCaptchaExpired = errors.New("captcha expired")
	ErrCaptchaWrong   = errors.New("captcha wrong")
)

const captchaTTL = 2 * time.Minute

// CaptchaService issues arithmetic captcha images whose answers live in
// Redis under captcha_codes:{uuid} for two minutes.
type CaptchaService struct {
	cache  *cache.Client
	driver *base64Captcha.DriverMath
	logger *zap.SugaredLogger
}

func NewCaptchaService(c *cache.Client, logger *zap.SugaredLogger) *CaptchaService {
	driver := base64Captcha.NewDriverMath(48, 130, 0, base64Captcha.OptionShowHollowLine, nil, nil, nil)
	return &CaptchaService{cache: c, driver: driver, logger: logger}
}

// Generate renders a new captcha and stores its answer. When Redis is down
// the image is still returned; verification is skipped in that mode.
func (s *CaptchaService) Generate(ctx context.Context) (id, imgB64 string, err error) {
	id = uuid.NewString()
	_, question, answer := s.driver.GenerateIdQuestionAnswer()
	item, err := s.driver.DrawCaptcha(question)
	if err != nil {
		return "", "", err
	}
	if err := s.cache.Set(ctx, cache.PrefixCaptcha+":"+id, answer, captchaTTL); err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			s.logger.Warnw("redis unavailable, captcha answer not stored", "captchaId", id)
		} else {
			s.logger.Warnw("store captcha answer failed", "captchaId", id, "err", err)
		}
	}
	return id, item.EncodeB64string(), nil
}

// Verify consumes the stored answer. A missing key means expired; Redis
// being down is treated as pass-through (degraded mode).
func (s *CaptchaService) Verify(ctx context.Context, id, answer string) error {
	want, err := s.cache.Get(ctx, cache.PrefixCaptcha+":"+id)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			s.logger.Warnw("redis unavailable, skipping captcha verification")
			return nil
		}
		if errors.Is(err, cache.ErrMiss) {
			return ErrCaptchaExpired
		}
		return err
	}
	// One shot: the code is consumed whether or not it matches.
	_ = s.cache.Delete(ctx, cache.PrefixCaptcha+":"+id)
	if !strings.EqualFold(strings.TrimSpace(answer), want) {
		return ErrCaptchaWrong
	}
	return nil
}
