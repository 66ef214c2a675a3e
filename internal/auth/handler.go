package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/appuser"
	cfgentity "github.com/opsarch/admin-core/internal/sysconfig/entity"
	"github.com/opsarch/admin-core/internal/web"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, validate: validator.New(), logger: logger}
}

// LoginRequest is the POST /login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=100"`
	Code     string `json:"code" validate:"omitempty,max=10"`
	UUID     string `json:"uuid" validate:"omitempty,max=64"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), LoginInput{
		Identifier:  req.Username,
		Password:    req.Password,
		CaptchaID:   req.UUID,
		CaptchaCode: req.Code,
		IP:          web.ClientIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		h.failLogin(w, err)
		return
	}
	web.OK(w, res)
}

// RegisterRequest is the POST /register payload.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=2,max=30"`
	NickName        string `json:"nickName" validate:"omitempty,max=30"`
	Email           string `json:"email" validate:"omitempty,email,max=50"`
	Phone           string `json:"phone" validate:"omitempty,max=20"`
	Password        string `json:"password" validate:"required,min=6,max=100"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,min=6,max=100"`
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), RegisterInput{
		UserName:        req.Username,
		NickName:        req.NickName,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		IP:              web.ClientIP(r),
		UserAgent:       r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRegisterClosed):
			web.Fail(w, "registration is closed")
		case errors.Is(err, ErrPasswordMismatch):
			web.Fail(w, "passwords do not match")
		case errors.Is(err, ErrWeakPassword):
			web.Fail(w, "password must be at least 6 characters with a letter and a digit")
		case errors.Is(err, appuser.ErrDuplicateName):
			web.Fail(w, "username already exists")
		case errors.Is(err, appuser.ErrDuplicatePhone):
			web.Fail(w, "phone number already exists")
		case errors.Is(err, appuser.ErrDuplicateEmail):
			web.Fail(w, "email already exists")
		case errors.Is(err, ErrCaptchaExpired), errors.Is(err, ErrCaptchaWrong):
			web.Fail(w, "captcha verification failed")
		default:
			h.logger.Errorw("register failed", "err", err)
			web.Error(w, "register failed")
		}
		return
	}
	web.OK(w, res)
}

// Logout handles POST /logout. It accepts any token state so a client with
// an expired token can still clear its session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := bearerToken(r); raw != "" {
		if claims, err := ParseToken(h.svc.cfg, raw); err == nil {
			h.svc.Logout(r.Context(), claims.SessionID, claims.UserName)
		}
	}
	web.OKWithMsg(w, "logged out", nil)
}

// GetInfo handles GET /getInfo, returning the authenticated user's detail.
func (h *Handler) GetInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IdentityFrom(r.Context())
	if !ok {
		web.Unauthorized(w, "not logged in")
		return
	}
	detail, err := h.svc.GetInfo(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, appuser.ErrNotFound) {
			web.Unauthorized(w, "account no longer exists")
			return
		}
		h.logger.Errorw("get info failed", "userId", id.UserID, "err", err)
		web.Error(w, "failed to query user")
		return
	}
	web.OK(w, detail)
}

// CaptchaImage handles GET /captchaImage. When the captcha switch is off the
// client is told to skip the challenge.
func (h *Handler) CaptchaImage(w http.ResponseWriter, r *http.Request) {
	captchaEnabled := h.svc.switches.BoolValue(r.Context(), cfgentity.KeyCaptchaEnabled, true)
	registerEnabled := h.svc.switches.BoolValue(r.Context(), cfgentity.KeyRegisterEnabled, true)
	body := map[string]any{
		"captchaEnabled":  captchaEnabled,
		"registerEnabled": registerEnabled,
	}
	if captchaEnabled {
		id, img, err := h.svc.captcha.Generate(r.Context())
		if err != nil {
			h.logger.Errorw("generate captcha failed", "err", err)
			web.Error(w, "failed to generate captcha")
			return
		}
		body["uuid"] = id
		body["img"] = img
	}
	web.OK(w, body)
}

func (h *Handler) failLogin(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadCredentials):
		web.Fail(w, "invalid username or password")
	case errors.Is(err, ErrDisabled):
		web.Fail(w, "account is disabled")
	case errors.Is(err, ErrLocked):
		web.Fail(w, "too many failed attempts, try again later")
	case errors.Is(err, ErrCaptchaExpired):
		web.Fail(w, "captcha expired")
	case errors.Is(err, ErrCaptchaWrong):
		web.Fail(w, "captcha incorrect")
	default:
		h.logger.Errorw("login failed", "err", err)
		web.Error(w, "login failed")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		web.BadRequest(w, "invalid payload")
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			web.BadRequest(w, "invalid field: "+verrs[0].Field())
			return false
		}
		web.BadRequest(w, "invalid payload")
		return false
	}
	return true
}
