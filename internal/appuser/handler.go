package appuser

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/appuser/entity"
	"github.com/opsarch/admin-core/internal/web"
)

// Handler exposes the user management endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, validate: validator.New(), logger: logger}
}

// List handles GET /app/user/list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := web.ParsePage(r)
	q := r.URL.Query()
	lq := entity.ListQuery{
		UserName: q.Get("userName"),
		NickName: q.Get("nickName"),
		Email:    q.Get("email"),
		Phone:    q.Get("phone"),
		Sex:      q.Get("sex"),
		Status:   q.Get("status"),
		Limit:    page.PageSize,
		Offset:   page.Offset(),
	}
	if t, ok := parseTime(q.Get("beginTime")); ok {
		lq.BeginTime = &t
	}
	if t, ok := parseTime(q.Get("endTime")); ok {
		lq.EndTime = &t
	}
	rows, total, err := h.svc.List(r.Context(), lq)
	if err != nil {
		h.logger.Errorw("list users failed", "err", err)
		web.Error(w, "failed to query users")
		return
	}
	web.Page(w, rows, total)
}

// Get handles GET /app/user/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		web.BadRequest(w, "invalid user id")
		return
	}
	detail, err := h.svc.GetDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			web.NotFound(w, "user not found")
			return
		}
		h.logger.Errorw("get user failed", "userId", id, "err", err)
		web.Error(w, "failed to query user")
		return
	}
	web.OK(w, detail)
}

// CreateRequest is the POST /app/user payload.
type CreateRequest struct {
	UserName string `json:"userName" validate:"required,min=2,max=30"`
	NickName string `json:"nickName" validate:"required,max=30"`
	Email    string `json:"email" validate:"omitempty,email,max=50"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Sex      string `json:"sex" validate:"omitempty,oneof=0 1 2"`
	Password string `json:"password" validate:"required,min=6,max=100"`
	Status   string `json:"status" validate:"omitempty,oneof=0 1"`
	Remark   string `json:"remark" validate:"max=500"`
}

// Create handles POST /app/user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	by, _ := web.IdentityFrom(r.Context())
	u := &entity.AppUser{
		UserName: req.UserName,
		NickName: req.NickName,
		Email:    req.Email,
		Phone:    req.Phone,
		Sex:      req.Sex,
		Status:   req.Status,
		CreateBy: by.UserName,
		UpdateBy: by.UserName,
	}
	if req.Remark != "" {
		u.Remark = &req.Remark
	}
	id, err := h.svc.Create(r.Context(), u, req.Password)
	if err != nil {
		h.failBusiness(w, err, "create user failed")
		return
	}
	web.OK(w, map[string]int64{"userId": id})
}

// UpdateRequest is the PUT /app/user payload.
type UpdateRequest struct {
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	NickName string `json:"nickName" validate:"required,max=30"`
	Email    string `json:"email" validate:"omitempty,email,max=50"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Sex      string `json:"sex" validate:"omitempty,oneof=0 1 2"`
	Avatar   string `json:"avatar" validate:"max=200"`
	Remark   string `json:"remark" validate:"max=500"`
}

// Update handles PUT /app/user.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	by, _ := web.IdentityFrom(r.Context())
	u := &entity.AppUser{
		UserID:   req.UserID,
		NickName: req.NickName,
		Email:    req.Email,
		Phone:    req.Phone,
		Sex:      req.Sex,
		Avatar:   req.Avatar,
		UpdateBy: by.UserName,
	}
	if req.Remark != "" {
		u.Remark = &req.Remark
	}
	if err := h.svc.Update(r.Context(), u); err != nil {
		h.failBusiness(w, err, "update user failed")
		return
	}
	web.OK(w, nil)
}

// Delete handles DELETE /app/user/{ids} where ids is comma separated.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.PathValue("ids"))
	if err != nil {
		web.BadRequest(w, "invalid user ids")
		return
	}
	n, err := h.svc.Delete(r.Context(), ids)
	if err != nil {
		h.logger.Errorw("delete users failed", "ids", ids, "err", err)
		web.Error(w, "delete user failed")
		return
	}
	web.OK(w, map[string]int64{"deleted": n})
}

// StatusRequest is the PUT /app/user/status payload.
type StatusRequest struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Status string `json:"status" validate:"required,oneof=0 1"`
}

// ChangeStatus handles PUT /app/user/status.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	by, _ := web.IdentityFrom(r.Context())
	if err := h.svc.ChangeStatus(r.Context(), req.UserID, req.Status, by.UserName); err != nil {
		h.failBusiness(w, err, "change status failed")
		return
	}
	web.OK(w, nil)
}

// ResetPasswordRequest is the PUT /app/user/reset-password payload.
type ResetPasswordRequest struct {
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// ResetPassword handles PUT /app/user/reset-password (admin reset).
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	by, _ := web.IdentityFrom(r.Context())
	if err := h.svc.ResetPassword(r.Context(), req.UserID, req.Password, by.UserName); err != nil {
		h.failBusiness(w, err, "reset password failed")
		return
	}
	web.OK(w, nil)
}

// PasswordRequest is the PUT /app/user/password payload (self change).
type PasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=100"`
}

// ChangePassword handles PUT /app/user/password for the current user.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IdentityFrom(r.Context())
	if !ok {
		web.Unauthorized(w, "login required")
		return
	}
	var req PasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), id.UserID, req.OldPassword, req.NewPassword); err != nil {
		h.failBusiness(w, err, "change password failed")
		return
	}
	web.OK(w, nil)
}

// GetProfile handles GET /app/user/profile for the current user.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IdentityFrom(r.Context())
	if !ok {
		web.Unauthorized(w, "login required")
		return
	}
	detail, err := h.svc.GetDetail(r.Context(), id.UserID)
	if err != nil {
		h.failBusiness(w, err, "query profile failed")
		return
	}
	web.OK(w, detail)
}

// ProfileRequest is the PUT /app/user/profile payload.
type ProfileRequest struct {
	RealName         string `json:"realName" validate:"max=30"`
	IDCard           string `json:"idCard" validate:"max=18"`
	Birthday         string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Address          string `json:"address" validate:"max=200"`
	Education        string `json:"education" validate:"max=20"`
	Occupation       string `json:"occupation" validate:"max=50"`
	IncomeLevel      string `json:"incomeLevel" validate:"max=20"`
	MaritalStatus    string `json:"maritalStatus" validate:"omitempty,oneof=0 1 2 3"`
	EmergencyContact string `json:"emergencyContact" validate:"max=30"`
	EmergencyPhone   string `json:"emergencyPhone" validate:"max=20"`
}

// SaveProfile handles PUT /app/user/profile for the current user.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := web.IdentityFrom(r.Context())
	if !ok {
		web.Unauthorized(w, "login required")
		return
	}
	var req ProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := &entity.AppUserProfile{
		UserID:           id.UserID,
		RealName:         req.RealName,
		IDCard:           req.IDCard,
		Address:          req.Address,
		Education:        req.Education,
		Occupation:       req.Occupation,
		IncomeLevel:      req.IncomeLevel,
		MaritalStatus:    req.MaritalStatus,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
	}
	if p.MaritalStatus == "" {
		p.MaritalStatus = "0"
	}
	if req.Birthday != "" {
		if t, err := time.Parse("2006-01-02", req.Birthday); err == nil {
			p.Birthday = &t
		}
	}
	if err := h.svc.SaveProfile(r.Context(), p); err != nil {
		h.failBusiness(w, err, "save profile failed")
		return
	}
	web.OK(w, nil)
}

// Stats handles GET /app/stats/overview.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Errorw("stats overview failed", "err", err)
		web.Error(w, "failed to query statistics")
		return
	}
	web.OK(w, stats)
}

// decode unmarshals and validates the request body, writing the error
// response itself when either step fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		web.BadRequest(w, "invalid payload")
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		web.BadRequest(w, validationMessage(err))
		return false
	}
	return true
}

// failBusiness maps service sentinels to soft-failure envelopes and anything
// else to an internal error.
func (h *Handler) failBusiness(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		web.NotFound(w, "user not found")
	case errors.Is(err, ErrDuplicateName):
		web.Fail(w, "username already exists")
	case errors.Is(err, ErrDuplicatePhone):
		web.Fail(w, "phone number already exists")
	case errors.Is(err, ErrDuplicateEmail):
		web.Fail(w, "email already exists")
	case errors.Is(err, ErrBadOldPassword):
		web.Fail(w, "old password incorrect")
	default:
		h.logger.Errorw(logMsg, "err", err)
		web.Error(w, logMsg)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return "invalid field: " + f.Field()
	}
	return "invalid payload"
}

func parseIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
