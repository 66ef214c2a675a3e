package entity

import "time"

// Account status values stored in app_user.status.
const (
	StatusNormal   = "0"
	StatusDisabled = "1"
)

// AppUser represents a row in the app_user table.
type AppUser struct {
	UserID     int64      `db:"user_id" json:"userId"`
	UserName   string     `db:"user_name" json:"userName"`
	NickName   string     `db:"nick_name" json:"nickName"`
	Email      string     `db:"email" json:"email"`
	Phone      string     `db:"phone" json:"phone"`
	Sex        string     `db:"sex" json:"sex"` // 0 male / 1 female / 2 unknown
	Avatar     string     `db:"avatar" json:"avatar"`
	Password   string     `db:"password" json:"-"`
	Status     string     `db:"status" json:"status"`
	LoginIP    string     `db:"login_ip" json:"loginIp"`
	LoginDate  *time.Time `db:"login_date" json:"loginDate,omitempty"`
	CreateBy   string     `db:"create_by" json:"createBy"`
	CreateTime time.Time  `db:"create_time" json:"createTime"`
	UpdateBy   string     `db:"update_by" json:"updateBy"`
	UpdateTime time.Time  `db:"update_time" json:"updateTime"`
	Remark     *string    `db:"remark" json:"remark,omitempty"`
}

// Disabled reports whether the account is blocked from logging in.
func (u *AppUser) Disabled() bool { return u.Status == StatusDisabled }

// AppUserProfile is the optional one-to-one demographics record keyed by
// user id.
type AppUserProfile struct {
	ProfileID        int64      `db:"profile_id" json:"profileId"`
	UserID           int64      `db:"user_id" json:"userId"`
	RealName         string     `db:"real_name" json:"realName"`
	IDCard           string     `db:"id_card" json:"idCard"`
	Birthday         *time.Time `db:"birthday" json:"birthday,omitempty"`
	Address          string     `db:"address" json:"address"`
	Education        string     `db:"education" json:"education"`
	Occupation       string     `db:"occupation" json:"occupation"`
	IncomeLevel      string     `db:"income_level" json:"incomeLevel"`
	MaritalStatus    string     `db:"marital_status" json:"maritalStatus"`
	EmergencyContact string     `db:"emergency_contact" json:"emergencyContact"`
	EmergencyPhone   string     `db:"emergency_phone" json:"emergencyPhone"`
	CreateTime       time.Time  `db:"create_time" json:"createTime"`
	UpdateTime       time.Time  `db:"update_time" json:"updateTime"`
}

// UserDetail bundles the account with its profile, when one exists.
type UserDetail struct {
	User    AppUser         `json:"user"`
	Profile *AppUserProfile `json:"profile,omitempty"`
}

// ListQuery carries the user list filters. Zero values mean "no filter".
type ListQuery struct {
	UserName  string
	NickName  string
	Email     string
	Phone     string
	Sex       string
	Status    string
	BeginTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// StatsOverview is the aggregate snapshot served by /app/stats/overview.
type StatsOverview struct {
	TotalUsers    int64 `json:"totalUsers"`
	ActiveUsers   int64 `json:"activeUsers"`
	DisabledUsers int64 `json:"disabledUsers"`
	NewUsersToday int64 `json:"newUsersToday"`
	LoginsToday   int64 `json:"loginsToday"`
}
