package entity

import "time"

// Login outcome values stored in app_login_log.status.
const (
	StatusSuccess = "0"
	StatusFailure = "1"
)

// LoginLog is one append-only record of a login attempt.
type LoginLog struct {
	LogID         int64     `db:"log_id" json:"logId"`
	UserName      string    `db:"user_name" json:"userName"`
	IPAddr        string    `db:"ipaddr" json:"ipaddr"`
	LoginLocation string    `db:"login_location" json:"loginLocation"`
	Browser       string    `db:"browser" json:"browser"`
	OS            string    `db:"os" json:"os"`
	Status        string    `db:"status" json:"status"`
	Msg           string    `db:"msg" json:"msg"`
	LoginTime     time.Time `db:"login_time" json:"loginTime"`
}

// ListQuery carries the login log filters. Zero values mean "no filter".
type ListQuery struct {
	UserName  string
	IPAddr    string
	Status    string
	BeginTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}
