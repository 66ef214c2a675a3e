package entity

import "time"

// Config keys consulted elsewhere in the application.
const (
	KeyCaptchaEnabled  = "sys.account.captchaEnabled"
	KeyRegisterEnabled = "sys.account.registerUser"
)

// Config is a system configuration row. Values are plain strings; boolean
// switches store "true"/"false".
type Config struct {
	ConfigID    int64     `db:"config_id" json:"configId"`
	ConfigKey   string    `db:"config_key" json:"configKey"`
	ConfigValue string    `db:"config_value" json:"configValue"`
	Remark      string    `db:"remark" json:"remark"`
	Version     int64     `db:"version" json:"version"`
	CreateTime  time.Time `db:"create_time" json:"createTime"`
	UpdateTime  time.Time `db:"update_time" json:"updateTime"`
}
