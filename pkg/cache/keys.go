package cache

// Well-known key prefixes. The cache monitor exposes this catalogue so
// operators can browse keys per functional area.
const (
	PrefixAccessToken = "access_tokens"
	PrefixCaptcha     = "captcha_codes"
	PrefixSysConfig   = "sys_config"
	PrefixUserList    = "app:user:list"
	PrefixUserDetail  = "app:user:detail"
	PrefixLoginLog    = "app:loginlog:list"
	PrefixStats       = "app:stats:overview"
	PrefixMetrics     = "app:metrics"
	PrefixLoginFail   = "login_fail"
)

// CacheName describes one entry of the monitor catalogue.
type CacheName struct {
	Name   string `json:"cacheName"`
	Remark string `json:"remark"`
}

// Catalogue lists the prefixes the cache monitor knows about.
func Catalogue() []CacheName {
	return []CacheName{
		{Name: PrefixAccessToken, Remark: "issued login sessions"},
		{Name: PrefixCaptcha, Remark: "pending captcha answers"},
		{Name: PrefixSysConfig, Remark: "system configuration"},
		{Name: PrefixUserList, Remark: "user list query results"},
		{Name: PrefixUserDetail, Remark: "user detail snapshots"},
		{Name: PrefixLoginLog, Remark: "login log query results"},
		{Name: PrefixStats, Remark: "statistics overview"},
		{Name: PrefixMetrics, Remark: "operation counters"},
		{Name: PrefixLoginFail, Remark: "failed login counters"},
	}
}
