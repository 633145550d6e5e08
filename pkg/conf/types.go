package conf

import "time"

// System 系统通用配置
type System struct {
	Listen      string `validate:"required"`
	Debug       bool
	GracePeriod int    `validate:"gte=0"`
	ProxyHeader string `validate:"required_with=Listen"`
	LogLevel    string `validate:"oneof=debug info warning error"`
}

// Storage 存储配置
type Storage struct {
	// Root holds one sub-directory per user. Relative paths resolve under the data folder.
	Root string `validate:"required"`
}

// WebDAV 协议相关配置
type WebDAV struct {
	Prefix             string `validate:"required,startswith=/,ne=/"`
	Realm              string `validate:"required"`
	NonceSecret        string
	NonceMaxAge        time.Duration `validate:"gt=0"`
	DefaultLockTimeout time.Duration `validate:"gt=0"`
	// StrictDepth makes "Depth: 1" mean one level instead of infinity.
	StrictDepth bool
	// SpeedLimit in bytes per second for downloads, 0 for unlimited.
	SpeedLimit   int64 `validate:"gte=0"`
	LockReapCron string
}

// 跨域配置
type Cors struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	ExposeHeaders    []string
}

// RateLimit 按客户端 IP 限流
type RateLimit struct {
	// RequestsPerSecond <= 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int `validate:"gte=0"`
}

type Metrics struct {
	Enabled bool
	Path    string `validate:"required_if=Enabled true"`
}

// SystemConfig 系统公用配置
var SystemConfig = &System{
	Debug:       false,
	Listen:      ":8080",
	ProxyHeader: "X-Forwarded-For",
	LogLevel:    "info",
	GracePeriod: 0,
}

var StorageConfig = &Storage{
	Root: "spaces",
}

var WebDAVConfig = &WebDAV{
	Prefix:             "/dav",
	Realm:              "derpycloud",
	NonceMaxAge:        5 * time.Minute,
	DefaultLockTimeout: 5 * time.Second,
	StrictDepth:        false,
	SpeedLimit:         0,
	LockReapCron:       "@every 1m",
}

// CORSConfig 跨域配置
var CORSConfig = &Cors{
	AllowOrigins:     []string{"UNSET"},
	AllowMethods:     []string{"OPTIONS", "PROPFIND", "PROPPATCH", "GET", "HEAD", "PUT", "DELETE", "COPY", "MOVE", "MKCOL", "LOCK", "UNLOCK", "POST"},
	AllowHeaders:     []string{"Authorization", "Content-Length", "Content-Type", "Depth", "Destination", "If", "Lock-Token", "Overwrite", "Timeout", "Range"},
	ExposeHeaders:    []string{"DAV", "ETag", "Lock-Token", "Content-Range"},
	AllowCredentials: false,
}

var RateLimitConfig = &RateLimit{
	RequestsPerSecond: 0,
	Burst:             0,
}

var MetricsConfig = &Metrics{
	Enabled: false,
	Path:    "/metrics",
}
