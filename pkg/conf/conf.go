package conf

import (
	"fmt"
	"os"
	"strings"

	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/util"
	"github.com/go-ini/ini"
	"github.com/go-playground/validator/v10"
)

const (
	envConfOverrideKey = "DC_CONF_"
)

type ConfigProvider interface {
	System() *System
	Storage() *Storage
	WebDAV() *WebDAV
	Cors() *Cors
	RateLimit() *RateLimit
	Metrics() *Metrics
	// Users returns the configured user name to password pairs.
	Users() map[string]string
}

// NewIniConfigProvider initializes a new Ini config file provider. A default config file
// will be created if the given path does not exist.
func NewIniConfigProvider(configPath string, l logging.Logger) (ConfigProvider, error) {
	if configPath == "" || !util.Exists(configPath) {
		l.Info("Config file %q not found, creating a new one.", configPath)
		confContent := util.Replace(map[string]string{
			"{NonceSecret}":   util.RandStringRunes(64),
			"{AdminPassword}": util.RandStringRunes(16),
		}, defaultConf)
		f, err := util.CreatNestedFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create config file: %w", err)
		}

		_, err = f.WriteString(confContent)
		if err != nil {
			return nil, fmt.Errorf("failed to write config file: %w", err)
		}

		f.Close()
	}

	cfg, err := ini.Load(configPath, []byte(getOverrideConfFromEnv(l)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", configPath, err)
	}

	return newProvider(cfg)
}

// NewIniConfigProviderFromBytes parses the given ini content without touching the disk.
func NewIniConfigProviderFromBytes(content []byte) (ConfigProvider, error) {
	cfg, err := ini.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return newProvider(cfg)
}

func newProvider(cfg *ini.File) (*iniConfigProvider, error) {
	provider := &iniConfigProvider{
		system:    *SystemConfig,
		storage:   *StorageConfig,
		webdav:    *WebDAVConfig,
		cors:      *CORSConfig,
		rateLimit: *RateLimitConfig,
		metrics:   *MetricsConfig,
		users:     make(map[string]string),
	}

	sections := map[string]interface{}{
		"System":    &provider.system,
		"Storage":   &provider.storage,
		"WebDAV":    &provider.webdav,
		"CORS":      &provider.cors,
		"RateLimit": &provider.rateLimit,
		"Metrics":   &provider.metrics,
	}
	for sectionName, sectionStruct := range sections {
		err := mapSection(cfg, sectionName, sectionStruct)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config section %q: %w", sectionName, err)
		}
	}

	for _, key := range cfg.Section("Users").Keys() {
		if key.Value() == "" {
			return nil, fmt.Errorf("user %q has an empty password", key.Name())
		}
		provider.users[key.Name()] = key.Value()
	}

	if provider.webdav.NonceSecret == "" {
		provider.webdav.NonceSecret = util.RandStringRunes(64)
	}

	return provider, nil
}

type iniConfigProvider struct {
	system    System
	storage   Storage
	webdav    WebDAV
	cors      Cors
	rateLimit RateLimit
	metrics   Metrics
	users     map[string]string
}

func (i *iniConfigProvider) System() *System {
	return &i.system
}

func (i *iniConfigProvider) Storage() *Storage {
	return &i.storage
}

func (i *iniConfigProvider) WebDAV() *WebDAV {
	return &i.webdav
}

func (i *iniConfigProvider) Cors() *Cors {
	return &i.cors
}

func (i *iniConfigProvider) RateLimit() *RateLimit {
	return &i.rateLimit
}

func (i *iniConfigProvider) Metrics() *Metrics {
	return &i.metrics
}

func (i *iniConfigProvider) Users() map[string]string {
	return i.users
}

const defaultConf = `[System]
Debug = false
Listen = :8080
LogLevel = info

[Storage]
Root = spaces

[WebDAV]
Prefix = /dav
Realm = derpycloud
NonceSecret = {NonceSecret}

[Users]
admin = {AdminPassword}
`

// mapSection 将配置文件的 Section 映射到结构体上
func mapSection(cfg *ini.File, section string, confStruct interface{}) error {
	err := cfg.Section(section).MapTo(confStruct)
	if err != nil {
		return err
	}

	// 验证合法性
	validate := validator.New()
	err = validate.Struct(confStruct)
	if err != nil {
		return err
	}

	return nil
}

func getOverrideConfFromEnv(l logging.Logger) string {
	confMaps := make(map[string]map[string]string)
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, envConfOverrideKey) {
			continue
		}

		// split by key=value and get key
		kv := strings.SplitN(env, "=", 2)
		configKey := strings.TrimPrefix(kv[0], envConfOverrideKey)
		configValue := kv[1]
		sectionKey := strings.SplitN(configKey, ".", 2)
		if len(sectionKey) != 2 {
			l.Warning("Ignore malformed config override %q", kv[0])
			continue
		}
		if confMaps[sectionKey[0]] == nil {
			confMaps[sectionKey[0]] = make(map[string]string)
		}

		confMaps[sectionKey[0]][sectionKey[1]] = configValue
		l.Info("Override config %q = %q", configKey, configValue)
	}

	// generate ini content
	var sb strings.Builder
	for section, kvs := range confMaps {
		sb.WriteString(fmt.Sprintf("[%s]\n", section))
		for k, v := range kvs {
			sb.WriteString(fmt.Sprintf("%s = %s\n", k, v))
		}
	}

	return sb.String()
}
