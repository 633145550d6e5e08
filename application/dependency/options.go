package dependency

import (
	"github.com/derpycloud/derpycloud/pkg/conf"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/metrics"
	"github.com/derpycloud/derpycloud/pkg/userspace"
)

// Option 构建依赖时的额外设置
type Option interface {
	apply(*dependency)
}

type optionFunc func(*dependency)

func (f optionFunc) apply(o *dependency) {
	f(o)
}

// WithConfigPath Set the path of the config file.
func WithConfigPath(p string) Option {
	return optionFunc(func(o *dependency) {
		o.configPath = p
	})
}

// WithLogger Set the default logging.
func WithLogger(l logging.Logger) Option {
	return optionFunc(func(o *dependency) {
		o.logger = l
	})
}

// WithConfigProvider Set the default config provider.
func WithConfigProvider(c conf.ConfigProvider) Option {
	return optionFunc(func(o *dependency) {
		o.configProvider = c
	})
}

// WithStorageFactory Set the storage factory used to open user spaces.
func WithStorageFactory(f userspace.StorageFactory) Option {
	return optionFunc(func(o *dependency) {
		o.storageFactory = f
	})
}

// WithUserSpaces Set the default user space registry.
func WithUserSpaces(r userspace.Registry) Option {
	return optionFunc(func(o *dependency) {
		o.userSpaces = r
	})
}

// WithMetrics Set the default metrics collector.
func WithMetrics(m metrics.Metrics) Option {
	return optionFunc(func(o *dependency) {
		o.metrics = m
	})
}
