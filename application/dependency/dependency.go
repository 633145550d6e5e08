package dependency

import (
	"context"
	"errors"
	"sync"

	"github.com/derpycloud/derpycloud/pkg/auth"
	"github.com/derpycloud/derpycloud/pkg/conf"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/metrics"
	"github.com/derpycloud/derpycloud/pkg/request"
	"github.com/derpycloud/derpycloud/pkg/userspace"
	"github.com/derpycloud/derpycloud/pkg/util"
	"github.com/derpycloud/derpycloud/pkg/webdav"
	"github.com/robfig/cron/v3"
)

var (
	ErrorConfigPathNotSet = errors.New("config path not set")
)

type (
	// DepCtx defines keys for dependency manager
	DepCtx struct{}
)

// Dep manages all dependencies of the server application. The default implementation is not
// concurrent safe, so all inner deps should be initialized before any goroutine starts.
type Dep interface {
	// ConfigProvider Get a singleton conf.ConfigProvider instance.
	ConfigProvider() conf.ConfigProvider
	// Logger Get a singleton logging.Logger instance.
	Logger() logging.Logger
	// UserSpaces Get a singleton userspace.Registry holding per user storage and locks.
	UserSpaces() userspace.Registry
	// WebDAVHandler Get a singleton webdav.Handler configured from [WebDAV].
	WebDAVHandler() *webdav.Handler
	// DigestAuth Get a singleton auth.Digest instance for HTTP Digest authentication.
	DigestAuth() *auth.Digest
	// Metrics Get a singleton metrics.Metrics instance, a no-op one when metrics are disabled.
	Metrics() metrics.Metrics
	// TPSLimiter Get a singleton request.TPSLimiter for per client rate limiting.
	TPSLimiter() request.TPSLimiter
	// SetCron Set the running cron instance, it is stopped on Shutdown.
	SetCron(c *cron.Cron)
	// Shutdown the dependencies gracefully.
	Shutdown(ctx context.Context) error
	// ForkWithLogger create a shallow copy of dependency with a new correlated logger, used as per-request dep.
	ForkWithLogger(ctx context.Context, l logging.Logger) context.Context
}

type dependency struct {
	configProvider conf.ConfigProvider
	logger         logging.Logger
	userSpaces     userspace.Registry
	storageFactory userspace.StorageFactory
	webdavHandler  *webdav.Handler
	digestAuth     *auth.Digest
	metrics        metrics.Metrics
	tpsLimiter     request.TPSLimiter
	cron           *cron.Cron

	configPath string

	mu sync.Mutex
}

// NewDependency creates a new Dep instance for construct dependencies.
func NewDependency(opts ...Option) Dep {
	d := &dependency{}
	for _, o := range opts {
		o.apply(d)
	}

	return d
}

// FromContext retrieves a Dep instance from context.
func FromContext(ctx context.Context) Dep {
	return ctx.Value(DepCtx{}).(Dep)
}

func (d *dependency) ConfigProvider() conf.ConfigProvider {
	if d.configProvider != nil {
		return d.configProvider
	}

	if d.configPath == "" {
		d.panicError(ErrorConfigPathNotSet)
	}

	var err error
	d.configProvider, err = conf.NewIniConfigProvider(d.configPath, logging.NewConsoleLogger(logging.LevelInformational))
	if err != nil {
		d.panicError(err)
	}

	return d.configProvider
}

func (d *dependency) Logger() logging.Logger {
	if d.logger != nil {
		return d.logger
	}

	config := d.ConfigProvider()
	logLevel := logging.LogLevel(config.System().LogLevel)
	if config.System().Debug {
		logLevel = logging.LevelDebug
	}

	d.logger = logging.NewConsoleLogger(logLevel)
	d.logger.Info("Logger initialized with LogLevel=%q.", logLevel)
	return d.logger
}

func (d *dependency) UserSpaces() userspace.Registry {
	if d.userSpaces != nil {
		return d.userSpaces
	}

	factory := d.storageFactory
	if factory == nil {
		root := util.DataPath(d.ConfigProvider().Storage().Root)
		factory = userspace.NewOsStorageFactory(root)
		d.Logger().Info("User spaces are stored under %q.", root)
	}

	d.userSpaces = userspace.NewRegistry(factory, d.Logger())
	return d.userSpaces
}

func (d *dependency) WebDAVHandler() *webdav.Handler {
	if d.webdavHandler != nil {
		return d.webdavHandler
	}

	d.webdavHandler = webdav.NewHandler(d.ConfigProvider().WebDAV())
	return d.webdavHandler
}

func (d *dependency) DigestAuth() *auth.Digest {
	if d.digestAuth != nil {
		return d.digestAuth
	}

	config := d.ConfigProvider()
	users := config.Users()
	if len(users) == 0 {
		d.Logger().Warning("No user is configured in [Users], all WebDAV requests will be rejected.")
	}

	d.digestAuth = auth.NewDigest(
		config.WebDAV().Realm,
		auth.NewNonceManager(config.WebDAV().NonceSecret, config.WebDAV().NonceMaxAge),
		func(user string) (string, bool) {
			password, ok := users[user]
			return password, ok
		},
	)
	return d.digestAuth
}

func (d *dependency) Metrics() metrics.Metrics {
	if d.metrics != nil {
		return d.metrics
	}

	if d.ConfigProvider().Metrics().Enabled {
		d.metrics = metrics.New()
		d.Logger().Info("Metrics collection enabled.")
	} else {
		d.metrics = metrics.NewNoop()
	}

	return d.metrics
}

func (d *dependency) TPSLimiter() request.TPSLimiter {
	if d.tpsLimiter != nil {
		return d.tpsLimiter
	}

	d.tpsLimiter = request.NewTPSLimiter()
	return d.tpsLimiter
}

func (d *dependency) SetCron(c *cron.Cron) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cron = c
}

func (d *dependency) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cron != nil {
		stopped := d.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if d.userSpaces != nil && d.logger != nil {
		d.logger.Info("Dropping %d lock(s) held in %d user space(s).", d.userSpaces.LockCount(), d.userSpaces.Len())
	}

	return nil
}

func (d *dependency) panicError(err error) {
	if d.logger != nil {
		d.logger.Panic("Fatal error in dependency initialization: %s", err)
	}

	panic(err)
}

func (d *dependency) ForkWithLogger(ctx context.Context, l logging.Logger) context.Context {
	dep := &dependencyCorrelated{
		l:          l,
		dependency: d,
	}
	return context.WithValue(ctx, DepCtx{}, dep)
}

type dependencyCorrelated struct {
	l logging.Logger
	*dependency
}

func (d *dependencyCorrelated) Logger() logging.Logger {
	return d.l
}
