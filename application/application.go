package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/derpycloud/derpycloud/application/constants"
	"github.com/derpycloud/derpycloud/application/dependency"
	"github.com/derpycloud/derpycloud/pkg/conf"
	"github.com/derpycloud/derpycloud/pkg/crontab"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/routers"
	"github.com/gin-gonic/gin"
)

type Server interface {
	// Start starts the WebDAV server, it blocks until the server is closed.
	Start() error
	PrintBanner()
	Close()
}

// NewServer constructs a new server instance with given dependency.
func NewServer(dep dependency.Dep) Server {
	return &server{
		dep:    dep,
		logger: dep.Logger(),
		config: dep.ConfigProvider(),
	}
}

type server struct {
	dep    dependency.Dep
	logger logging.Logger
	config conf.ConfigProvider
	server *http.Server
}

func (s *server) PrintBanner() {
	fmt.Print(`
     _                            _                 _ 
  __| | ___ _ __ _ __  _   _  ___| | ___  _   _  __| |
 / _  |/ _ \ '__| '_ \| | | |/ __| |/ _ \| | | |/ _  |
| (_| |  __/ |  | |_) | |_| | (__| | (_) | |_| | (_| |
 \__,_|\___|_|  | .__/ \__, |\___|_|\___/ \__,_|\__,_|
                |_|    |___/                          

   V` + constants.BackendVersion + `  Commit #` + constants.LastCommit + `
================================================

`)
}

func (s *server) Start() error {
	// Debug 关闭时，切换为生产模式
	if !s.config.System().Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize the singletons before user traffic.
	s.dep.UserSpaces()
	s.dep.DigestAuth()
	s.dep.Metrics()

	// Start cron jobs
	c, err := crontab.NewCron(context.Background(), s.dep)
	if err != nil {
		return err
	}
	s.dep.SetCron(c)
	c.Start()

	api := routers.InitRouter(s.dep)
	if header := s.config.System().ProxyHeader; header != "" {
		api.RemoteIPHeaders = []string{header}
	}
	s.server = &http.Server{Handler: api}

	s.logger.Info("Listening to %q, WebDAV is served under %q", s.config.System().Listen, s.config.WebDAV().Prefix)
	s.server.Addr = s.config.System().Listen
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to listen to %q: %w", s.config.System().Listen, err)
	}
	return nil
}

func (s *server) Close() {
	ctx := context.Background()
	if s.config.System().GracePeriod != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.System().GracePeriod)*time.Second)
		defer cancel()
	}

	// Shutdown http server
	if s.server != nil {
		err := s.server.Shutdown(ctx)
		if err != nil {
			s.logger.Error("Failed to shutdown server: %s", err)
		}
	}

	if err := s.dep.Shutdown(ctx); err != nil {
		s.logger.Warning("Failed to shutdown dependency manager: %s", err)
	}
}
