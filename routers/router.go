package routers

import (
	"github.com/derpycloud/derpycloud/application/dependency"
	"github.com/derpycloud/derpycloud/middleware"
	"github.com/derpycloud/derpycloud/pkg/util"
	"github.com/derpycloud/derpycloud/routers/controllers"
	"github.com/gin-gonic/gin"
)

// webdavMethods are the extension methods gin's Any doesn't register.
var webdavMethods = []string{"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK"}

// InitRouter 初始化路由
func InitRouter(dep dependency.Dep) *gin.Engine {
	l := dep.Logger()
	config := dep.ConfigProvider()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.InitializeHandling(dep))
	r.Use(middleware.Logging())

	if cors := middleware.Cors(config.Cors(), l); cors != nil {
		r.Use(cors)
	}

	r.GET("/ping", controllers.Ping)

	if config.Metrics().Enabled {
		l.Info("Metrics endpoint registered at %q", config.Metrics().Path)
		r.GET(config.Metrics().Path, gin.WrapH(dep.Metrics().Handler()))
	}

	initWebDAV(r.Group(util.RemoveSlash(config.WebDAV().Prefix)), dep)
	return r
}

func initWebDAV(group *gin.RouterGroup, dep dependency.Dep) {
	group.Use(middleware.Metrics())
	group.Use(middleware.RateLimit(dep.ConfigProvider().RateLimit()))
	group.Use(middleware.DigestAuth())
	{
		group.Any("", controllers.ServeWebDAV)
		group.Any("/*path", controllers.ServeWebDAV)
		for _, method := range webdavMethods {
			group.Handle(method, "", controllers.ServeWebDAV)
			group.Handle(method, "/*path", controllers.ServeWebDAV)
		}
	}
}
