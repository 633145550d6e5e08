package middleware

import (
	"github.com/derpycloud/derpycloud/pkg/conf"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// Cors builds the CORS middleware from [CORS]. It returns nil when CORS is not
// configured, i.e. AllowOrigins is left as "UNSET".
func Cors(config *conf.Cors, l logging.Logger) gin.HandlerFunc {
	if len(config.AllowOrigins) == 0 || config.AllowOrigins[0] == "UNSET" {
		return nil
	}

	c := cors.Config{
		AllowMethods:     config.AllowMethods,
		AllowHeaders:     config.AllowHeaders,
		AllowCredentials: config.AllowCredentials,
		ExposeHeaders:    config.ExposeHeaders,
	}
	if lo.Contains(config.AllowOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = config.AllowOrigins
	}

	l.Info("CORS enabled for origins %v.", config.AllowOrigins)
	return cors.New(c)
}
