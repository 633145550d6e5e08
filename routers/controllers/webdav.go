package controllers

import (
	"net/http"

	"github.com/derpycloud/derpycloud/application/dependency"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/userspace"
	"github.com/gin-gonic/gin"
)

// ServeWebDAV 处理WebDAV相关请求
func ServeWebDAV(c *gin.Context) {
	dep := dependency.FromContext(c.Request.Context())
	handler := dep.WebDAVHandler()

	space, ok := userspace.FromContext(c.Request.Context())
	if !ok {
		if c.Request.Method == http.MethodOptions {
			handler.ServeOptions(c)
			return
		}

		logging.FromContext(c.Request.Context()).Warning("No user space found for %s %q.", c.Request.Method, c.Request.URL.Path)
		c.Status(http.StatusUnauthorized)
		return
	}

	handler.ServeHTTP(c, space.Storage, space.Locks)
}
