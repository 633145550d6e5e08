package controllers

import (
	"net/http"

	"github.com/derpycloud/derpycloud/application/constants"
	"github.com/gin-gonic/gin"
)

// Ping 状态检查页面
func Ping(c *gin.Context) {
	c.String(http.StatusOK, constants.BackendVersion)
}
