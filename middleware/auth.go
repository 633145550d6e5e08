package middleware

import (
	"errors"
	"net/http"

	"github.com/derpycloud/derpycloud/application/dependency"
	"github.com/derpycloud/derpycloud/pkg/auth"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/request"
	"github.com/derpycloud/derpycloud/pkg/userspace"
	"github.com/gin-gonic/gin"
)

// DigestAuth 验证 WebDAV 客户端的 Digest 凭证，并将对应的用户空间注入请求上下文
func DigestAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// OPTIONS is answered without credentials
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		dep := dependency.FromContext(c.Request.Context())
		l := logging.FromContext(c.Request.Context())
		digest := dep.DigestAuth()

		header := c.GetHeader("Authorization")
		if header == "" {
			challenge(c, digest, false)
			return
		}

		a, err := auth.ParseAuthorization(header, c.Request.Method)
		if err != nil {
			l.Debug("Rejected authorization header: %s", err)
			dep.Metrics().AuthFailed("malformed")
			challenge(c, digest, false)
			return
		}

		// A digest is only valid for the resource it was computed for
		if err := a.MatchURI(c.Request.RequestURI); err != nil {
			l.Info("Digest uri %q of user %q does not match %q.", a.URI, a.Username, c.Request.RequestURI)
			dep.Metrics().AuthFailed("uri")
			c.String(http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
			c.Abort()
			return
		}

		password, err := digest.Verify(a)
		if err != nil {
			stale := errors.Is(err, auth.ErrNonceStale)
			if stale {
				dep.Metrics().AuthFailed("stale")
			} else {
				l.Info("Authentication failed for user %q from %s.", a.Username, c.ClientIP())
				dep.Metrics().AuthFailed("credentials")
			}
			challenge(c, digest, stale)
			return
		}

		space, err := dep.UserSpaces().Get(a.Username)
		if err != nil {
			l.Warning("Failed to open user space for %q: %s", a.Username, err)
			c.Status(http.StatusInternalServerError)
			c.Abort()
			return
		}

		c.Header("Authentication-Info", digest.AuthenticationInfo(a, password))
		c.Set(request.AuthUserKey, a.Username)
		c.Request = c.Request.WithContext(userspace.WithSpace(c.Request.Context(), space))
		c.Next()
	}
}

func challenge(c *gin.Context, digest *auth.Digest, stale bool) {
	c.Header("WWW-Authenticate", digest.Challenge(stale))
	c.String(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	c.Abort()
}
