package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/derpycloud/derpycloud/application/dependency"
	"github.com/derpycloud/derpycloud/pkg/conf"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/metrics"
	"github.com/derpycloud/derpycloud/pkg/userspace"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testConf = `
[WebDAV]
Realm = test-realm
NonceSecret = s3cret

[Users]
alice = wonderland
`

var testLogger = logging.NewWriterLogger(logging.LevelDebug, io.Discard)

func newTestDep(t *testing.T, ini string) (dependency.Dep, metrics.Metrics) {
	provider, err := conf.NewIniConfigProviderFromBytes([]byte(ini))
	require.NoError(t, err)
	m := metrics.New()
	return dependency.NewDependency(
		dependency.WithConfigProvider(provider),
		dependency.WithLogger(testLogger),
		dependency.WithStorageFactory(userspace.NewMemStorageFactory()),
		dependency.WithMetrics(m),
	), m
}

// newTestEngine answers every request with the name of the current user space.
func newTestEngine(dep dependency.Dep, handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(InitializeHandling(dep))
	r.Use(handlers...)
	handler := func(c *gin.Context) {
		user := "-"
		if space, ok := userspace.FromContext(c.Request.Context()); ok {
			user = space.User
		}
		c.String(http.StatusOK, user)
	}
	r.Any("/*path", handler)
	r.Handle("PROPFIND", "/*path", handler)
	return r
}

var nonceRe = regexp.MustCompile(`nonce="([^"]+)"`)

func nonceOf(challenge string) string {
	m := nonceRe.FindStringSubmatch(challenge)
	if m == nil {
		return ""
	}
	return m[1]
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func scrape(m metrics.Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func digestHeader(user, realm, password, method, uri, nonce string) string {
	return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", qop=auth, nc=00000001, cnonce="0a4f113b", response="%s"`,
		user, realm, nonce, uri, digestResponse(user, realm, password, method, uri, nonce))
}
