package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/derpycloud/derpycloud/pkg/conf"
	"github.com/derpycloud/derpycloud/pkg/filesystem"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type davTester struct {
	t  *testing.T
	h  *Handler
	fs filesystem.Storage
	ls LockSystem
}

func newDavTester(t *testing.T) *davTester {
	return &davTester{
		t:  t,
		h:  &Handler{Prefix: "/dav", DefaultLockTimeout: 5 * time.Second},
		fs: filesystem.NewMemStorage(),
		ls: NewMemLS("opaquelocktoken:", logging.NewConsoleLogger(logging.LevelError)),
	}
}

func (d *davTester) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	d.h.ServeHTTP(c, d.fs, d.ls)
	c.Writer.WriteHeaderNow()
	return rec
}

const lockBody = `<?xml version="1.0" encoding="utf-8" ?>
<D:lockinfo xmlns:D='DAV:'>
	<D:lockscope><D:exclusive/></D:lockscope>
	<D:locktype><D:write/></D:locktype>
	<D:owner><D:href>alice</D:href></D:owner>
</D:lockinfo>`

func TestNewHandler(t *testing.T) {
	asserts := assert.New(t)
	h := NewHandler(&conf.WebDAV{
		Prefix:             "/dav/",
		DefaultLockTimeout: time.Minute,
		StrictDepth:        true,
		SpeedLimit:         1024,
	})
	asserts.Equal("/dav", h.Prefix)
	asserts.Equal(time.Minute, h.DefaultLockTimeout)
	asserts.True(h.StrictDepth)
	asserts.EqualValues(1024, h.SpeedLimit)
}

func TestHandler_StripPrefix(t *testing.T) {
	asserts := assert.New(t)
	h := &Handler{Prefix: "/dav"}

	p, _, err := h.stripPrefix("/dav")
	asserts.NoError(err)
	asserts.Equal("/", p)

	p, _, err = h.stripPrefix("/dav/a/../b/")
	asserts.NoError(err)
	asserts.Equal("/b", p)

	_, status, err := h.stripPrefix("/davx/a")
	asserts.Equal(errPrefixMismatch, err)
	asserts.Equal(http.StatusNotFound, status)

	h.Prefix = ""
	p, _, err = h.stripPrefix("/a/b")
	asserts.NoError(err)
	asserts.Equal("/a/b", p)
}

func TestHandler_NoBackends(t *testing.T) {
	asserts := assert.New(t)
	h := &Handler{}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("GET", "/", nil)
	h.ServeHTTP(c, nil, nil)
	asserts.Equal(http.StatusInternalServerError, rec.Code)
}

func TestHandler_Options(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)

	rec := d.do("OPTIONS", "/dav/", "", nil)
	asserts.Equal(http.StatusOK, rec.Code)
	asserts.Equal("1,2", rec.Header().Get("DAV"))
	asserts.Equal("DAV", rec.Header().Get("MS-Author-Via"))
	asserts.Contains(rec.Header().Get("Allow"), "PROPFIND")
	asserts.Contains(rec.Header().Get("Allow"), "LOCK")

	// Without any storage
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("OPTIONS", "/dav/", nil)
	d.h.ServeOptions(c)
	asserts.Equal(http.StatusOK, w.Code)
	asserts.Equal("1,2", w.Header().Get("DAV"))
}

func TestHandler_UnknownMethod(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)

	rec := d.do("PATCH", "/dav/a", "", nil)
	asserts.Equal(http.StatusBadRequest, rec.Code)
}

func TestHandler_PutGet(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)

	rec := d.do("PUT", "/dav/hello.txt", "hello world", nil)
	asserts.Equal(http.StatusCreated, rec.Code)
	asserts.NotEmpty(rec.Header().Get("ETag"))

	rec = d.do("PUT", "/dav/hello.txt", "bye", nil)
	asserts.Equal(http.StatusOK, rec.Code)

	rec = d.do("GET", "/dav/hello.txt", "", nil)
	asserts.Equal(http.StatusOK, rec.Code)
	asserts.Equal("bye", rec.Body.String())
	asserts.NotEmpty(rec.Header().Get("ETag"))

	rec = d.do("GET", "/dav/hello.txt", "", map[string]string{"Range": "bytes=1-"})
	asserts.Equal(http.StatusPartialContent, rec.Code)
	asserts.Equal("ye", rec.Body.String())

	rec = d.do("HEAD", "/dav/hello.txt", "", nil)
	asserts.Equal(http.StatusOK, rec.Code)
	asserts.Empty(rec.Body.String())

	// Missing file
	rec = d.do("GET", "/dav/nope.txt", "", nil)
	asserts.Equal(http.StatusNotFound, rec.Code)

	// Collections can't be downloaded
	rec = d.do("GET", "/dav/", "", nil)
	asserts.Equal(http.StatusMethodNotAllowed, rec.Code)

	// Missing parent
	rec = d.do("PUT", "/dav/no/such/dir.txt", "x", nil)
	asserts.Equal(http.StatusConflict, rec.Code)

	// Outside of the prefix
	rec = d.do("PUT", "/other/hello.txt", "x", nil)
	asserts.Equal(http.StatusNotFound, rec.Code)
}

func TestHandler_Mkcol(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)

	rec := d.do("MKCOL", "/dav/dir", "", nil)
	asserts.Equal(http.StatusCreated, rec.Code)

	rec = d.do("MKCOL", "/dav/dir", "", nil)
	asserts.Equal(http.StatusMethodNotAllowed, rec.Code)

	rec = d.do("MKCOL", "/dav/a/b", "", nil)
	asserts.Equal(http.StatusConflict, rec.Code)

	rec = d.do("MKCOL", "/dav/body", "<x/>", nil)
	asserts.Equal(http.StatusUnsupportedMediaType, rec.Code)

	// Chunked bodies have no declared length
	req := httptest.NewRequest("MKCOL", "/dav/chunked", io.NopCloser(strings.NewReader("<x/>")))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	d.h.ServeHTTP(c, d.fs, d.ls)
	c.Writer.WriteHeaderNow()
	asserts.Equal(http.StatusUnsupportedMediaType, rec.Code)
	_, err := d.fs.Stat(context.Background(), "/chunked")
	asserts.Error(err)

	// PUT on a collection
	rec = d.do("PUT", "/dav/dir", "x", nil)
	asserts.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_Delete(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)
	newTree(t, d.fs)

	rec := d.do("DELETE", "/dav/a", "", nil)
	asserts.Equal(http.StatusNoContent, rec.Code)
	_, err := d.fs.Stat(context.Background(), "/a/b/c.txt")
	asserts.Error(err)

	rec = d.do("DELETE", "/dav/a", "", nil)
	asserts.Equal(http.StatusNotFound, rec.Code)

	rec = d.do("DELETE", "/dav/", "", nil)
	asserts.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_CopyMove(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)
	newTree(t, d.fs)

	rec := d.do("COPY", "/dav/e.txt", "", map[string]string{"Destination": "http://example.com/dav/f.txt"})
	asserts.Equal(http.StatusCreated, rec.Code)
	asserts.Equal("e", readFile(t, d.fs, "/f.txt"))

	rec = d.do("COPY", "/dav/e.txt", "", map[string]string{
		"Destination": "/dav/f.txt",
		"Overwrite":   "F",
	})
	asserts.Equal(http.StatusPreconditionFailed, rec.Code)

	rec = d.do("COPY", "/dav/a", "", map[string]string{
		"Destination": "/dav/z",
		"Depth":       "0",
	})
	asserts.Equal(http.StatusCreated, rec.Code)
	children, err := d.fs.ReadDir(context.Background(), "/z")
	require.NoError(t, err)
	asserts.Empty(children)

	rec = d.do("MOVE", "/dav/f.txt", "", map[string]string{"Destination": "/dav/a/g.txt"})
	asserts.Equal(http.StatusCreated, rec.Code)
	asserts.Equal("e", readFile(t, d.fs, "/a/g.txt"))

	rec = d.do("MOVE", "/dav/a/g.txt", "", map[string]string{"Destination": "/dav/e.txt"})
	asserts.Equal(http.StatusNoContent, rec.Code)

	// Bad requests
	rec = d.do("COPY", "/dav/e.txt", "", nil)
	asserts.Equal(http.StatusBadRequest, rec.Code)
	rec = d.do("COPY", "/dav/e.txt", "", map[string]string{"Destination": "/dav/e.txt"})
	asserts.Equal(http.StatusForbidden, rec.Code)
	rec = d.do("COPY", "/dav/e.txt", "", map[string]string{"Destination": "/elsewhere/e.txt"})
	asserts.Equal(http.StatusBadGateway, rec.Code)
	rec = d.do("COPY", "/dav/a", "", map[string]string{"Destination": "/dav/y", "Depth": "bogus"})
	asserts.Equal(http.StatusBadRequest, rec.Code)
	rec = d.do("MOVE", "/dav/a", "", map[string]string{"Destination": "/dav/y", "Depth": "0"})
	asserts.Equal(http.StatusBadRequest, rec.Code)
	rec = d.do("MOVE", "/dav/nope", "", map[string]string{"Destination": "/dav/y"})
	asserts.Equal(http.StatusNotFound, rec.Code)
}

func TestHandler_LockPutUnlock(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)

	rec := d.do("LOCK", "/dav/foo.txt", lockBody, map[string]string{"Timeout": "Second-60"})
	asserts.Equal(http.StatusCreated, rec.Code)
	asserts.Equal("<opaquelocktoken:1>", rec.Header().Get("Lock-Token"))
	asserts.Contains(rec.Body.String(), "<D:locktype><D:write/></D:locktype>")
	asserts.Contains(rec.Body.String(), "<D:owner><D:href>alice</D:href></D:owner>")
	asserts.Contains(rec.Body.String(), "<D:timeout>Second-60</D:timeout>")
	asserts.Contains(rec.Body.String(), "<D:lockroot><D:href>/dav/foo.txt</D:href></D:lockroot>")

	// The lock created an empty resource
	fi, err := d.fs.Stat(context.Background(), "/foo.txt")
	require.NoError(t, err)
	asserts.EqualValues(0, fi.Size)

	// Writes without the token are refused
	rec = d.do("PUT", "/dav/foo.txt", "data", nil)
	asserts.Equal(StatusLocked, rec.Code)

	// A second lock conflicts
	rec = d.do("LOCK", "/dav/foo.txt", lockBody, nil)
	asserts.Equal(StatusLocked, rec.Code)

	// Submitting the token unlocks writes
	rec = d.do("PUT", "/dav/foo.txt", "data", map[string]string{"If": "(<opaquelocktoken:1>)"})
	asserts.Equal(http.StatusOK, rec.Code)

	// A wrong token fails the precondition
	rec = d.do("PUT", "/dav/foo.txt", "data", map[string]string{"If": "(<opaquelocktoken:99>)"})
	asserts.Equal(http.StatusPreconditionFailed, rec.Code)

	// Tagged lists address resources by URL
	rec = d.do("PUT", "/dav/foo.txt", "data", map[string]string{"If": "<http://example.com/dav/foo.txt> (<opaquelocktoken:1>)"})
	asserts.Equal(http.StatusOK, rec.Code)

	// Refresh
	rec = d.do("LOCK", "/dav/foo.txt", "", map[string]string{
		"If":      "(<opaquelocktoken:1>)",
		"Timeout": "Second-120",
	})
	asserts.Equal(http.StatusOK, rec.Code)
	asserts.Contains(rec.Body.String(), "<D:timeout>Second-120</D:timeout>")

	rec = d.do("LOCK", "/dav/foo.txt", "", map[string]string{"If": "(<opaquelocktoken:99>)"})
	asserts.Equal(http.StatusPreconditionFailed, rec.Code)

	rec = d.do("LOCK", "/dav/foo.txt", "", nil)
	asserts.Equal(http.StatusBadRequest, rec.Code)

	rec = d.do("UNLOCK", "/dav/foo.txt", "", map[string]string{"Lock-Token": "<opaquelocktoken:1>"})
	asserts.Equal(http.StatusOK, rec.Code)

	rec = d.do("UNLOCK", "/dav/foo.txt", "", map[string]string{"Lock-Token": "<opaquelocktoken:1>"})
	asserts.Equal(http.StatusConflict, rec.Code)

	rec = d.do("UNLOCK", "/dav/foo.txt", "", map[string]string{"Lock-Token": "opaquelocktoken:1"})
	asserts.Equal(http.StatusBadRequest, rec.Code)

	rec = d.do("PUT", "/dav/foo.txt", "data", nil)
	asserts.Equal(http.StatusOK, rec.Code)
	asserts.Equal(0, d.ls.Len())
}

func TestHandler_LockCollection(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)
	newTree(t, d.fs)

	rec := d.do("LOCK", "/dav/a", lockBody, nil)
	asserts.Equal(http.StatusOK, rec.Code)
	asserts.Contains(rec.Body.String(), "<D:depth>infinity</D:depth>")
	asserts.Contains(rec.Body.String(), "<D:timeout>Second-5</D:timeout>")

	// Members of an infinite lock are protected
	rec = d.do("PUT", "/dav/a/b/new.txt", "x", nil)
	asserts.Equal(StatusLocked, rec.Code)
	rec = d.do("DELETE", "/dav/a/d.txt", "", nil)
	asserts.Equal(StatusLocked, rec.Code)
	rec = d.do("PUT", "/dav/e.txt", "x", nil)
	asserts.Equal(http.StatusOK, rec.Code)

	// Depth 1 is not allowed on LOCK
	d.h.StrictDepth = true
	rec = d.do("LOCK", "/dav/e.txt", lockBody, map[string]string{"Depth": "1"})
	asserts.Equal(http.StatusBadRequest, rec.Code)

	// Shared locks are not supported
	rec = d.do("LOCK", "/dav/e.txt", strings.Replace(lockBody, "exclusive", "shared", 1), nil)
	asserts.Equal(http.StatusNotImplemented, rec.Code)

	rec = d.do("LOCK", "/dav/e.txt", lockBody, map[string]string{"Timeout": "Minute-5"})
	asserts.Equal(http.StatusBadRequest, rec.Code)
}

func TestHandler_LockedMember(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)
	newTree(t, d.fs)

	rec := d.do("LOCK", "/dav/a/d.txt", lockBody, nil)
	asserts.Equal(http.StatusOK, rec.Code)

	// Operations on the whole parent collection are refused
	rec = d.do("DELETE", "/dav/a", "", nil)
	asserts.Equal(StatusLocked, rec.Code)
	asserts.Equal("d", readFile(t, d.fs, "/a/d.txt"))
	rec = d.do("MOVE", "/dav/a", "", map[string]string{"Destination": "/dav/q"})
	asserts.Equal(StatusLocked, rec.Code)
	rec = d.do("COPY", "/dav/e.txt", "", map[string]string{"Destination": "/dav/a"})
	asserts.Equal(StatusLocked, rec.Code)
	asserts.Equal("d", readFile(t, d.fs, "/a/d.txt"))

	// Reading the collection and touching its siblings is fine
	rec = d.do("COPY", "/dav/a", "", map[string]string{"Destination": "/dav/q"})
	asserts.Equal(http.StatusCreated, rec.Code)
	rec = d.do("DELETE", "/dav/a/b", "", nil)
	asserts.Equal(http.StatusNoContent, rec.Code)

	// The lock token opens the collection up again
	rec = d.do("UNLOCK", "/dav/a/d.txt", "", map[string]string{"Lock-Token": "<opaquelocktoken:1>"})
	asserts.Equal(http.StatusOK, rec.Code)
	rec = d.do("DELETE", "/dav/a", "", nil)
	asserts.Equal(http.StatusNoContent, rec.Code)
}

func TestHandler_Propfind(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)
	newTree(t, d.fs)

	// Depth 0 with an empty body
	{
		rec := d.do("PROPFIND", "/dav/a", "", map[string]string{"Depth": "0"})
		body := rec.Body.String()
		asserts.Equal(StatusMulti, rec.Code)
		asserts.Equal(1, strings.Count(body, "<D:response>"))
		asserts.Contains(body, "<D:href>/dav/a/</D:href>")
		asserts.Contains(body, `<D:resourcetype><D:collection xmlns:D="DAV:"/></D:resourcetype>`)
		asserts.Contains(body, "<D:displayname>a</D:displayname>")
		asserts.Contains(body, `ns0:dt="dateTime.rfc1123"`)
		asserts.Contains(body, "<D:getcontenttype>httpd/unix-directory</D:getcontenttype>")
		asserts.NotContains(body, "D:getetag")
		asserts.NotContains(body, "HTTP/1.1 404")
	}

	// Depth 1 collapses into infinity unless strict
	{
		rec := d.do("PROPFIND", "/dav/a", "", map[string]string{"Depth": "1"})
		asserts.Equal(4, strings.Count(rec.Body.String(), "<D:response>"))

		d.h.StrictDepth = true
		rec = d.do("PROPFIND", "/dav/a", "", map[string]string{"Depth": "1"})
		asserts.Equal(3, strings.Count(rec.Body.String(), "<D:response>"))
		d.h.StrictDepth = false
	}

	// Named properties
	{
		rec := d.do("PROPFIND", "/dav/e.txt", `<?xml version="1.0" encoding="utf-8" ?>
<D:propfind xmlns:D="DAV:"><D:prop><D:getcontentlength/><X:foo xmlns:X="urn:x"/></D:prop></D:propfind>`, map[string]string{"Depth": "0"})
		body := rec.Body.String()
		asserts.Equal(StatusMulti, rec.Code)
		asserts.Contains(body, "<D:href>/dav/e.txt</D:href>")
		asserts.Contains(body, "<D:getcontentlength>1</D:getcontentlength>")
		asserts.Contains(body, `<foo xmlns="urn:x"></foo>`)
		asserts.Contains(body, "HTTP/1.1 404 Not Found")
	}

	// Property names
	{
		rec := d.do("PROPFIND", "/dav/e.txt", `<D:propfind xmlns:D="DAV:"><D:propname/></D:propfind>`, map[string]string{"Depth": "0"})
		body := rec.Body.String()
		asserts.Equal(StatusMulti, rec.Code)
		asserts.Contains(body, "<D:getetag></D:getetag>")
	}

	rec := d.do("PROPFIND", "/dav/nope", "", nil)
	asserts.Equal(http.StatusNotFound, rec.Code)
	rec = d.do("PROPFIND", "/dav/a", "", map[string]string{"Depth": "2"})
	asserts.Equal(http.StatusBadRequest, rec.Code)
	rec = d.do("PROPFIND", "/dav/a", "<bogus", nil)
	asserts.Equal(http.StatusBadRequest, rec.Code)
}

func TestHandler_Proppatch(t *testing.T) {
	asserts := assert.New(t)
	d := newDavTester(t)
	newTree(t, d.fs)

	rec := d.do("PROPPATCH", "/dav/e.txt", `<D:propertyupdate xmlns:D="DAV:" xmlns:Z="urn:z">
	<D:set><D:prop><Z:Win32LastModifiedTime>Fri, 01 Mar 2024 08:30:00 GMT</Z:Win32LastModifiedTime></D:prop></D:set>
</D:propertyupdate>`, nil)
	asserts.Equal(StatusMulti, rec.Code)
	asserts.Contains(rec.Body.String(), `<Win32LastModifiedTime xmlns="urn:z"></Win32LastModifiedTime>`)
	asserts.Contains(rec.Body.String(), "HTTP/1.1 200 OK")

	rec = d.do("PROPPATCH", "/dav/e.txt", `<D:propertyupdate xmlns:D="DAV:">
	<D:set><D:prop><D:getetag>x</D:getetag></D:prop></D:set>
</D:propertyupdate>`, nil)
	asserts.Equal(StatusMulti, rec.Code)
	asserts.Contains(rec.Body.String(), "HTTP/1.1 403 Forbidden")
	asserts.Contains(rec.Body.String(), "cannot-modify-protected-property")

	rec = d.do("PROPPATCH", "/dav/nope", `<D:propertyupdate xmlns:D="DAV:"/>`, nil)
	asserts.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func TestParseDepth(t *testing.T) {
	asserts := assert.New(t)
	h := &Handler{}
	asserts.Equal(0, h.parseDepth("0"))
	asserts.Equal(infiniteDepth, h.parseDepth("1"))
	asserts.Equal(infiniteDepth, h.parseDepth("infinity"))
	asserts.Equal(invalidDepth, h.parseDepth("Infinity"))
	asserts.Equal(invalidDepth, h.parseDepth(""))

	h.StrictDepth = true
	asserts.Equal(1, h.parseDepth("1"))
}

func TestParseTimeout(t *testing.T) {
	asserts := assert.New(t)
	def := 5 * time.Second

	testCases := []struct {
		s       string
		want    time.Duration
		wantErr bool
	}{
		{"", def, false},
		{"Infinite", infiniteTimeout, false},
		{"Second-0", 0, false},
		{"Second-60", 60 * time.Second, false},
		{" Second-60 , Infinite", 60 * time.Second, false},
		{"Infinite, Second-4100000000", infiniteTimeout, false},
		{"Second-4100000000", maxTimeout * time.Second, false},
		{"Second-99999999999999999999", maxTimeout * time.Second, false},
		{"Second-", 0, true},
		{"Second--1", 0, true},
		{"Second-+1", 0, true},
		{"Second-0x10", 0, true},
		{"Minute-5", 0, true},
		{"infinite", 0, true},
	}
	for _, tc := range testCases {
		got, err := parseTimeout(tc.s, def)
		if tc.wantErr {
			asserts.Equal(errInvalidTimeout, err, tc.s)
			continue
		}
		asserts.NoError(err, tc.s)
		asserts.Equal(tc.want, got, tc.s)
	}
}

func TestStatusText(t *testing.T) {
	asserts := assert.New(t)
	asserts.Equal("Multi-Status", StatusText(StatusMulti))
	asserts.Equal("Locked", StatusText(StatusLocked))
	asserts.Equal("Not Found", StatusText(http.StatusNotFound))
}
