// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webdav provides a WebDAV server implementation.
package webdav

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/derpycloud/derpycloud/pkg/conf"
	"github.com/derpycloud/derpycloud/pkg/filesystem"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/util"
	"github.com/gin-gonic/gin"
)

// allowedMethods is advertised by OPTIONS.
const allowedMethods = "OPTIONS, PROPFIND, PROPPATCH, GET, HEAD, PUT, DELETE, COPY, MOVE, MKCOL, LOCK, UNLOCK, POST"

// Handler serves WebDAV requests against one user space at a time.
type Handler struct {
	// Prefix is the URL path prefix to strip from WebDAV resource paths.
	Prefix string
	// DefaultLockTimeout applies to LOCK requests without a Timeout header.
	DefaultLockTimeout time.Duration
	// StrictDepth makes "Depth: 1" mean one level instead of infinity.
	StrictDepth bool
	// SpeedLimit throttles downloads in bytes per second, 0 for unlimited.
	SpeedLimit int64
}

// NewHandler creates a Handler from the WebDAV config section.
func NewHandler(c *conf.WebDAV) *Handler {
	return &Handler{
		Prefix:             util.RemoveSlash(c.Prefix),
		DefaultLockTimeout: c.DefaultLockTimeout,
		StrictDepth:        c.StrictDepth,
		SpeedLimit:         c.SpeedLimit,
	}
}

func (h *Handler) stripPrefix(p string) (string, int, error) {
	if h.Prefix == "" || h.Prefix == "/" {
		return util.SlashClean(p), http.StatusOK, nil
	}
	if r := strings.TrimPrefix(p, h.Prefix); len(r) < len(p) && (r == "" || r[0] == '/') {
		return util.SlashClean(r), http.StatusOK, nil
	}
	return p, http.StatusNotFound, errPrefixMismatch
}

// ServeHTTP dispatches the request to the method handler, operating on fs
// and guarding writes with ls.
func (h *Handler) ServeHTTP(c *gin.Context, fs filesystem.Storage, ls LockSystem) {
	status, err := http.StatusBadRequest, errUnsupportedMethod
	if fs == nil {
		status, err = http.StatusInternalServerError, errNoFileSystem
	} else if ls == nil {
		status, err = http.StatusInternalServerError, errNoLockSystem
	} else {
		switch c.Request.Method {
		case "OPTIONS":
			status, err = h.handleOptions(c)
		case "GET", "HEAD", "POST":
			status, err = h.handleGetHeadPost(c, fs)
		case "DELETE":
			status, err = h.handleDelete(c, fs, ls)
		case "PUT":
			status, err = h.handlePut(c, fs, ls)
		case "MKCOL":
			status, err = h.handleMkcol(c, fs, ls)
		case "COPY", "MOVE":
			status, err = h.handleCopyMove(c, fs, ls)
		case "LOCK":
			status, err = h.handleLock(c, fs, ls)
		case "UNLOCK":
			status, err = h.handleUnlock(c, ls)
		case "PROPFIND":
			status, err = h.handlePropfind(c, fs)
		case "PROPPATCH":
			status, err = h.handleProppatch(c, fs, ls)
		}
	}

	if status != 0 {
		c.Writer.WriteHeader(status)
		if status != http.StatusNoContent {
			c.Writer.Write([]byte(StatusText(status)))
		}
	}

	if err != nil {
		logging.FromContext(c.Request.Context()).Debug("WebDAV request %s %q failed with error: %s", c.Request.Method, c.Request.URL.Path, err)
	}
}

// ServeOptions answers an OPTIONS request without touching any storage.
func (h *Handler) ServeOptions(c *gin.Context) {
	h.handleOptions(c)
	c.Writer.WriteHeaderNow()
}

// lockScope is the extent of the transient lock confirmLock takes on a source
// resource when the request carries no If header.
type lockScope int

const (
	// scopeNone takes no transient lock, for sources that are only read.
	scopeNone lockScope = iota
	// scopeResource locks the resource itself.
	scopeResource
	// scopeSubtree locks the resource and all of its members.
	scopeSubtree
)

// confirmLock checks the If header against ls for src and dst. Without an If
// header it takes transient locks instead: one on src as wide as srcScope, and
// one spanning the subtree of dst.
func (h *Handler) confirmLock(c *gin.Context, ls LockSystem, src, dst string, srcScope lockScope) (release func(), status int, err error) {
	hdr := c.Request.Header.Get("If")
	if hdr == "" {
		// An empty If header means that the client hasn't previously created locks.
		// Even if this client doesn't care about locks, we still need to check that
		// the resources aren't locked by another client, so we create temporary
		// locks that would conflict with another client's locks. These temporary
		// locks are unlocked at the end of the HTTP request.
		now, srcToken, dstToken := time.Now(), "", ""
		if src != "" && srcScope != scopeNone {
			srcToken, err = ls.Create(now, LockDetails{
				Root:      src,
				Duration:  infiniteTimeout,
				ZeroDepth: srcScope == scopeResource,
			})
			if err != nil {
				return nil, lockStatus(err), err
			}
		}
		if dst != "" {
			dstToken, err = ls.Create(now, LockDetails{
				Root:     dst,
				Duration: infiniteTimeout,
			})
			if err != nil {
				if srcToken != "" {
					ls.Unlock(now, srcToken)
				}
				return nil, lockStatus(err), err
			}
		}

		return func() {
			if dstToken != "" {
				ls.Unlock(now, dstToken)
			}
			if srcToken != "" {
				ls.Unlock(now, srcToken)
			}
		}, 0, nil
	}

	ih, ok := parseIfHeader(hdr)
	if !ok {
		return nil, http.StatusBadRequest, errInvalidIfHeader
	}
	// ih is a disjunction (OR) of ifLists, so any ifList will do.
	for _, l := range ih.lists {
		lsrc := l.resourceTag
		if lsrc == "" {
			lsrc = src
		} else {
			u, err := url.Parse(lsrc)
			if err != nil {
				continue
			}
			if u.Host != "" && u.Host != c.Request.Host {
				continue
			}
			lsrc, status, err = h.stripPrefix(u.Path)
			if err != nil {
				return nil, status, err
			}
		}
		release, err = ls.Confirm(time.Now(), lsrc, dst, l.conditions...)
		if errors.Is(err, ErrConfirmationFailed) {
			continue
		}
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return release, 0, nil
	}
	// Section 10.4.1 says that "If this header is evaluated and all state lists
	// fail, then the request must fail with a 412 (Precondition Failed) status."
	// We follow the spec even though the cond_put_corrupt_token test case from
	// the litmus test warns on seeing a 412 instead of a 423 (Locked).
	return nil, http.StatusPreconditionFailed, ErrLocked
}

// lockStatus maps a LockSystem error to its HTTP status.
func lockStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrLocked):
		return StatusLocked
	case errors.Is(err, ErrNoSuchLock):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) handleOptions(c *gin.Context) (status int, err error) {
	c.Writer.Header().Set("Allow", allowedMethods)
	// http://www.webdav.org/specs/rfc4918.html#dav.compliance.classes
	c.Writer.Header().Set("DAV", "1,2")
	// http://msdn.microsoft.com/en-au/library/cc250217.aspx
	c.Writer.Header().Set("MS-Author-Via", "DAV")
	c.Writer.Header().Set("Accept-Ranges", "bytes")
	return 0, nil
}

func (h *Handler) handleGetHeadPost(c *gin.Context, fs filesystem.Storage) (status int, err error) {
	reqPath, status, err := h.stripPrefix(c.Request.URL.Path)
	if err != nil {
		return status, err
	}
	ctx := c.Request.Context()

	fi, err := fs.Stat(ctx, reqPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return http.StatusNotFound, err
		}
		return http.StatusInternalServerError, err
	}
	if fi.IsDir {
		return http.StatusMethodNotAllowed, nil
	}

	f, err := fs.Open(ctx, reqPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return http.StatusNotFound, err
		}
		return http.StatusInternalServerError, err
	}
	defer f.Close()

	c.Writer.Header().Set("ETag", findETag(fi))
	c.Writer.Header().Set("Content-Type", contentTypeOf(fi.Name))
	http.ServeContent(c.Writer, c.Request, fi.Name, fi.ModTime, filesystem.WithSpeedLimit(f, h.SpeedLimit))
	return 0, nil
}

func (h *Handler) handleDelete(c *gin.Context, fs filesystem.Storage, ls LockSystem) (status int, err error) {
	reqPath, status, err := h.stripPrefix(c.Request.URL.Path)
	if err != nil {
		return status, err
	}
	release, status, err := h.confirmLock(c, ls, reqPath, "", scopeSubtree)
	if err != nil {
		return status, err
	}
	defer release()

	ctx := c.Request.Context()

	// TODO: return MultiStatus where appropriate.

	// "godoc os RemoveAll" says that "If the path does not exist, RemoveAll
	// returns nil (no error)." WebDAV semantics are that it should return a
	// "404 Not Found". We therefore have to Stat before we RemoveAll.
	if _, err := fs.Stat(ctx, reqPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return http.StatusNotFound, err
		}
		return http.StatusMethodNotAllowed, err
	}
	if reqPath == "/" {
		return http.StatusMethodNotAllowed, errDeleteRoot
	}
	if err := fs.RemoveAll(ctx, reqPath); err != nil {
		return http.StatusMethodNotAllowed, err
	}
	return http.StatusNoContent, nil
}

func (h *Handler) handlePut(c *gin.Context, fs filesystem.Storage, ls LockSystem) (status int, err error) {
	reqPath, status, err := h.stripPrefix(c.Request.URL.Path)
	if err != nil {
		return status, err
	}
	release, status, err := h.confirmLock(c, ls, reqPath, "", scopeResource)
	if err != nil {
		return status, err
	}
	defer release()
	ctx := c.Request.Context()

	parent, err := fs.Stat(ctx, util.Parent(reqPath))
	if err != nil || !parent.IsDir {
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return http.StatusConflict, errMissingParent
		}
		return http.StatusInternalServerError, err
	}

	existed := false
	if fi, err := fs.Stat(ctx, reqPath); err == nil {
		if fi.IsDir {
			return http.StatusMethodNotAllowed, errIsDirectory
		}
		existed = true
	} else if !errors.Is(err, os.ErrNotExist) {
		return http.StatusInternalServerError, err
	}

	f, err := fs.OpenFile(ctx, reqPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, filesystem.Perm)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return http.StatusConflict, err
		}
		return http.StatusInternalServerError, err
	}
	_, copyErr := io.Copy(f, c.Request.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return http.StatusInternalServerError, copyErr
	}
	if closeErr != nil {
		return http.StatusInternalServerError, closeErr
	}

	fi, err := fs.Stat(ctx, reqPath)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	c.Writer.Header().Set("ETag", findETag(fi))
	if existed {
		return http.StatusOK, nil
	}
	return http.StatusCreated, nil
}

func (h *Handler) handleMkcol(c *gin.Context, fs filesystem.Storage, ls LockSystem) (status int, err error) {
	reqPath, status, err := h.stripPrefix(c.Request.URL.Path)
	if err != nil {
		return status, err
	}
	release, status, err := h.confirmLock(c, ls, reqPath, "", scopeResource)
	if err != nil {
		return status, err
	}
	defer release()

	if c.Request.ContentLength != 0 {
		return http.StatusUnsupportedMediaType, nil
	}
	if err := fs.Mkdir(c.Request.Context(), reqPath); err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return http.StatusConflict, err
		case errors.Is(err, os.ErrExist):
			return http.StatusMethodNotAllowed, err
		}
		return http.StatusInternalServerError, err
	}
	return http.StatusCreated, nil
}

func (h *Handler) handleCopyMove(c *gin.Context, fs filesystem.Storage, ls LockSystem) (status int, err error) {
	hdr := c.Request.Header.Get("Destination")
	if hdr == "" {
		return http.StatusBadRequest, errInvalidDestination
	}
	u, err := url.Parse(hdr)
	if err != nil {
		return http.StatusBadRequest, errInvalidDestination
	}
	if !sameHost(u, c.Request) {
		return http.StatusBadGateway, errInvalidDestination
	}

	src, status, err := h.stripPrefix(c.Request.URL.Path)
	if err != nil {
		return status, err
	}

	dst, _, err := h.stripPrefix(u.Path)
	if err != nil {
		return http.StatusBadGateway, err
	}

	if src == dst {
		return http.StatusForbidden, errDestinationEqualsSource
	}

	srcScope := scopeSubtree
	if c.Request.Method == "COPY" {
		srcScope = scopeNone
	}
	release, status, err := h.confirmLock(c, ls, src, dst, srcScope)
	if err != nil {
		return status, err
	}
	defer release()
	ctx := c.Request.Context()

	overwrite := c.Request.Header.Get("Overwrite") != "F"
	if c.Request.Method == "COPY" {
		// Section 9.8.3 says that "The COPY method on a collection without a Depth
		// header must act as if a Depth header with value "infinity" was included".
		depth := infiniteDepth
		if hdr := c.Request.Header.Get("Depth"); hdr != "" {
			depth = h.parseDepth(hdr)
			if depth != 0 && depth != infiniteDepth {
				// Section 9.8.3 says that "A client may submit a Depth header on a
				// COPY on a collection with a value of "0" or "infinity"."
				return http.StatusBadRequest, errInvalidDepth
			}
		}
		return copyFiles(ctx, fs, src, dst, overwrite, depth, 0)
	}

	// Section 9.9.2 says that "The MOVE method on a collection must act as if
	// a "Depth: infinity" header was used on it. A client must not submit a
	// Depth header on a MOVE on a collection with any value but "infinity"."
	if hdr := c.Request.Header.Get("Depth"); hdr != "" {
		if h.parseDepth(hdr) != infiniteDepth {
			return http.StatusBadRequest, errInvalidDepth
		}
	}
	return moveFiles(ctx, fs, src, dst, overwrite)
}

// sameHost reports whether dst addresses this server. Destinations always
// resolve inside the requester's own space, so every host is accepted.
func sameHost(dst *url.URL, r *http.Request) bool {
	return true
}

func (h *Handler) handleLock(c *gin.Context, fs filesystem.Storage, ls LockSystem) (retStatus int, retErr error) {
	duration, err := parseTimeout(c.Request.Header.Get("Timeout"), h.DefaultLockTimeout)
	if err != nil {
		return http.StatusBadRequest, err
	}
	li, status, err := readLockInfo(c.Request.Body)
	if err != nil {
		return status, err
	}

	reqPath, status, err := h.stripPrefix(c.Request.URL.Path)
	if err != nil {
		return status, err
	}

	ctx := c.Request.Context()
	token, ld, now, created := "", LockDetails{}, time.Now(), false
	if li.isRefresh() {
		// An empty lockInfo means to refresh the lock.
		ih, ok := parseIfHeader(c.Request.Header.Get("If"))
		if !ok {
			return http.StatusBadRequest, errInvalidIfHeader
		}
		if len(ih.lists) == 1 && len(ih.lists[0].conditions) == 1 {
			token = ih.lists[0].conditions[0].Token
		}
		if token == "" {
			return http.StatusBadRequest, errInvalidLockToken
		}
		ld, err = ls.Refresh(now, token, duration)
		if err != nil {
			if errors.Is(err, ErrNoSuchLock) {
				return http.StatusPreconditionFailed, err
			}
			return http.StatusInternalServerError, err
		}
	} else {
		// Section 9.10.3 says that "If no Depth header is submitted on a LOCK request,
		// then the request MUST act as if a "Depth:infinity" had been submitted."
		depth := infiniteDepth
		if hdr := c.Request.Header.Get("Depth"); hdr != "" {
			depth = h.parseDepth(hdr)
			if depth != 0 && depth != infiniteDepth {
				// Section 9.10.3 says that "Values other than 0 or infinity must not be
				// used with the Depth header on a LOCK method".
				return http.StatusBadRequest, errInvalidDepth
			}
		}
		ld = LockDetails{
			Root:      reqPath,
			Duration:  duration,
			Owner:     li.Owner.String(),
			ZeroDepth: depth == 0,
		}
		token, err = ls.Create(now, ld)
		if err != nil {
			if errors.Is(err, ErrLocked) {
				return StatusLocked, err
			}
			return http.StatusInternalServerError, err
		}
		defer func() {
			if retErr != nil {
				ls.Unlock(now, token)
			}
		}()

		// Create the resource if it didn't previously exist.
		if _, err := fs.Stat(ctx, reqPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return http.StatusInternalServerError, err
			}
			f, err := fs.OpenFile(ctx, reqPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, filesystem.Perm)
			if err != nil {
				return http.StatusInternalServerError, err
			}
			if err := f.Close(); err != nil {
				return http.StatusInternalServerError, err
			}
			created = true
		}

		// http://www.webdav.org/specs/rfc4918.html#HEADER_Lock-Token says that the
		// Lock-Token value is a Coded-URL. We add angle brackets.
		c.Writer.Header().Set("Lock-Token", "<"+token+">")
	}

	c.Writer.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if created {
		// This is "w.WriteHeader(http.StatusCreated)" and not "return
		// http.StatusCreated, nil" because we write our own (XML) response to w
		// and Handler.ServeHTTP would otherwise write "Created".
		c.Writer.WriteHeader(http.StatusCreated)
	}
	writeLockInfo(c.Writer, token, util.EncodeURI(util.Join(h.Prefix, ld.Root)), ld)
	return 0, nil
}

func (h *Handler) handleUnlock(c *gin.Context, ls LockSystem) (status int, err error) {
	// http://www.webdav.org/specs/rfc4918.html#HEADER_Lock-Token says that the
	// Lock-Token value is a Coded-URL. We strip its angle brackets.
	t := c.Request.Header.Get("Lock-Token")
	if len(t) < 2 || t[0] != '<' || t[len(t)-1] != '>' {
		return http.StatusBadRequest, errInvalidLockToken
	}
	t = t[1 : len(t)-1]

	err = ls.Unlock(time.Now(), t)
	return lockStatus(err), err
}

func (h *Handler) handlePropfind(c *gin.Context, fs filesystem.Storage) (status int, err error) {
	reqPath, status, err := h.stripPrefix(c.Request.URL.Path)
	if err != nil {
		return status, err
	}
	ctx := c.Request.Context()
	fi, err := fs.Stat(ctx, reqPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return http.StatusNotFound, err
		}
		return http.StatusMethodNotAllowed, err
	}
	depth := infiniteDepth
	if hdr := c.Request.Header.Get("Depth"); hdr != "" {
		depth = h.parseDepth(hdr)
		if depth == invalidDepth {
			return http.StatusBadRequest, errInvalidDepth
		}
	}
	pf, status, err := readPropfind(c.Request.Body)
	if err != nil {
		return status, err
	}

	mw := multistatusWriter{w: c.Writer}
	walkFn := func(reqPath string, info filesystem.FileInfo, err error) error {
		if err != nil {
			return err
		}
		var pstats []Propstat
		if pf.Propname != nil {
			pstat := Propstat{Status: http.StatusOK}
			for _, xmlname := range propnames(info) {
				pstat.Props = append(pstat.Props, Property{XMLName: xmlname})
			}
			pstats = append(pstats, pstat)
		} else if pf.Allprop != nil {
			pstats = allprop(info, pf.Include)
		} else {
			pstats = props(info, pf.Prop)
		}
		return mw.write(makePropstatResponse(util.Href(h.Prefix, reqPath, info.IsDir), pstats))
	}

	walkErr := walkFS(ctx, fs, depth, reqPath, fi, walkFn)
	closeErr := mw.close()
	if walkErr != nil {
		return http.StatusInternalServerError, walkErr
	}
	if closeErr != nil {
		return http.StatusInternalServerError, closeErr
	}
	return 0, nil
}

func (h *Handler) handleProppatch(c *gin.Context, fs filesystem.Storage, ls LockSystem) (status int, err error) {
	reqPath, status, err := h.stripPrefix(c.Request.URL.Path)
	if err != nil {
		return status, err
	}
	release, status, err := h.confirmLock(c, ls, reqPath, "", scopeResource)
	if err != nil {
		return status, err
	}
	defer release()

	fi, err := fs.Stat(c.Request.Context(), reqPath)
	if err != nil {
		return http.StatusMethodNotAllowed, err
	}
	patches, status, err := readProppatch(c.Request.Body)
	if err != nil {
		return status, err
	}
	pstats := patch(patches)
	mw := multistatusWriter{w: c.Writer}
	writeErr := mw.write(makePropstatResponse(util.Href(h.Prefix, reqPath, fi.IsDir), pstats))
	closeErr := mw.close()
	if writeErr != nil {
		return http.StatusInternalServerError, writeErr
	}
	if closeErr != nil {
		return http.StatusInternalServerError, closeErr
	}
	return 0, nil
}

func makePropstatResponse(href string, pstats []Propstat) *response {
	resp := response{
		Href:     []string{href},
		Propstat: make([]propstat, 0, len(pstats)),
	}
	for _, p := range pstats {
		var xmlErr *xmlError
		if p.XMLError != "" {
			xmlErr = &xmlError{InnerXML: []byte(p.XMLError)}
		}
		resp.Propstat = append(resp.Propstat, propstat{
			Status:              fmt.Sprintf("HTTP/1.1 %d %s", p.Status, StatusText(p.Status)),
			Prop:                p.Props,
			ResponseDescription: p.ResponseDescription,
			Error:               xmlErr,
		})
	}
	return &resp
}

const (
	infiniteDepth = -1
	invalidDepth  = -2
)

// parseDepth maps the strings "0", "1" and "infinity" to 0, 1 and
// infiniteDepth. Parsing any other string returns invalidDepth. Unless
// StrictDepth is set, "1" is treated as infiniteDepth.
//
// Different WebDAV methods have further constraints on valid depths:
//   - PROPFIND has no further restrictions, as per section 9.1.
//   - COPY accepts only "0" or "infinity", as per section 9.8.3.
//   - MOVE accepts only "infinity", as per section 9.9.2.
//   - LOCK accepts only "0" or "infinity", as per section 9.10.3.
//
// These constraints are enforced by the handleXxx methods.
func (h *Handler) parseDepth(s string) int {
	switch s {
	case "0":
		return 0
	case "1":
		if h.StrictDepth {
			return 1
		}
		return infiniteDepth
	case "infinity":
		return infiniteDepth
	}
	return invalidDepth
}

const (
	infiniteTimeout = -1
	// maxTimeout caps the seconds a client may ask a lock to live.
	maxTimeout = 1<<31 - 1
)

// parseTimeout parses the Timeout HTTP header, as per section 10.7. If s is
// empty, def is returned. Only the first of several comma separated values
// is considered.
func parseTimeout(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "Infinite" {
		return infiniteTimeout, nil
	}
	const pre = "Second-"
	if !strings.HasPrefix(s, pre) {
		return 0, errInvalidTimeout
	}
	s = s[len(pre):]
	if s == "" || s[0] < '0' || '9' < s[0] {
		return 0, errInvalidTimeout
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			n = maxTimeout
		} else {
			return 0, errInvalidTimeout
		}
	}
	if n > maxTimeout {
		n = maxTimeout
	}
	return time.Duration(n) * time.Second, nil
}

// http://www.webdav.org/specs/rfc4918.html#status.code.extensions.to.http11
const (
	StatusMulti               = 207
	StatusUnprocessableEntity = 422
	StatusLocked              = 423
	StatusFailedDependency    = 424
	StatusInsufficientStorage = 507
)

func StatusText(code int) string {
	switch code {
	case StatusMulti:
		return "Multi-Status"
	case StatusUnprocessableEntity:
		return "Unprocessable Entity"
	case StatusLocked:
		return "Locked"
	case StatusFailedDependency:
		return "Failed Dependency"
	case StatusInsufficientStorage:
		return "Insufficient Storage"
	}
	return http.StatusText(code)
}

var (
	errDeleteRoot              = errors.New("webdav: cannot delete the root collection")
	errDestinationEqualsSource = errors.New("webdav: destination equals source")
	errInvalidDepth            = errors.New("webdav: invalid depth")
	errInvalidDestination      = errors.New("webdav: invalid destination")
	errInvalidIfHeader         = errors.New("webdav: invalid If header")
	errInvalidLockInfo         = errors.New("webdav: invalid lock info")
	errInvalidLockToken        = errors.New("webdav: invalid lock token")
	errInvalidPropfind         = errors.New("webdav: invalid propfind")
	errInvalidProppatch        = errors.New("webdav: invalid proppatch")
	errInvalidResponse         = errors.New("webdav: invalid response")
	errInvalidTimeout          = errors.New("webdav: invalid timeout")
	errIsDirectory             = errors.New("webdav: target is a directory")
	errMissingParent           = errors.New("webdav: parent collection does not exist")
	errNoFileSystem            = errors.New("webdav: no file system")
	errNoLockSystem            = errors.New("webdav: no lock system")
	errPrefixMismatch          = errors.New("webdav: prefix mismatch")
	errRecursionTooDeep        = errors.New("webdav: recursion too deep")
	errUnsupportedLockInfo     = errors.New("webdav: unsupported lock info")
	errUnsupportedMethod       = errors.New("webdav: unsupported method")
)
