// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/derpycloud/derpycloud/pkg/filesystem"
	"github.com/samber/lo"
)

const (
	davNs = "DAV:"
	// dirContentType is reported as getcontenttype of collections.
	dirContentType = "httpd/unix-directory"
	// defaultContentType is used when the extension of a file is unknown.
	defaultContentType = "application/octet-stream"
)

// Proppatch describes a property update instruction as defined in RFC 4918.
// See http://www.webdav.org/specs/rfc4918.html#METHOD_PROPPATCH
type Proppatch struct {
	// Remove specifies whether this patch removes properties. If it does not
	// remove them, it sets them.
	Remove bool
	// Props contains the properties to be set or removed.
	Props []Property
}

// Propstat describes a XML propstat element as defined in RFC 4918.
// See http://www.webdav.org/specs/rfc4918.html#ELEMENT_propstat
type Propstat struct {
	// Props contains the properties for which Status applies.
	Props []Property

	// Status defines the HTTP status code of the properties in Prop.
	// Allowed values include, but are not limited to the WebDAV status
	// code extensions for HTTP/1.1.
	// http://www.webdav.org/specs/rfc4918.html#status.code.extensions.to.http11
	Status int

	// XMLError contains the XML representation of the optional error element.
	// XML content within this field must not rely on any predefined
	// namespace declarations or prefixes. If empty, the XML error element
	// is omitted.
	XMLError string

	// ResponseDescription contains the contents of the optional
	// responsedescription field. If empty, the XML element is omitted.
	ResponseDescription string
}

// makePropstats returns a slice containing those of x and y whose Props slice
// is non-empty. If both are empty, it returns a slice containing an otherwise
// zero Propstat whose HTTP status code is 200 OK.
func makePropstats(x, y Propstat) []Propstat {
	pstats := make([]Propstat, 0, 2)
	if len(x.Props) != 0 {
		pstats = append(pstats, x)
	}
	if len(y.Props) != 0 {
		pstats = append(pstats, y)
	}
	if len(pstats) == 0 {
		pstats = append(pstats, Propstat{
			Status: http.StatusOK,
		})
	}
	return pstats
}

type liveProp struct {
	// findFn renders the value of this property.
	findFn func(fi filesystem.FileInfo) string
	// dir is true if the property applies to directories.
	dir bool
	// attr holds the type hint attributes some clients rely on.
	attr []xml.Attr
}

// liveProps contains all supported, protected DAV: properties. Lookups only
// compare local names, the namespace a client uses is not significant.
var liveProps = map[string]liveProp{
	"resourcetype": {
		findFn: findResourceType,
		dir:    true,
	},
	"displayname": {
		findFn: findDisplayName,
		dir:    true,
	},
	"getcontentlength": {
		findFn: findContentLength,
		dir:    false,
	},
	"getlastmodified": {
		findFn: findLastModified,
		// Some WebDAV clients expect child directories to be sortable by
		// getlastmodified date, so this value is true, not false.
		// See golang.org/issue/15334.
		dir:  true,
		attr: typeHint("dateTime.rfc1123"),
	},
	"creationdate": {
		findFn: findCreationDate,
		dir:    true,
		attr:   typeHint("datetime.tz"),
	},
	"getcontenttype": {
		findFn: findContentType,
		dir:    true,
	},
	"getetag": {
		findFn: findETag,
		// findETag implements ETag as the concatenated hex values of a file's
		// modification time and size. This is not a reliable synchronization
		// mechanism for directories, so we do not advertise getetag for DAV
		// collections.
		dir: false,
	},
	"supportedlock": {
		findFn: findSupportedLock,
		dir:    true,
	},
}

// livePropNames fixes the order live properties are reported in.
var livePropNames = []string{
	"resourcetype",
	"displayname",
	"getcontentlength",
	"getlastmodified",
	"creationdate",
	"getcontenttype",
	"getetag",
	"supportedlock",
}

func typeHint(dt string) []xml.Attr {
	return []xml.Attr{{Name: xml.Name{Local: appTokenNs + ":dt"}, Value: dt}}
}

// props returns the status of the properties named pnames for fi.
//
// Each Propstat has a unique status and each property name will only be part
// of one Propstat element.
func props(fi filesystem.FileInfo, pnames []xml.Name) []Propstat {
	pstatOK := Propstat{Status: http.StatusOK}
	pstatNotFound := Propstat{Status: http.StatusNotFound}
	for _, pn := range pnames {
		if prop, ok := liveProps[pn.Local]; ok && (prop.dir || !fi.IsDir) {
			pstatOK.Props = append(pstatOK.Props, Property{
				XMLName:  pn,
				Attr:     prop.attr,
				InnerXML: []byte(prop.findFn(fi)),
			})
		} else {
			pstatNotFound.Props = append(pstatNotFound.Props, Property{
				XMLName: pn,
			})
		}
	}
	return makePropstats(pstatOK, pstatNotFound)
}

// propnames returns the property names defined for fi.
func propnames(fi filesystem.FileInfo) []xml.Name {
	pnames := make([]xml.Name, 0, len(livePropNames))
	for _, local := range livePropNames {
		if liveProps[local].dir || !fi.IsDir {
			pnames = append(pnames, xml.Name{Space: davNs, Local: local})
		}
	}
	return pnames
}

// allprop returns the properties defined for fi and the properties named in
// include.
//
// See http://www.webdav.org/specs/rfc4918.html#METHOD_PROPFIND
func allprop(fi filesystem.FileInfo, include []xml.Name) []Propstat {
	pnames := propnames(fi)
	// Add names from include if they are not already covered in pnames.
	nameset := lo.Associate(pnames, func(pn xml.Name) (string, bool) {
		return pn.Local, true
	})
	for _, pn := range include {
		if !nameset[pn.Local] {
			nameset[pn.Local] = true
			pnames = append(pnames, pn)
		}
	}
	return props(fi, pnames)
}

// patch reports the outcome of patches. Live properties are protected, so a
// patch naming any of them fails as a whole. Accepted values are not stored.
func patch(patches []Proppatch) []Propstat {
	names := lo.FlatMap(patches, func(p Proppatch, _ int) []xml.Name {
		return lo.Map(p.Props, func(prop Property, _ int) xml.Name {
			return prop.XMLName
		})
	})
	conflict := lo.ContainsBy(names, func(n xml.Name) bool {
		_, ok := liveProps[n.Local]
		return ok
	})

	if conflict {
		pstatForbidden := Propstat{
			Status:   http.StatusForbidden,
			XMLError: `<D:cannot-modify-protected-property xmlns:D="DAV:"/>`,
		}
		pstatFailedDep := Propstat{
			Status: StatusFailedDependency,
		}
		for _, n := range names {
			if _, ok := liveProps[n.Local]; ok {
				pstatForbidden.Props = append(pstatForbidden.Props, Property{XMLName: n})
			} else {
				pstatFailedDep.Props = append(pstatFailedDep.Props, Property{XMLName: n})
			}
		}
		return makePropstats(pstatForbidden, pstatFailedDep)
	}

	// http://www.webdav.org/specs/rfc4918.html#ELEMENT_propstat says that
	// "The contents of the prop XML element must only list the names of
	// properties to which the result in the status element applies."
	pstat := Propstat{Status: http.StatusOK}
	for _, n := range names {
		pstat.Props = append(pstat.Props, Property{XMLName: n})
	}
	return []Propstat{pstat}
}

func escapeXML(s string) string {
	for i := 0; i < len(s); i++ {
		// As an optimization, if s contains only ASCII letters, digits or a
		// few special characters, the escaped value is s itself and we don't
		// need to allocate a buffer and convert between string and []byte.
		switch c := s[i]; {
		case c == ' ' || c == '_' ||
			('+' <= c && c <= '9') || // Digits as well as + , - . and /
			('A' <= c && c <= 'Z') ||
			('a' <= c && c <= 'z'):
			continue
		}
		// Otherwise, go through the full escaping process.
		var buf bytes.Buffer
		xml.EscapeText(&buf, []byte(s))
		return buf.String()
	}
	return s
}

func findResourceType(fi filesystem.FileInfo) string {
	if fi.IsDir {
		return `<D:collection xmlns:D="DAV:"/>`
	}
	return ""
}

func findDisplayName(fi filesystem.FileInfo) string {
	if fi.Path == "/" {
		// Hide the real name of the space root.
		return ""
	}
	return escapeXML(url.PathEscape(fi.Name))
}

func findContentLength(fi filesystem.FileInfo) string {
	return strconv.FormatInt(fi.Size, 10)
}

func findLastModified(fi filesystem.FileInfo) string {
	return fi.ModTime.UTC().Format(http.TimeFormat)
}

func findCreationDate(fi filesystem.FileInfo) string {
	return fi.CreationTime.UTC().Format(time.RFC3339)
}

func findContentType(fi filesystem.FileInfo) string {
	if fi.IsDir {
		return dirContentType
	}
	return contentTypeOf(fi.Name)
}

// contentTypeOf guesses the mime type of a file by its extension.
func contentTypeOf(name string) string {
	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		return ctype
	}
	return defaultContentType
}

func findETag(fi filesystem.FileInfo) string {
	// The Apache http 2.4 web server by default concatenates the
	// modification time and size of a file. We replicate the heuristic
	// with nanosecond granularity.
	return fmt.Sprintf(`"%x%x"`, fi.ModTime.UnixNano(), fi.Size)
}

func findSupportedLock(fi filesystem.FileInfo) string {
	return `` +
		`<D:lockentry xmlns:D="DAV:">` +
		`<D:lockscope><D:exclusive/></D:lockscope>` +
		`<D:locktype><D:write/></D:locktype>` +
		`</D:lockentry>`
}
