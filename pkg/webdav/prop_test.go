package webdav

import (
	"encoding/xml"
	"net/http"
	"testing"
	"time"

	"github.com/derpycloud/derpycloud/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testModTime = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	testFile    = filesystem.FileInfo{
		Size:         5,
		Name:         "a b.png",
		Path:         "/dir/a b.png",
		ModTime:      testModTime,
		CreationTime: testModTime,
	}
	testDir = filesystem.FileInfo{
		Name:         "dir",
		Path:         "/dir",
		ModTime:      testModTime,
		CreationTime: testModTime,
		IsDir:        true,
	}
)

func davName(local string) xml.Name {
	return xml.Name{Space: davNs, Local: local}
}

func TestPropnames(t *testing.T) {
	asserts := assert.New(t)

	asserts.Equal([]xml.Name{
		davName("resourcetype"),
		davName("displayname"),
		davName("getcontentlength"),
		davName("getlastmodified"),
		davName("creationdate"),
		davName("getcontenttype"),
		davName("getetag"),
		davName("supportedlock"),
	}, propnames(testFile))

	asserts.Equal([]xml.Name{
		davName("resourcetype"),
		davName("displayname"),
		davName("getlastmodified"),
		davName("creationdate"),
		davName("getcontenttype"),
		davName("supportedlock"),
	}, propnames(testDir))
}

func TestProps(t *testing.T) {
	asserts := assert.New(t)

	// Known and unknown names are split into 200 and 404
	{
		pstats := props(testFile, []xml.Name{
			davName("getcontentlength"),
			{Space: "urn:x", Local: "author"},
			davName("getlastmodified"),
		})
		require.Len(t, pstats, 2)
		asserts.Equal(http.StatusOK, pstats[0].Status)
		require.Len(t, pstats[0].Props, 2)
		asserts.Equal("5", string(pstats[0].Props[0].InnerXML))
		asserts.Equal("Fri, 01 Mar 2024 08:30:00 GMT", string(pstats[0].Props[1].InnerXML))
		asserts.Equal(typeHint("dateTime.rfc1123"), pstats[0].Props[1].Attr)
		asserts.Equal(http.StatusNotFound, pstats[1].Status)
		asserts.Equal([]Property{{XMLName: xml.Name{Space: "urn:x", Local: "author"}}}, pstats[1].Props)
	}

	// File only properties are missing on collections
	{
		pstats := props(testDir, []xml.Name{davName("getetag"), davName("getcontentlength")})
		require.Len(t, pstats, 1)
		asserts.Equal(http.StatusNotFound, pstats[0].Status)
		asserts.Len(pstats[0].Props, 2)
	}

	// Nothing requested
	{
		pstats := props(testFile, nil)
		asserts.Equal([]Propstat{{Status: http.StatusOK}}, pstats)
	}

	// The namespace of a live property is not significant
	{
		pstats := props(testDir, []xml.Name{{Space: "urn:other", Local: "resourcetype"}})
		require.Len(t, pstats, 1)
		asserts.Equal(http.StatusOK, pstats[0].Status)
		asserts.Equal(`<D:collection xmlns:D="DAV:"/>`, string(pstats[0].Props[0].InnerXML))
	}
}

func TestAllprop(t *testing.T) {
	asserts := assert.New(t)

	// Include adds unknown names once and ignores live ones
	pstats := allprop(testFile, []xml.Name{
		davName("displayname"),
		{Space: "urn:x", Local: "author"},
		{Space: "urn:x", Local: "author"},
	})
	require.Len(t, pstats, 2)
	asserts.Len(pstats[0].Props, len(livePropNames))
	asserts.Equal(http.StatusNotFound, pstats[1].Status)
	asserts.Len(pstats[1].Props, 1)

	values := map[string]string{}
	for _, p := range pstats[0].Props {
		values[p.XMLName.Local] = string(p.InnerXML)
	}
	asserts.Equal("", values["resourcetype"])
	asserts.Equal("a%20b.png", values["displayname"])
	asserts.Equal("2024-03-01T08:30:00Z", values["creationdate"])
	asserts.Equal("image/png", values["getcontenttype"])
	asserts.Equal(`"17b896bdae0a50005"`, values["getetag"])
	asserts.Contains(values["supportedlock"], "<D:exclusive/>")
}

func TestPatch(t *testing.T) {
	asserts := assert.New(t)

	// Dead properties are accepted
	{
		pstats := patch([]Proppatch{{
			Props: []Property{{XMLName: xml.Name{Space: "urn:x", Local: "author"}, InnerXML: []byte("me")}},
		}, {
			Remove: true,
			Props:  []Property{{XMLName: xml.Name{Space: "urn:x", Local: "rating"}}},
		}})
		require.Len(t, pstats, 1)
		asserts.Equal(http.StatusOK, pstats[0].Status)
		asserts.Equal([]Property{
			{XMLName: xml.Name{Space: "urn:x", Local: "author"}},
			{XMLName: xml.Name{Space: "urn:x", Local: "rating"}},
		}, pstats[0].Props)
	}

	// A protected property fails the whole patch
	{
		pstats := patch([]Proppatch{{
			Props: []Property{
				{XMLName: davName("getetag"), InnerXML: []byte("x")},
				{XMLName: xml.Name{Space: "urn:x", Local: "author"}, InnerXML: []byte("me")},
			},
		}})
		require.Len(t, pstats, 2)
		asserts.Equal(http.StatusForbidden, pstats[0].Status)
		asserts.Equal(`<D:cannot-modify-protected-property xmlns:D="DAV:"/>`, pstats[0].XMLError)
		asserts.Equal([]Property{{XMLName: davName("getetag")}}, pstats[0].Props)
		asserts.Equal(StatusFailedDependency, pstats[1].Status)
		asserts.Equal([]Property{{XMLName: xml.Name{Space: "urn:x", Local: "author"}}}, pstats[1].Props)
	}
}

func TestFindDisplayName(t *testing.T) {
	asserts := assert.New(t)
	asserts.Equal("", findDisplayName(filesystem.FileInfo{Name: "/", Path: "/", IsDir: true}))
	asserts.Equal("dir", findDisplayName(testDir))
	asserts.Equal("R&amp;D", findDisplayName(filesystem.FileInfo{Name: "R&D", Path: "/R&D"}))
}

func TestFindContentType(t *testing.T) {
	asserts := assert.New(t)
	asserts.Equal(dirContentType, findContentType(testDir))
	asserts.Equal("image/png", findContentType(testFile))
	asserts.Equal(defaultContentType, findContentType(filesystem.FileInfo{Name: "blob.unknownext"}))
	asserts.Equal(defaultContentType, findContentType(filesystem.FileInfo{Name: "Makefile"}))
}

func TestFindETag(t *testing.T) {
	asserts := assert.New(t)
	fi := filesystem.FileInfo{ModTime: time.Unix(0, 0x10), Size: 0x20}
	asserts.Equal(`"1020"`, findETag(fi))

	fi.Size++
	asserts.NotEqual(`"1020"`, findETag(fi))
}

func TestEscapeXML(t *testing.T) {
	asserts := assert.New(t)
	asserts.Equal("plain-name_1.txt", escapeXML("plain-name_1.txt"))
	asserts.Equal("a&lt;b&gt;&amp;&#34;", escapeXML(`a<b>&"`))
}
