package util

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	DataFolder = "data"
)

var UseWorkingDir = false

// FillSlash 给路径补全`/`
func FillSlash(path string) string {
	if path == "/" {
		return path
	}
	return path + "/"
}

// RemoveSlash 移除路径最后的`/`
func RemoveSlash(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

// SlashClean is equivalent to but slightly more efficient than
// path.Clean("/" + name).
func SlashClean(name string) string {
	if name == "" || name[0] != '/' {
		name = "/" + name
	}
	return path.Clean(name)
}

// Join joins any number of virtual path elements into a single rooted path.
// Empty elements are ignored and the result is always cleaned.
func Join(elem ...string) string {
	return SlashClean(path.Join(elem...))
}

// FilenameOf returns the last element of a virtual path. The root has no name.
func FilenameOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return p
	}
	return p[i+1:]
}

// Parent returns the parent directory of a virtual path.
func Parent(p string) string {
	return path.Dir(SlashClean(p))
}

// IsAncestor reports whether ancestor strictly covers p.
func IsAncestor(ancestor, p string) bool {
	if ancestor == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// EncodeURI escapes a virtual path so it can be used as an href.
func EncodeURI(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

// Href builds the escaped href of p below prefix. Collections get a trailing slash.
func Href(prefix, p string, isDir bool) string {
	joined := Join(prefix, p)
	if isDir {
		joined = FillSlash(joined)
	}
	return EncodeURI(joined)
}

// RelativePath 获取相对可执行文件的路径
func RelativePath(name string) string {
	if UseWorkingDir {
		return name
	}

	if filepath.IsAbs(name) {
		return name
	}
	e, _ := os.Executable()
	return filepath.Join(filepath.Dir(e), name)
}

// DataPath relative path for store persist data file
func DataPath(child string) string {
	dataPath := RelativePath(DataFolder)
	if !Exists(dataPath) {
		os.MkdirAll(dataPath, 0700)
	}

	if filepath.IsAbs(child) {
		return child
	}

	return filepath.Join(dataPath, child)
}
