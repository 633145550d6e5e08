// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdav

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/derpycloud/derpycloud/pkg/filesystem"
	"github.com/derpycloud/derpycloud/pkg/util"
)

// maxCopyRecursion bounds the nesting copyFiles descends into.
const maxCopyRecursion = 1000

// moveFiles moves files and/or directories from src to dst.
//
// See section 9.9.4 for when various HTTP status codes apply.
func moveFiles(ctx context.Context, fs filesystem.Storage, src, dst string, overwrite bool) (status int, err error) {
	if _, err := fs.Stat(ctx, src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return http.StatusNotFound, err
		}
		return http.StatusForbidden, err
	}

	created := false
	if _, err := fs.Stat(ctx, dst); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return http.StatusForbidden, err
		}
		created = true
	} else if overwrite {
		// Section 9.9.3 says that "If a resource exists at the destination
		// and the Overwrite header is "T", then prior to performing the move,
		// the server must perform a DELETE with "Depth: infinity" on the
		// destination resource.
		if err := fs.RemoveAll(ctx, dst); err != nil {
			return http.StatusForbidden, err
		}
	} else {
		return http.StatusPreconditionFailed, os.ErrExist
	}

	if err := fs.Rename(ctx, src, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return http.StatusConflict, err
		}
		return http.StatusForbidden, err
	}
	if created {
		return http.StatusCreated, nil
	}
	return http.StatusNoContent, nil
}

// copyFiles copies files and/or directories from src to dst.
//
// See section 9.8.5 for when various HTTP status codes apply.
func copyFiles(ctx context.Context, fs filesystem.Storage, src, dst string, overwrite bool, depth int, recursion int) (status int, err error) {
	if recursion == maxCopyRecursion {
		return http.StatusInternalServerError, errRecursionTooDeep
	}
	recursion++

	srcStat, err := fs.Stat(ctx, src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return http.StatusNotFound, err
		}
		return http.StatusForbidden, err
	}

	created := false
	if _, err := fs.Stat(ctx, dst); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return http.StatusForbidden, err
		}
		created = true
	} else {
		if !overwrite {
			return http.StatusPreconditionFailed, os.ErrExist
		}
		if err := fs.RemoveAll(ctx, dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			return http.StatusForbidden, err
		}
	}

	if srcStat.IsDir {
		// Section 9.8.3 notes that an infinite-depth COPY of /A/ into /A/B/
		// could recurse forever. Listing the children before dst is created
		// keeps dst out of its own copy.
		var children []filesystem.FileInfo
		if depth == infiniteDepth {
			if children, err = fs.ReadDir(ctx, src); err != nil {
				return http.StatusForbidden, err
			}
		}

		if err := fs.Mkdir(ctx, dst); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return http.StatusConflict, err
			}
			return http.StatusForbidden, err
		}

		// Every child is attempted, the first failure is reported.
		for _, c := range children {
			cStatus, cErr := copyFiles(ctx, fs, util.Join(src, c.Name), util.Join(dst, c.Name), overwrite, depth, recursion)
			if cErr != nil && err == nil {
				status, err = cStatus, cErr
			}
		}
		if err != nil {
			return status, err
		}
	} else {
		if err := filesystem.CopyFile(ctx, fs, src, dst); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return http.StatusConflict, err
			}
			return http.StatusForbidden, err
		}
	}

	if created {
		return http.StatusCreated, nil
	}
	return http.StatusNoContent, nil
}

// walkFS traverses filesystem fs starting at name up to depth levels.
//
// Allowed values for depth are 0, 1 or infiniteDepth. For each visited node,
// walkFS calls walkFn. If a visited file system node is a directory and
// walkFn returns ErrSkipDir, walkFS will skip traversal of this node.
func walkFS(
	ctx context.Context,
	fs filesystem.Storage,
	depth int,
	name string,
	info filesystem.FileInfo,
	walkFn func(reqPath string, info filesystem.FileInfo, err error) error) error {
	// This implementation is based on Walk's code in the standard path/filepath package.
	err := walkFn(name, info, nil)
	if err != nil {
		if info.IsDir && err == ErrSkipDir {
			return nil
		}
		return err
	}
	if !info.IsDir || depth == 0 {
		return nil
	}
	if depth == 1 {
		depth = 0
	}

	// A collection that can't be listed is reported without children.
	children, _ := fs.ReadDir(ctx, name)
	for _, child := range children {
		err = walkFS(ctx, fs, depth, util.Join(name, child.Name), child, walkFn)
		if err != nil {
			if !child.IsDir || err != ErrSkipDir {
				return err
			}
		}
	}
	return nil
}
