package filesystem

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/derpycloud/derpycloud/pkg/util"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	Perm    = 0744
	DirPerm = 0755
)

// FileInfo is an immutable snapshot of a stored object.
type FileInfo struct {
	Size         int64
	Name         string
	Path         string
	ModTime      time.Time
	CreationTime time.Time
	IsDir        bool
}

// None is the FileInfo of an object that does not exist.
var None = FileInfo{}

// Exists reports whether the snapshot describes an existing object.
func (f FileInfo) Exists() bool {
	return f.Path != ""
}

// File is an opened stored object.
type File = afero.File

// Storage is a hierarchical file store addressed by virtual paths.
// Missing objects are reported with errors satisfying errors.Is(err, os.ErrNotExist).
type Storage interface {
	Stat(ctx context.Context, name string) (FileInfo, error)
	ReadDir(ctx context.Context, name string) ([]FileInfo, error)
	Open(ctx context.Context, name string) (File, error)
	// OpenFile requires the parent collection to exist when creating.
	OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (File, error)
	// Mkdir creates a single collection, never its parents.
	Mkdir(ctx context.Context, name string) error
	RemoveAll(ctx context.Context, name string) error
	Rename(ctx context.Context, oldName, newName string) error
}

// aferoStorage implements Storage on top of an afero filesystem.
type aferoStorage struct {
	fs afero.Fs
}

// NewOsStorage returns a Storage rooted at the given OS directory, creating it if needed.
func NewOsStorage(root string) (Storage, error) {
	if err := util.CreatNestedFolder(root); err != nil {
		return nil, errors.Wrapf(err, "failed to create storage root %q", root)
	}

	return &aferoStorage{fs: afero.NewBasePathFs(afero.NewOsFs(), root)}, nil
}

// NewMemStorage returns an empty in-memory Storage.
func NewMemStorage() Storage {
	return &aferoStorage{fs: afero.NewMemMapFs()}
}

// NewStorage wraps an arbitrary afero filesystem.
func NewStorage(fs afero.Fs) Storage {
	return &aferoStorage{fs: fs}
}

func (s *aferoStorage) Stat(ctx context.Context, name string) (FileInfo, error) {
	name = util.SlashClean(name)
	info, err := s.fs.Stat(name)
	if err != nil {
		return None, err
	}

	return newFileInfo(name, info), nil
}

func (s *aferoStorage) ReadDir(ctx context.Context, name string) ([]FileInfo, error) {
	name = util.SlashClean(name)
	infos, err := afero.ReadDir(s.fs, name)
	if err != nil {
		return nil, err
	}

	res := make([]FileInfo, 0, len(infos))
	for _, info := range infos {
		res = append(res, newFileInfo(util.Join(name, info.Name()), info))
	}

	return res, nil
}

func (s *aferoStorage) Open(ctx context.Context, name string) (File, error) {
	return s.fs.Open(util.SlashClean(name))
}

func (s *aferoStorage) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (File, error) {
	name = util.SlashClean(name)
	if flag&os.O_CREATE != 0 {
		if err := s.checkParent(name); err != nil {
			return nil, err
		}
	}

	return s.fs.OpenFile(name, flag, perm)
}

func (s *aferoStorage) Mkdir(ctx context.Context, name string) error {
	name = util.SlashClean(name)
	if err := s.checkParent(name); err != nil {
		return err
	}

	return s.fs.Mkdir(name, DirPerm)
}

func (s *aferoStorage) RemoveAll(ctx context.Context, name string) error {
	name = util.SlashClean(name)
	if _, err := s.fs.Stat(name); err != nil {
		return err
	}

	return s.fs.RemoveAll(name)
}

func (s *aferoStorage) Rename(ctx context.Context, oldName, newName string) error {
	newName = util.SlashClean(newName)
	if err := s.checkParent(newName); err != nil {
		return err
	}

	return s.fs.Rename(util.SlashClean(oldName), newName)
}

// checkParent fails with os.ErrNotExist unless the parent of name is an existing collection.
func (s *aferoStorage) checkParent(name string) error {
	if name == "/" {
		return nil
	}

	parent, err := s.fs.Stat(util.Parent(name))
	if err != nil {
		return err
	}

	if !parent.IsDir() {
		return &os.PathError{Op: "stat", Path: util.Parent(name), Err: os.ErrNotExist}
	}

	return nil
}

func newFileInfo(name string, info os.FileInfo) FileInfo {
	res := FileInfo{
		Name:         util.FilenameOf(name),
		Path:         name,
		ModTime:      info.ModTime(),
		CreationTime: info.ModTime(),
		IsDir:        info.IsDir(),
	}
	if !res.IsDir {
		res.Size = info.Size()
	}

	return res
}

// CopyFile copies the content of a single file, replacing dst.
func CopyFile(ctx context.Context, s Storage, src, dst string) error {
	in, err := s.Open(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.OpenFile(ctx, dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, Perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "failed to copy %q to %q", src, dst)
	}

	return out.Close()
}
