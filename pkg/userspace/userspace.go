package userspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/derpycloud/derpycloud/pkg/filesystem"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/webdav"
	"github.com/gofrs/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

var ErrInvalidUser = errors.New("userspace: invalid user name")

type (
	// SpaceCtx is the request context key of the authenticated user's Space.
	SpaceCtx struct{}

	// StorageFactory opens the storage backing the space of user.
	StorageFactory func(user string) (filesystem.Storage, error)
)

// Space is everything a WebDAV request of one user operates on. Spaces never
// share storage roots or lock tables.
type Space struct {
	User    string
	Storage filesystem.Storage
	Locks   webdav.LockSystem
}

// Registry hands out user spaces, creating them on first use.
type Registry interface {
	// Get returns the space of user, creating it if needed.
	Get(user string) (*Space, error)
	// Range calls f for every known space until f returns false.
	Range(f func(space *Space) bool)
	// Reap drops expired locks in every space and returns how many were removed.
	Reap(now time.Time) int
	// Len returns the number of known spaces.
	Len() int
	// LockCount returns the number of active locks across all spaces.
	LockCount() int
}

type registry struct {
	l       logging.Logger
	factory StorageFactory
	spaces  *xsync.MapOf[string, *Space]
}

// NewRegistry creates a Registry whose spaces are opened by factory.
func NewRegistry(factory StorageFactory, l logging.Logger) Registry {
	return &registry{
		l:       l,
		factory: factory,
		spaces:  xsync.NewMapOf[string, *Space](),
	}
}

// NewOsStorageFactory roots the space of each user at <root>/<user>.
func NewOsStorageFactory(root string) StorageFactory {
	return func(user string) (filesystem.Storage, error) {
		return filesystem.NewOsStorage(filepath.Join(root, user))
	}
}

// NewMemStorageFactory gives every user an empty in-memory storage.
func NewMemStorageFactory() StorageFactory {
	return func(user string) (filesystem.Storage, error) {
		return filesystem.NewMemStorage(), nil
	}
}

func (r *registry) Get(user string) (*Space, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	if space, ok := r.spaces.Load(user); ok {
		return space, nil
	}

	storage, err := r.factory(user)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage of %q: %w", user, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token prefix: %w", err)
	}

	space, loaded := r.spaces.LoadOrStore(user, &Space{
		User:    user,
		Storage: storage,
		Locks:   webdav.NewMemLS("opaquelocktoken:"+id.String()+"-", r.l.CopyWithPrefix(fmt.Sprintf("[Space: %s]", user))),
	})
	if !loaded {
		r.l.Info("User space of %q initialized.", user)
	}

	return space, nil
}

func (r *registry) Range(f func(space *Space) bool) {
	r.spaces.Range(func(_ string, space *Space) bool {
		return f(space)
	})
}

func (r *registry) Reap(now time.Time) int {
	reaped := 0
	r.Range(func(space *Space) bool {
		if n := space.Locks.Reap(now); n > 0 {
			r.l.Debug("Reaped %d expired lock(s) of %q.", n, space.User)
			reaped += n
		}
		return true
	})
	return reaped
}

func (r *registry) Len() int {
	return r.spaces.Size()
}

func (r *registry) LockCount() int {
	count := 0
	r.Range(func(space *Space) bool {
		count += space.Locks.Len()
		return true
	})
	return count
}

// validateUser rejects names that would escape the storage root.
func validateUser(user string) error {
	if user == "" || user == "." || user == ".." || strings.ContainsAny(user, `/\`) {
		return ErrInvalidUser
	}
	return nil
}

// WithSpace returns a copy of ctx carrying space.
func WithSpace(ctx context.Context, space *Space) context.Context {
	return context.WithValue(ctx, SpaceCtx{}, space)
}

// FromContext retrieves the space of the current request.
func FromContext(ctx context.Context) (*Space, bool) {
	space, ok := ctx.Value(SpaceCtx{}).(*Space)
	return space, ok
}
