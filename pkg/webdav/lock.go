package webdav

import (
	"container/heap"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/derpycloud/derpycloud/pkg/util"
	"github.com/samber/lo"
)

var (
	// ErrConfirmationFailed is returned by a LockSystem's Confirm method.
	ErrConfirmationFailed = errors.New("webdav: confirmation failed")
	// ErrForbidden is returned by a LockSystem's Unlock method.
	ErrForbidden = errors.New("webdav: forbidden")
	// ErrLocked is returned by a LockSystem's Create, Refresh and Unlock methods.
	ErrLocked = errors.New("webdav: locked")
	// ErrNoSuchLock is returned by a LockSystem's Refresh and Unlock methods.
	ErrNoSuchLock = errors.New("webdav: no such lock")
	// ErrSkipDir is returned by a walk function to skip a collection.
	ErrSkipDir = errors.New("webdav: skip dir")
)

// expiryScale converts unix milliseconds into the virtual time unit used by
// expiry keys, leaving room to break ties between locks expiring together.
const expiryScale = 100

// Condition can match a WebDAV resource, based on a token or ETag.
// Exactly one of Token and ETag should be non-empty.
type Condition struct {
	Not   bool
	Token string
	ETag  string
}

// LockSystem manages access to a collection of named resources. The elements
// in a lock name are separated by slash ('/', U+002F) characters, regardless
// of host operating system convention.
type LockSystem interface {
	// Confirm confirms that the caller can claim all of the locks specified by
	// the given conditions, and that holding the union of all of those locks
	// gives exclusive access to all of the named resources. Up to two resources
	// can be named. Empty names are ignored.
	//
	// Exactly one of release and err will be non-nil. If release is non-nil,
	// all of the requested locks are held until release is called.
	Confirm(now time.Time, name0, name1 string, conditions ...Condition) (release func(), err error)

	// Create creates a lock with the given depth, duration, owner and root
	// (name). The depth will either be negative (meaning infinite) or zero.
	Create(now time.Time, details LockDetails) (token string, err error)

	// Refresh refreshes the lock with the given token.
	Refresh(now time.Time, token string, duration time.Duration) (LockDetails, error)

	// Unlock unlocks the lock with the given token.
	Unlock(now time.Time, token string) error

	// Reap drops every lock expired at now and returns how many were dropped.
	Reap(now time.Time) int

	// Len returns the number of active locks.
	Len() int
}

// LockDetails are a lock's metadata.
type LockDetails struct {
	// Root is the root resource name being locked. For a zero-depth lock, the
	// root is the only resource being locked.
	Root string
	// Duration is the lock timeout. A negative duration means infinite.
	Duration time.Duration
	// Owner is the text of the owner href supplied by the client.
	Owner string
	// ZeroDepth is whether the lock has zero depth. If it does not have zero
	// depth, it has infinite depth.
	ZeroDepth bool
}

type memLS struct {
	l       logging.Logger
	prefix  string
	mu      sync.Mutex
	byName  map[string]*memLSNode
	byToken map[string]*memLSNode
	gen     uint64
	// byExpiry only contains those nodes whose LockDetails have a finite
	// Duration and are yet to expire.
	byExpiry   byExpiry
	expiryKeys map[int64]struct{}
}

// NewMemLS returns a new in-memory LockSystem. Tokens are prefix followed by
// a monotonically increasing counter.
func NewMemLS(prefix string, l logging.Logger) LockSystem {
	return &memLS{
		l:          l,
		prefix:     prefix,
		byName:     make(map[string]*memLSNode),
		byToken:    make(map[string]*memLSNode),
		expiryKeys: make(map[int64]struct{}),
	}
}

func (m *memLS) nextToken() string {
	m.gen++
	return m.prefix + strconv.FormatUint(m.gen, 10)
}

// nextExpiryKey returns an unused key for a lock expiring duration after now.
func (m *memLS) nextExpiryKey(now time.Time, duration time.Duration) int64 {
	key := (now.UnixMilli() + duration.Milliseconds()) * expiryScale
	for {
		key++
		if _, ok := m.expiryKeys[key]; !ok {
			return key
		}
	}
}

func (m *memLS) collectExpiredNodes(now time.Time) int {
	current := now.UnixMilli() * expiryScale
	reaped := 0
	for len(m.byExpiry) > 0 {
		if m.byExpiry[0].expiryKey > current {
			break
		}
		n := m.byExpiry[0]
		m.l.Debug("Memlock reap: Root: %s, Token: %s", n.details.Root, n.token)
		m.remove(n)
		reaped++
	}
	return reaped
}

func (m *memLS) Confirm(now time.Time, name0, name1 string, conditions ...Condition) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectExpiredNodes(now)

	var n0, n1 *memLSNode
	if name0 != "" {
		if n0 = m.lookup(util.SlashClean(name0), conditions...); n0 == nil {
			return nil, ErrConfirmationFailed
		}
	}
	if name1 != "" {
		if n1 = m.lookup(util.SlashClean(name1), conditions...); n1 == nil {
			return nil, ErrConfirmationFailed
		}
	}

	// Don't hold the same node twice.
	if n1 == n0 {
		n1 = nil
	}

	if n0 != nil {
		m.hold(n0)
	}
	if n1 != nil {
		m.hold(n1)
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if n1 != nil {
			m.unhold(n1)
		}
		if n0 != nil {
			m.unhold(n0)
		}
	}, nil
}

// lookup returns the node n that locks the named resource, provided that n
// matches at least one of the given conditions and that lock isn't held by
// another party. Otherwise, it returns nil.
//
// n may be a parent of the named resource, if n is an infinite depth lock.
func (m *memLS) lookup(name string, conditions ...Condition) (n *memLSNode) {
	for _, c := range conditions {
		n = m.byToken[c.Token]
		if n == nil || n.held {
			continue
		}
		if name == n.details.Root {
			return n
		}
		if n.details.ZeroDepth {
			continue
		}
		if util.IsAncestor(n.details.Root, name) {
			return n
		}
	}
	return nil
}

func (m *memLS) hold(n *memLSNode) {
	if n.held {
		panic("webdav: memLS inconsistent held state")
	}
	n.held = true
	if n.details.Duration >= 0 && n.byExpiryIndex >= 0 {
		m.unschedule(n)
	}
}

func (m *memLS) unhold(n *memLSNode) {
	if !n.held {
		panic("webdav: memLS inconsistent held state")
	}
	n.held = false
	if n.details.Duration >= 0 {
		key := n.expiryKey
		for {
			if _, ok := m.expiryKeys[key]; !ok {
				break
			}
			key++
		}
		m.schedule(n, key)
	}
}

func (m *memLS) Create(now time.Time, details LockDetails) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectExpiredNodes(now)
	details.Root = util.SlashClean(details.Root)

	m.l.Debug("Memlock create: Root: %s, Duration: %v, ZeroDepth: %v", details.Root, details.Duration, details.ZeroDepth)
	if conflicts := m.canCreate(details.Root, details.ZeroDepth); len(conflicts) > 0 {
		return "", ConflictError(conflicts)
	}

	n := m.create(details.Root, m.nextToken())
	m.byToken[n.token] = n
	n.details = details
	if n.details.Duration >= 0 {
		m.schedule(n, m.nextExpiryKey(now, n.details.Duration))
	}
	return n.token, nil
}

func (m *memLS) canCreate(name string, zeroDepth bool) []*ConflictDetail {
	var conflicts []*ConflictDetail
	walkToRoot(name, func(name0 string, first bool) bool {
		n := m.byName[name0]
		if n == nil {
			return true
		}
		if first {
			if n.token != "" {
				// The target node is already locked.
				conflicts = append(conflicts, n.toConflictDetail())
				return false
			}
			// n exists without a token, so a descendant of the target node is
			// locked. An infinite depth request conflicts with all of them, a zero
			// depth one only with the infinite depth ones.
			conflicts = append(conflicts, lo.FilterMap(lo.Values(n.childLocks), func(value *memLSNode, _ int) (*ConflictDetail, bool) {
				if zeroDepth && value.details.ZeroDepth {
					return nil, false
				}
				return value.toConflictDetail(), true
			})...)
			if len(conflicts) > 0 {
				return false
			}
		} else if n.token != "" && !n.details.ZeroDepth {
			// An ancestor of the target node is locked with infinite depth.
			conflicts = append(conflicts, n.toConflictDetail())
			return false
		}
		return true
	})
	return conflicts
}

func (m *memLS) Refresh(now time.Time, token string, duration time.Duration) (LockDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectExpiredNodes(now)

	m.l.Debug("Memlock refresh: Token: %s, Duration: %v", token, duration)
	n := m.byToken[token]
	if n == nil {
		return LockDetails{}, ErrNoSuchLock
	}
	if n.held {
		return LockDetails{}, ErrLocked
	}
	if n.byExpiryIndex >= 0 {
		m.unschedule(n)
	}
	n.details.Duration = duration
	if n.details.Duration >= 0 {
		m.schedule(n, m.nextExpiryKey(now, n.details.Duration))
	}
	return n.details, nil
}

func (m *memLS) Unlock(now time.Time, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectExpiredNodes(now)

	m.l.Debug("Memlock unlock: Token: %s", token)
	n := m.byToken[token]
	if n == nil {
		return ErrNoSuchLock
	}
	if n.held {
		return ErrLocked
	}
	m.remove(n)
	return nil
}

func (m *memLS) Reap(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectExpiredNodes(now)
}

func (m *memLS) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}

func (m *memLS) create(name, token string) (ret *memLSNode) {
	walkToRoot(name, func(name0 string, first bool) bool {
		n := m.byName[name0]
		if n == nil {
			n = &memLSNode{
				details: LockDetails{
					Root: name0,
				},
				childLocks:    make(map[string]*memLSNode),
				byExpiryIndex: -1,
			}
			m.byName[name0] = n
		}
		n.refCount++
		if first {
			n.token = token
			ret = n
		} else {
			n.childLocks[token] = ret
		}
		return true
	})
	return ret
}

func (m *memLS) remove(n *memLSNode) {
	delete(m.byToken, n.token)
	token := n.token
	n.token = ""
	walkToRoot(n.details.Root, func(name0 string, first bool) bool {
		x := m.byName[name0]
		x.refCount--
		delete(x.childLocks, token)
		if x.refCount == 0 {
			delete(m.byName, name0)
		}
		return true
	})
	if n.byExpiryIndex >= 0 {
		m.unschedule(n)
	}
}

func (m *memLS) schedule(n *memLSNode, key int64) {
	n.expiryKey = key
	m.expiryKeys[key] = struct{}{}
	heap.Push(&m.byExpiry, n)
}

func (m *memLS) unschedule(n *memLSNode) {
	delete(m.expiryKeys, n.expiryKey)
	heap.Remove(&m.byExpiry, n.byExpiryIndex)
}

func walkToRoot(name string, f func(name0 string, first bool) bool) bool {
	for first := true; ; first = false {
		if !f(name, first) {
			return false
		}
		if name == "/" {
			break
		}
		name = name[:strings.LastIndex(name, "/")]
		if name == "" {
			name = "/"
		}
	}
	return true
}

type memLSNode struct {
	// details are the lock metadata. Even if this node's name is not explicitly locked,
	// details.Root will still equal the node's name.
	details LockDetails
	// token is the unique identifier for this node's lock. An empty token means that
	// this node is not explicitly locked.
	token string
	// refCount is the number of self-or-descendent nodes that are explicitly locked.
	refCount int
	// expiryKey is the virtual time at which this node's lock expires.
	expiryKey int64
	// byExpiryIndex is the index of this node in memLS.byExpiry. It is -1
	// if this node does not expire, or has expired.
	byExpiryIndex int
	// held is whether this node's lock is actively held by a Confirm call.
	held bool
	// childLocks hold the relation between lock token and descendant locks.
	childLocks map[string]*memLSNode
}

func (n *memLSNode) toConflictDetail() *ConflictDetail {
	return &ConflictDetail{
		Path:  n.details.Root,
		Owner: n.details.Owner,
		Token: n.token,
	}
}

type byExpiry []*memLSNode

func (b *byExpiry) Len() int {
	return len(*b)
}

func (b *byExpiry) Less(i, j int) bool {
	return (*b)[i].expiryKey < (*b)[j].expiryKey
}

func (b *byExpiry) Swap(i, j int) {
	(*b)[i], (*b)[j] = (*b)[j], (*b)[i]
	(*b)[i].byExpiryIndex = i
	(*b)[j].byExpiryIndex = j
}

func (b *byExpiry) Push(x interface{}) {
	n := x.(*memLSNode)
	n.byExpiryIndex = len(*b)
	*b = append(*b, n)
}

func (b *byExpiry) Pop() interface{} {
	i := len(*b) - 1
	n := (*b)[i]
	(*b)[i] = nil
	n.byExpiryIndex = -1
	*b = (*b)[:i]
	return n
}

// ConflictDetail describes a lock that prevented a new lock from being created.
type ConflictDetail struct {
	Path  string
	Token string
	Owner string
}

type ConflictError []*ConflictDetail

func (r ConflictError) Error() string {
	return "conflict with locked resource: " + strings.Join(
		lo.Map(r, func(item *ConflictDetail, index int) string {
			return "\"" + item.Path + "\""
		}), ",")
}

func (r ConflictError) Unwrap() error {
	return ErrLocked
}
