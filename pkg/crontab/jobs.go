package crontab

import (
	"context"
	"time"

	"github.com/derpycloud/derpycloud/application/dependency"
	"github.com/derpycloud/derpycloud/pkg/logging"
)

const (
	CronTypeReapLocks       = CronType("reap_locks")
	CronTypePruneRateLimits = CronType("prune_rate_limits")

	// rateLimitIdle is how long a client bucket may stay unused before it is dropped.
	rateLimitIdle = 10 * time.Minute
)

func init() {
	Register(CronTypeReapLocks, func(dep dependency.Dep) string {
		return dep.ConfigProvider().WebDAV().LockReapCron
	}, reapLocks)
	Register(CronTypePruneRateLimits, func(dep dependency.Dep) string {
		if dep.ConfigProvider().RateLimit().RequestsPerSecond <= 0 {
			return ""
		}
		return "@every 5m"
	}, pruneRateLimits)
}

// reapLocks removes expired locks from every user space and refreshes the lock gauges.
func reapLocks(ctx context.Context) {
	dep := dependency.FromContext(ctx)
	l := logging.FromContext(ctx)
	spaces := dep.UserSpaces()

	reaped := spaces.Reap(time.Now())
	m := dep.Metrics()
	m.LocksReaped(reaped)
	m.SetActiveLocks(spaces.LockCount())
	m.SetUserSpaces(spaces.Len())

	if reaped > 0 {
		l.Info("Reaped %d expired lock(s).", reaped)
	}
}

func pruneRateLimits(ctx context.Context) {
	dep := dependency.FromContext(ctx)
	if n := dep.TPSLimiter().Prune(rateLimitIdle); n > 0 {
		logging.FromContext(ctx).Debug("Dropped %d idle rate limit bucket(s).", n)
	}
}
