package crontab

import (
	"context"
	"fmt"

	"github.com/derpycloud/derpycloud/application/dependency"
	"github.com/derpycloud/derpycloud/pkg/logging"
	"github.com/gofrs/uuid"
	"github.com/robfig/cron/v3"
)

type (
	CronTaskFunc func(ctx context.Context)
	// CronType names a registered job.
	CronType         string
	cornRegistration struct {
		t      CronType
		config func(dep dependency.Dep) string
		fn     CronTaskFunc
	}
)

var (
	registrations []cornRegistration
)

// Register registers a cron task. config resolves the schedule when the cron is built.
func Register(t CronType, config func(dep dependency.Dep) string, fn CronTaskFunc) {
	registrations = append(registrations, cornRegistration{
		t:      t,
		config: config,
		fn:     fn,
	})
}

// NewCron constructs a new cron instance with given dependency.
func NewCron(ctx context.Context, dep dependency.Dep) (*cron.Cron, error) {
	l := dep.Logger()
	l.Info("Initialize crontab jobs...")
	c := cron.New()

	for _, r := range registrations {
		cronConfig := r.config(dep)
		if cronConfig == "" {
			l.Info("Cron task %q is disabled.", r.t)
			continue
		}

		if _, err := c.AddFunc(cronConfig, taskWrapper(string(r.t), cronConfig, dep, r.fn)); err != nil {
			return nil, fmt.Errorf("cron: failed to schedule %q with %q: %w", r.t, cronConfig, err)
		}
	}

	return c, nil
}

func taskWrapper(name, config string, dep dependency.Dep, task CronTaskFunc) func() {
	l := dep.Logger()
	l.Info("Cron task %s started with config %q", name, config)
	return func() {
		cid := uuid.Must(uuid.NewV4())
		l.Debug("Executing Cron task %q with Cid %q", name, cid)
		ctx := context.Background()
		l := dep.Logger().CopyWithPrefix(fmt.Sprintf("[Cid: %s Cron: %s]", cid, name))
		ctx = dep.ForkWithLogger(ctx, l)
		ctx = context.WithValue(ctx, logging.CorrelationIDCtx{}, cid)
		ctx = context.WithValue(ctx, logging.LoggerCtx{}, l)
		task(ctx)
	}
}
