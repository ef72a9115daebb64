package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/STTM-NSU/paper-league/internal/logger"
	"github.com/robfig/cron/v3"
)

type Job func(ctx context.Context) error

type JobStatus struct {
	Name       string    `json:"name"`
	Spec       string    `json:"spec"`
	Next       time.Time `json:"next"`
	Running    bool      `json:"running"`
	LastStart  time.Time `json:"last_start"`
	LastFinish time.Time `json:"last_finish"`
	LastError  string    `json:"last_error,omitempty"`
}

// Runner triggers named jobs on cron specs with a seconds field. A job that is
// still running when its next tick arrives is skipped, so one job never
// overlaps with itself.
type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context

	mu   sync.Mutex
	jobs map[string]*entry

	logger logger.Logger
}

type entry struct {
	id     cron.EntryID
	status JobStatus
}

func New(baseCtx context.Context, loc *time.Location, logger logger.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		baseCtx: baseCtx,
		jobs:    make(map[string]*entry),
		logger:  logger,
	}
}

func (r *Runner) Add(name, spec string, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}

	id, err := r.cron.AddFunc(spec, r.wrap(name, job))
	if err != nil {
		return fmt.Errorf("%w: can't schedule %s at %q", err, name, spec)
	}
	r.jobs[name] = &entry{id: id, status: JobStatus{Name: name, Spec: spec}}
	return nil
}

func (r *Runner) wrap(name string, job Job) func() {
	return func() {
		r.update(name, func(s *JobStatus) {
			s.Running = true
			s.LastStart = time.Now()
		})
		r.logger.Infof("scheduled job %s started", name)

		err := job(r.baseCtx)

		r.update(name, func(s *JobStatus) {
			s.Running = false
			s.LastFinish = time.Now()
			s.LastError = ""
			if err != nil {
				s.LastError = err.Error()
			}
		})
		if err != nil {
			r.logger.Errorf("%s: scheduled job %s failed", err, name)
			return
		}
		r.logger.Infof("scheduled job %s finished", name)
	}
}

func (r *Runner) update(name string, f func(s *JobStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.jobs[name]; ok {
		f(&e.status)
	}
}

// Status lists scheduled jobs ordered by name.
func (r *Runner) Status() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobStatus, 0, len(r.jobs))
	for _, e := range r.jobs {
		s := e.status
		s.Next = r.cron.Entry(e.id).Next
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Runner) Start() {
	r.logger.Infof("cron started")
	r.cron.Start()
}

// Stop waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Infof("cron stopped")
}

type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.With(keysAndValues...).Debugf("cron: %s", msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.With(keysAndValues...).Errorf("%s: cron: %s", err, msg)
}
