// Package scheduler runs the periodic background jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"payoutdesk/pkg/logger"
)

// Job is a named callback run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func()
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger logger.Logger
}

// New creates a scheduler for jobs. Panicking jobs are recovered and logged,
// and a job still running when its next tick fires is skipped. Recover must
// sit inside the skip guard: the guard only releases its slot when the job
// returns normally.
func New(jobs []Job, log logger.Logger) *Scheduler {
	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))
	return &Scheduler{cron: c, jobs: jobs, logger: log}
}

// Start registers every job and starts the scheduler. Nothing is started if
// any schedule fails to parse.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Schedule, job.Run); err != nil {
			return fmt.Errorf("schedule %s job %q: %w", job.Name, job.Schedule, err)
		}
		s.logger.Info("Scheduled job", map[string]interface{}{
			"job":      job.Name,
			"schedule": job.Schedule,
		})
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger routes cron's own logging into the service logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, fields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	f := fields(keysAndValues)
	f["error"] = err.Error()
	l.log.Error("cron: "+msg, f)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
