package ingest

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler re-runs a file ingest on a cron spec. Overlapping runs are skipped,
// so there is never more than one writer.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	path   string
	spec   string
	entry  cron.EntryID
	logger *zap.SugaredLogger
}

func NewScheduler(runner *Runner, path, spec string, l *zap.SugaredLogger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(l.Desugar()))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner: runner,
		path:   path,
		spec:   spec,
		logger: l,
	}
}

// Start registers the job and starts the cron loop. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) })
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q", s.spec)
	}
	s.entry = id
	s.cron.Start()
	s.logger.Infow("ingest scheduled", "spec", s.spec, "file", s.path)
	return nil
}

// RunNow runs the scheduled job immediately through the same job chain, so it
// is skipped while a tick is running and a tick is skipped while it runs.
func (s *Scheduler) RunNow() error {
	e := s.cron.Entry(s.entry)
	if e.WrappedJob == nil {
		return errors.New("scheduler not started")
	}
	e.WrappedJob.Run()
	return nil
}

// Stop halts the cron loop and waits for a running ingest to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("ingest scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.runner.RunFile(ctx, s.path); err != nil {
		s.logger.Errorw("scheduled ingest failed", "file", s.path, "err", err)
	}
}
