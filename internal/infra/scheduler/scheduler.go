package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"regulatory_notifier/internal/domain/notification"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// JobRunner executes one pass of a job.
type JobRunner interface {
	Execute(ctx context.Context, job notification.Job) (notification.RunSummary, error)
}

// NotificationScheduler runs every job that has a cron schedule. A job whose
// previous run is still in progress skips the tick.
type NotificationScheduler struct {
	cronEngine *cron.Cron
	runner     JobRunner
	jobs       []notification.Job
	runTimeout time.Duration
	logger     *logrus.Entry
}

func NewNotificationScheduler(
	runner JobRunner,
	jobs []notification.Job,
	runTimeout time.Duration,
	logger *logrus.Entry,
	opts ...cron.Option,
) *NotificationScheduler {
	opts = append([]cron.Option{
		cron.WithLocation(time.Local), // Use server's local time for cron
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
	}, opts...)
	return &NotificationScheduler{
		cronEngine: cron.New(opts...),
		runner:     runner,
		jobs:       jobs,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start registers the scheduled jobs and starts the engine. It fails if no job
// has a schedule or a schedule does not parse.
func (s *NotificationScheduler) Start() error {
	s.logger.Info("Starting notification scheduler...")

	registered := 0
	for _, job := range s.jobs {
		if job.Schedule == "" {
			s.logger.WithField("job", job.Name).Debug("Job has no schedule, not registered")
			continue
		}
		job := job // per-iteration copy (go directive < 1.22 shares loop variables)
		if _, err := s.cronEngine.AddFunc(job.Schedule, func() { s.execute(job) }); err != nil {
			return fmt.Errorf("could not add cron job %s (%q): %w", job.Name, job.Schedule, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.Name, "schedule": job.Schedule}).Info("Job scheduled")
		registered++
	}
	if registered == 0 {
		return errors.New("no job has a schedule")
	}

	s.cronEngine.Start()
	s.logger.Infof("Notification scheduler started with %d jobs.", registered)
	return nil
}

func (s *NotificationScheduler) execute(job notification.Job) {
	log := s.logger.WithField("job", job.Name)
	log.Info("Cron job triggered")

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	summary, err := s.runner.Execute(ctx, job)
	switch {
	case errors.Is(err, notification.ErrDegraded):
		log.WithError(err).Warn("Run finished degraded")
	case err != nil:
		log.WithError(err).Error("Run failed")
	default:
		log.WithFields(logrus.Fields{"sent": summary.Sent, "pinged": summary.Pinged}).Info("Run completed")
	}
}

// Stop stops scheduling new runs and waits for running jobs to finish.
func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Notification scheduler gracefully stopped.")
}
