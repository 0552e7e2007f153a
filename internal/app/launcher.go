// internal/app/launcher.go
package app

import (
	"context"
	"fmt"
	"io"

	"regulatory_notifier/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CredentialSource yields the mail password.
type CredentialSource interface {
	Password() (string, error)
}

// MailDialer opens one authenticated mail session.
type MailDialer interface {
	Dial(password string) (notification.MailSession, error)
}

// StoreOpener connects to the data store. The closer releases the connection.
type StoreOpener func(ctx context.Context) (notification.Repository, io.Closer, error)

// Sender identifies the outgoing mailbox and the administrative copy address.
type Sender struct {
	From  string
	Admin string
}

// Launcher acquires the resources of one run, hands them to the Notifier and
// releases them afterwards. Acquisition order is credential, mail session,
// data store; release runs in reverse.
type Launcher struct {
	credentials CredentialSource
	dialer      MailDialer
	openStore   StoreOpener
	journal     notification.Journal
	alerter     notification.Alerter // optional
	notifier    *Notifier
	sender      Sender
	clock       notification.Clock
	logger      *logrus.Entry
}

func NewLauncher(
	credentials CredentialSource,
	dialer MailDialer,
	openStore StoreOpener,
	journal notification.Journal,
	alerter notification.Alerter,
	notifier *Notifier,
	sender Sender,
	logger *logrus.Entry,
) *Launcher {
	return &Launcher{
		credentials: credentials,
		dialer:      dialer,
		openStore:   openStore,
		journal:     journal,
		alerter:     alerter,
		notifier:    notifier,
		sender:      sender,
		clock:       notifier.clock,
		logger:      logger,
	}
}

// Execute runs job once. It returns a fatal error (credential, login, data
// store) or an error wrapping notification.ErrDegraded when the run finished
// with failures.
func (l *Launcher) Execute(ctx context.Context, job notification.Job) (notification.RunSummary, error) {
	runID := uuid.NewString()
	log := l.logger.WithFields(logrus.Fields{"job": job.Name, "run_id": runID})
	log.Info("Process started")

	password, err := l.credentials.Password()
	if err != nil {
		return notification.RunSummary{}, l.fail(ctx, job, runID, err)
	}

	session, err := l.dialer.Dial(password)
	if err != nil {
		if !notification.IsFatalTransport(err) {
			err = &notification.TransportError{Stage: notification.StageLogin, Err: err}
		}
		return notification.RunSummary{}, l.fail(ctx, job, runID, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).Warn("Failed to close mail session")
		}
	}()

	// A ping-only job never touches the data store.
	var store notification.Repository
	if len(job.Rules) > 0 {
		repo, closer, err := l.openStore(ctx)
		if err != nil {
			return notification.RunSummary{}, l.fail(ctx, job, runID, &notification.DataStoreError{Op: "connect", Err: err})
		}
		defer func() {
			if err := closer.Close(); err != nil {
				log.WithError(err).Warn("Failed to close data store")
			}
		}()
		store = repo
	}

	summary, err := l.notifier.Run(ctx, RunContext{
		RunID:   runID,
		Job:     job,
		Store:   store,
		Mailer:  session,
		Journal: l.journal,
		Now:     l.clock(),
		From:    l.sender.From,
		Admin:   l.sender.Admin,
	})
	if err != nil {
		l.alert(ctx, job, summary, err)
		return summary, err
	}
	if summary.Degraded() {
		err = fmt.Errorf("%w: %s: %d failed, %d sent", notification.ErrDegraded, job.Name, summary.Failed, summary.Sent)
		l.alert(ctx, job, summary, err)
		return summary, err
	}
	return summary, nil
}

// fail records a process failure that happened before rules were evaluated.
func (l *Launcher) fail(ctx context.Context, job notification.Job, runID string, err error) error {
	l.logger.WithFields(logrus.Fields{"job": job.Name, "run_id": runID}).WithError(err).Error("Process failed")
	o := notification.Outcome{
		Kind:      notification.OutcomeProcessFailed,
		Timestamp: l.clock(),
		RunID:     runID,
		Job:       job.AuditLabel(),
		Err:       err,
	}
	if jerr := l.journal.Record(o); jerr != nil {
		l.logger.WithError(jerr).Error("Failed to write audit log line")
	}
	l.alert(ctx, job, notification.RunSummary{}, err)
	return err
}

func (l *Launcher) alert(ctx context.Context, job notification.Job, summary notification.RunSummary, runErr error) {
	if l.alerter == nil {
		return
	}
	if err := l.alerter.Alert(ctx, job.Name, summary, runErr); err != nil {
		l.logger.WithField("job", job.Name).WithError(err).Warn("Failed to alert operator")
	}
}
