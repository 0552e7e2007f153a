// internal/app/notification_service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"regulatory_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// RunContext carries everything one job run needs. It is built by the caller
// for each run; the Notifier holds no per-run state.
type RunContext struct {
	RunID   string
	Job     notification.Job
	Store   notification.Repository
	Mailer  notification.Mailer
	Journal notification.Journal
	Now     time.Time // evaluation time for expiry windows
	From    string    // sender address
	Admin   string    // copied on every candidate email when set
}

// Notifier executes the rules of a job against a store and a mailer.
type Notifier struct {
	logger *logrus.Entry
	clock  notification.Clock
}

func NewNotifier(logger *logrus.Entry, clock notification.Clock) *Notifier {
	if clock == nil {
		clock = time.Now
	}
	return &Notifier{logger: logger, clock: clock}
}

// Run evaluates every rule of the job in order and sends one email per
// candidate group. A group is marked sent only after its email was delivered.
// When nothing was sent the job's ping goes out once.
//
// A failing candidate query aborts the run with a *notification.DataStoreError.
// Delivery and marking failures are recorded and counted; the run continues.
func (n *Notifier) Run(ctx context.Context, rc RunContext) (notification.RunSummary, error) {
	var summary notification.RunSummary
	label := rc.Job.AuditLabel()
	log := n.logger.WithFields(logrus.Fields{"job": rc.Job.Name, "run_id": rc.RunID})

	for _, rule := range rc.Job.Rules {
		ruleLog := log.WithField("rule", rule.Name)
		window := rule.Window(rc.Now)

		rows, err := rc.Store.ListCandidateRows(ctx, rule, window)
		if err != nil {
			err = &notification.DataStoreError{Op: "query " + rule.Name, Err: err}
			ruleLog.WithError(err).Error("Candidate query failed, aborting run")
			n.record(rc, log, notification.Outcome{
				Kind: notification.OutcomeProcessFailed,
				Job:  label,
				Rule: rule.Name,
				Err:  err,
			})
			return summary, err
		}

		rows = withinWindow(rows, window, ruleLog)
		candidates := notification.GroupRows(rule, rows, rc.Admin)
		ruleLog.WithFields(logrus.Fields{
			"rows":       len(rows),
			"candidates": len(candidates),
			"until":      window.Until.Format("2006-01-02"),
		}).Info("Evaluated rule")
		summary.Candidates += len(candidates)

		for i := range candidates {
			if err := ctx.Err(); err != nil {
				ruleLog.WithError(err).Warn("Run cancelled before all candidates were processed")
				n.record(rc, log, notification.Outcome{
					Kind: notification.OutcomeProcessFailed,
					Job:  label,
					Rule: rule.Name,
					Err:  err,
				})
				return summary, err
			}
			summary.Add(n.notify(ctx, rc, rule, candidates[i], ruleLog))
		}
	}

	if summary.Sent == 0 {
		summary.Add(n.ping(rc, summary, log))
	}

	log.WithFields(logrus.Fields{
		"candidates": summary.Candidates,
		"sent":       summary.Sent,
		"failed":     summary.Failed,
		"unmarked":   summary.Unmarked,
		"pinged":     summary.Pinged,
	}).Info("Run finished")
	return summary, nil
}

// withinWindow drops rows whose expiry falls outside the rule's window.
func withinWindow(rows []notification.Row, w notification.Window, log *logrus.Entry) []notification.Row {
	kept := make([]notification.Row, 0, len(rows))
	for _, row := range rows {
		if !w.Contains(row.ExpiryDate) {
			log.WithFields(logrus.Fields{
				"subject": row.SubjectID,
				"expiry":  row.ExpiryDate.Format("2006-01-02"),
			}).Warn("Store returned a row outside the expiry window, skipping")
			continue
		}
		kept = append(kept, row)
	}
	return kept
}

// notify delivers one candidate and marks it sent.
func (n *Notifier) notify(ctx context.Context, rc RunContext, rule notification.Rule, c notification.Candidate, log *logrus.Entry) notification.RunSummary {
	log = log.WithField("subject", c.SubjectID)
	outcome := notification.Outcome{
		Job:        rc.Job.AuditLabel(),
		Rule:       rule.Name,
		Recipients: c.Recipients,
		Candidate:  &c,
	}

	msg, err := notification.Render(rule, c, rc.From)
	if err == nil {
		err = rc.Mailer.Send(msg)
	}
	if err != nil {
		log.WithError(err).Error("Failed to send notification")
		outcome.Kind = notification.OutcomeFailed
		outcome.Err = err
		n.record(rc, log, outcome)
		return notification.RunSummary{Failed: 1}
	}

	if err := rc.Store.MarkSent(ctx, rule, c); err != nil {
		// The recipients have the email; the record stays a candidate and
		// will be sent again unless an operator sets the flag.
		log.WithError(err).Error("Notification sent but the record could not be marked")
		outcome.Kind = notification.OutcomeUnmarked
		outcome.Err = &notification.DataStoreError{Op: "mark " + rule.Name, Err: err}
		n.record(rc, log, outcome)
		return notification.RunSummary{Failed: 1, Unmarked: 1}
	}

	log.WithField("to", c.Recipients.String()).Info("Notification sent")
	outcome.Kind = notification.OutcomeSent
	n.record(rc, log, outcome)
	return notification.RunSummary{Sent: 1}
}

// ping sends the job's fallback notice. A run whose candidates all failed gets
// a degraded notice instead of the quiet-day text.
func (n *Notifier) ping(rc RunContext, summary notification.RunSummary, log *logrus.Entry) notification.RunSummary {
	msg := pingMessage(rc.Job, summary, rc.From)
	outcome := notification.Outcome{
		Job:        rc.Job.AuditLabel(),
		Recipients: msg.To,
	}

	if err := rc.Mailer.Send(msg); err != nil {
		log.WithError(err).Error("Failed to send ping")
		outcome.Kind = notification.OutcomePingFailed
		outcome.Err = err
		n.record(rc, log, outcome)
		return notification.RunSummary{PingFailed: true}
	}

	log.WithField("to", msg.To.String()).Info("Ping sent")
	outcome.Kind = notification.OutcomePing
	n.record(rc, log, outcome)
	return notification.RunSummary{Pinged: true}
}

func pingMessage(job notification.Job, summary notification.RunSummary, from string) notification.Message {
	msg := notification.Message{
		From:    from,
		To:      notification.NewRecipientSet(job.Ping.Recipients...),
		Subject: job.Ping.Subject,
		Body:    job.Ping.Body,
	}
	if summary.Idle() {
		return msg
	}

	msg.Subject = fmt.Sprintf("%s run degraded: %d of %d notifications failed", job.AuditLabel(), summary.Failed, summary.Candidates)
	var b strings.Builder
	fmt.Fprintf(&b, "The %s job found %d candidate(s) but sent none.\n", job.Name, summary.Candidates)
	fmt.Fprintf(&b, "Delivery failures: %d\n", summary.Failed-summary.Unmarked)
	fmt.Fprintf(&b, "Sent but not marked: %d\n", summary.Unmarked)
	b.WriteString("\nSee the audit log for the affected records. Unsent records will be retried on the next run.\n")
	msg.Body = b.String()
	return msg
}

// record appends o to the journal. A journal failure is logged, never fatal.
func (n *Notifier) record(rc RunContext, log *logrus.Entry, o notification.Outcome) {
	o.Timestamp = n.clock()
	o.RunID = rc.RunID
	if err := rc.Journal.Record(o); err != nil {
		log.WithError(err).WithField("outcome", o.Kind).Error("Failed to write audit log line")
	}
}
