// internal/infra/telegram/operator_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"regulatory_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// JobRunner executes one pass of a job.
type JobRunner interface {
	Execute(ctx context.Context, job notification.Job) (notification.RunSummary, error)
}

// NewOperatorBot creates a long-polling bot for operator commands.
func NewOperatorBot(token string, logger *logrus.Entry) (*telebot.Bot, error) {
	pref := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

// OperatorCommands answers /help, /jobs and /run in the operator chat only.
type OperatorCommands struct {
	runner     JobRunner
	jobs       []notification.Job
	chatID     int64
	runTimeout time.Duration
	logger     *logrus.Entry
}

func NewOperatorCommands(runner JobRunner, jobs []notification.Job, chatID int64, runTimeout time.Duration, logger *logrus.Entry) *OperatorCommands {
	return &OperatorCommands{runner: runner, jobs: jobs, chatID: chatID, runTimeout: runTimeout, logger: logger}
}

// Register installs the command handlers on b.
func (o *OperatorCommands) Register(b *telebot.Bot) {
	b.Handle("/help", o.handleHelp)
	b.Handle("/jobs", o.handleJobs)
	b.Handle("/run", o.handleRun)
}

func (o *OperatorCommands) authorized(c telebot.Context, command string) (*logrus.Entry, bool) {
	handlerLogger := o.logger.WithField("handler", command)
	if c.Sender() != nil {
		handlerLogger = handlerLogger.WithField("sender_id", c.Sender().ID)
	}
	if c.Chat() == nil || c.Chat().ID != o.chatID {
		handlerLogger.Warn("Unauthorized access attempt")
		return handlerLogger, false
	}
	handlerLogger.Info("Command received")
	return handlerLogger, true
}

func (o *OperatorCommands) handleHelp(c telebot.Context) error {
	if _, ok := o.authorized(c, "/help"); !ok {
		return c.Send("This bot only answers the operator chat.")
	}
	var helpText strings.Builder
	helpText.WriteString("Operator commands:\n\n")
	helpText.WriteString("/jobs - list the configured jobs\n")
	helpText.WriteString("/run <job> - run a job now\n")
	helpText.WriteString("/help - show this message")
	return c.Send(helpText.String())
}

func (o *OperatorCommands) handleJobs(c telebot.Context) error {
	if _, ok := o.authorized(c, "/jobs"); !ok {
		return c.Send("This bot only answers the operator chat.")
	}
	var b strings.Builder
	for _, j := range o.jobs {
		schedule := j.Schedule
		if schedule == "" {
			schedule = "manual"
		}
		fmt.Fprintf(&b, "%s (%s): %d rule(s)\n", j.Name, schedule, len(j.Rules))
	}
	if b.Len() == 0 {
		return c.Send("No jobs configured.")
	}
	return c.Send(strings.TrimRight(b.String(), "\n"))
}

func (o *OperatorCommands) handleRun(c telebot.Context) error {
	handlerLogger, ok := o.authorized(c, "/run")
	if !ok {
		return c.Send("This bot only answers the operator chat.")
	}

	args := c.Args()
	// Expected format: /run <job>
	if len(args) != 1 {
		return c.Send("Usage: /run <job>")
	}
	var job *notification.Job
	for i := range o.jobs {
		if o.jobs[i].Name == args[0] {
			job = &o.jobs[i]
			break
		}
	}
	if job == nil {
		handlerLogger.WithField("job", args[0]).Warn("Unknown job requested")
		return c.Send(fmt.Sprintf("Unknown job %q. Use /jobs to list them.", args[0]))
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.runTimeout)
	defer cancel()

	handlerLogger = handlerLogger.WithField("job", job.Name)
	summary, err := o.runner.Execute(ctx, *job)
	switch {
	case errors.Is(err, notification.ErrDegraded):
		handlerLogger.WithError(err).Warn("Manual run degraded")
		return c.Send(formatAlert(job.Name, summary, err))
	case err != nil:
		handlerLogger.WithError(err).Error("Manual run failed")
		return c.Send(formatAlert(job.Name, summary, err))
	}
	handlerLogger.Info("Manual run completed")
	return c.Send(fmt.Sprintf("%s: %d candidate(s), %d sent, pinged=%t", job.Name, summary.Candidates, summary.Sent, summary.Pinged))
}
