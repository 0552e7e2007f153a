// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"regulatory_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// messageSender is the part of *telebot.Bot the alerter uses.
type messageSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAlerter implements notification.Alerter by messaging an operator chat
// through the gopkg.in/telebot.v3 library.
type TelebotAlerter struct {
	bot    messageSender
	chatID int64
	logger *logrus.Entry
}

// NewTelebotAlerter builds an alerter for chatID. The bot is created offline:
// it only sends and never polls for updates.
func NewTelebotAlerter(token string, chatID int64, logger *logrus.Entry) (*TelebotAlerter, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := telebot.NewBot(telebot.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelebotAlerter{bot: b, chatID: chatID, logger: logger}, nil
}

// Alert sends a short report of a fatal or degraded run.
func (a *TelebotAlerter) Alert(ctx context.Context, job string, summary notification.RunSummary, runErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := formatAlert(job, summary, runErr)
	if _, err := a.bot.Send(&telebot.Chat{ID: a.chatID}, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	a.logger.WithField("job", job).Info("Operator alert sent")
	return nil
}

func formatAlert(job string, summary notification.RunSummary, runErr error) string {
	state := "FAILED"
	if errors.Is(runErr, notification.ErrDegraded) {
		state = "DEGRADED"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Regulatory notifier: job %s %s\n", job, state)
	if runErr != nil {
		fmt.Fprintf(&b, "Error: %v\n", runErr)
	}
	fmt.Fprintf(&b, "Candidates: %d, sent: %d, failed: %d, unmarked: %d", summary.Candidates, summary.Sent, summary.Failed, summary.Unmarked)
	if summary.PingFailed {
		b.WriteString("\nPing could not be sent.")
	}
	return b.String()
}
