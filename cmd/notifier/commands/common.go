package commands

import (
	"context"
	"io"

	"regulatory_notifier/internal/app"
	"regulatory_notifier/internal/domain/notification"
	"regulatory_notifier/internal/infra/auditlog"
	"regulatory_notifier/internal/infra/config"
	"regulatory_notifier/internal/infra/credential"
	"regulatory_notifier/internal/infra/database"
	"regulatory_notifier/internal/infra/logger"
	"regulatory_notifier/internal/infra/mail"
	"regulatory_notifier/internal/infra/telegram"
)

// newLauncher wires the production components. The returned journal must be
// closed by the caller.
func newLauncher(cfg *config.AppConfig) (*app.Launcher, *auditlog.Journal, error) {
	journal, err := auditlog.Open(cfg.AuditLogPath)
	if err != nil {
		return nil, nil, err
	}

	var alerter notification.Alerter
	if cfg.TelegramToken != "" {
		a, err := telegram.NewTelebotAlerter(cfg.TelegramToken, cfg.AlertTelegramChatID, logger.Log.WithField("component", "alerter"))
		if err != nil {
			journal.Close()
			return nil, nil, err
		}
		alerter = a
	}

	dialer := mail.NewDialer(mail.Config{
		Host:               cfg.SMTPHost,
		Port:               cfg.SMTPPort,
		Username:           cfg.SMTPUsername,
		SenderAddress:      cfg.SenderAddress,
		SenderName:         cfg.SenderName,
		InsecureSkipVerify: cfg.SMTPInsecureTLS,
	}, logger.Log.WithField("component", "mail"))

	launcher := app.NewLauncher(
		credential.FileSource{KeyPath: cfg.KeyFile, CredentialPath: cfg.CredentialFile},
		dialer,
		storeOpener(cfg),
		journal,
		alerter,
		app.NewNotifier(logger.Log.WithField("component", "notifier"), nil),
		app.Sender{From: cfg.SenderAddress, Admin: cfg.AdminAddress},
		logger.Log.WithField("component", "launcher"),
	)
	return launcher, journal, nil
}

// storeOpener connects to the configured database for one run.
func storeOpener(cfg *config.AppConfig) app.StoreOpener {
	return func(ctx context.Context) (notification.Repository, io.Closer, error) {
		dialect, err := database.DialectFor(cfg.DatabaseDriver)
		if err != nil {
			return nil, nil, err
		}
		db, err := database.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return database.NewExpiryRepository(db, dialect), db, nil
	}
}
