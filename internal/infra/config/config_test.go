package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"regulatory_notifier/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/regulatory?sslmode=disable")
	t.Setenv("SENDER_ADDRESS", "reg@example.org")
	t.Setenv("PING_ADDRESSES", "ops@example.org, oncall@example.org;")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "smtp.dreamhost.com", cfg.SMTPHost)
	assert.Equal(t, 465, cfg.SMTPPort)
	assert.Equal(t, "reg@example.org", cfg.SMTPUsername)
	assert.Equal(t, []string{"ops@example.org", "oncall@example.org"}, cfg.PingAddresses)
	assert.Equal(t, "key.key", cfg.KeyFile)
	assert.Equal(t, "CredFile.ini", cfg.CredentialFile)
	assert.Equal(t, "regulatory.log", cfg.AuditLogPath)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.TelegramToken)
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "SQLITE3")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_USERNAME", "login@example.org")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("ALERT_TELEGRAM_CHAT_ID", "-100123")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "login@example.org", cfg.SMTPUsername)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(-100123), cfg.AlertTelegramChatID)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing database url", "DATABASE_URL", ""},
		{"missing sender", "SENDER_ADDRESS", ""},
		{"missing ping addresses", "PING_ADDRESSES", " , "},
		{"bad driver", "DATABASE_DRIVER", "mssql"},
		{"bad port", "SMTP_PORT", "smtp"},
		{"bad timeout", "RUN_TIMEOUT", "soon"},
		{"bad chat id", "ALERT_TELEGRAM_CHAT_ID", "abc"},
		{"token without chat", "TELEGRAM_TOKEN", "token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func testConfig() *AppConfig {
	return &AppConfig{PingAddresses: []string{"ops@example.org"}}
}

func TestDefaultJobs(t *testing.T) {
	jobs, err := LoadJobs("", testConfig())
	require.NoError(t, err)

	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name)
		assert.Equal(t, []string{"ops@example.org"}, j.Ping.Recipients)
	}
	assert.Equal(t, []string{"needs-attention", "critical", "investigator-reminder", "investigator-final", "ping"}, names)

	final, err := FindJob(jobs, "investigator-final")
	require.NoError(t, err)
	require.Len(t, final.Rules, 3)
	assert.Equal(t, "apl_30_day_sent", final.Rules[0].Schema.SentColumn)
	assert.Equal(t, 7, final.Rules[2].DaysBeforeExpiry)
	assert.Equal(t, "HSP", final.Rules[2].Certificate)

	critical, err := FindJob(jobs, "critical")
	require.NoError(t, err)
	require.Len(t, critical.Rules, 1)
	assert.Equal(t, "projectbodies", critical.Rules[0].Schema.Table)
	assert.Equal(t, "expirydate", critical.Rules[0].Schema.ExpiryColumn)
	assert.Equal(t, "criticalsent", critical.Rules[0].Schema.SentColumn)

	ping, err := FindJob(jobs, "ping")
	require.NoError(t, err)
	assert.Empty(t, ping.Rules)

	_, err = FindJob(jobs, "nope")
	assert.Error(t, err)
}

func TestDefaultJobs_RenderOriginalCopy(t *testing.T) {
	jobs := DefaultJobs(testConfig())
	c := notification.Candidate{
		SubjectID:  "MALARIA-01",
		Detail:     "UNCST",
		ExpiryDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Recipients: notification.NewRecipientSet("pi@example.org"),
	}
	msg, err := notification.Render(jobs[0].Rules[0], c, "reg@example.org")
	require.NoError(t, err)
	assert.Equal(t, "IRB Renewal Requires Your Attention", msg.Subject)
	assert.Contains(t, msg.Body, "your study: 'MALARIA-01' is due for annual renewal submission at: UNCST")
	assert.Contains(t, msg.Body, "expires on: 2024-02-01.")

	c = notification.Candidate{Detail: "Jane Doe", Certificate: "GCP", ExpiryDate: c.ExpiryDate}
	msg, err = notification.Render(jobs[3].Rules[1], c, "reg@example.org")
	require.NoError(t, err)
	assert.Equal(t, "Final reminder: GCP certificate expiry", msg.Subject)
	assert.Contains(t, msg.Body, "Dear Jane Doe,")
}

const rulesYAML = `
jobs:
  - name: sops-review
    label: SOP REVIEW
    schedule: "0 8 * * 1"
    ping:
      subject: No SOP reviews this week
      body: Nothing to review.
    rules:
      - name: sop-review
        kind: project_renewal
        days_before_expiry: 14
        required_status: OK
        subject: "SOP review due: {{.Project}}"
        body: "{{.Project}} expires {{.Expiry}}"
        schema:
          table: sops
          subject_column: sop
          detail_column: owner
          expiry_column: review_date
          status_column: state
          sent_column: review_sent
          address_column: emailaddress
          recipient_table: sopemails
  - name: weekly-ping
    ping:
      subject: Still alive
      recipients: [admin@example.org]
`

func TestLoadJobs_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0o600))

	jobs, err := LoadJobs(path, testConfig())
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "SOP REVIEW", jobs[0].AuditLabel())
	assert.Equal(t, []string{"ops@example.org"}, jobs[0].Ping.Recipients, "inherits PING_ADDRESSES")
	require.Len(t, jobs[0].Rules, 1)
	assert.Equal(t, notification.KindProjectRenewal, jobs[0].Rules[0].Kind)
	assert.Equal(t, "sopemails", jobs[0].Rules[0].Schema.RecipientTable)

	assert.Equal(t, []string{"admin@example.org"}, jobs[1].Ping.Recipients)
	assert.Equal(t, "WEEKLY-PING", jobs[1].AuditLabel())
}

func TestLoadJobs_Rejects(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	_, err := LoadJobs(filepath.Join(dir, "missing.yaml"), testConfig())
	assert.Error(t, err)

	_, err = LoadJobs(write("empty.yaml", "jobs: []\n"), testConfig())
	assert.Error(t, err)

	_, err = LoadJobs(write("bad.yaml", "jobs: [\n"), testConfig())
	assert.Error(t, err)

	dup := "jobs:\n  - name: a\n    ping: {subject: x}\n  - name: a\n    ping: {subject: y}\n"
	_, err = LoadJobs(write("dup.yaml", dup), testConfig())
	assert.ErrorIs(t, err, notification.ErrInvalidRule)

	inject := `
jobs:
  - name: evil
    ping: {subject: x}
    rules:
      - name: evil
        kind: investigator_certificate
        certificate: APL
        subject: s
        body: b
        schema:
          table: "investigators; DROP TABLE investigators"
          subject_column: id
          detail_column: name
          expiry_column: d
          sent_column: s
          address_column: e
`
	_, err = LoadJobs(write("inject.yaml", inject), testConfig())
	assert.ErrorIs(t, err, notification.ErrInvalidRule)
}
