package notification

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProjectRule() Rule {
	return Rule{
		Name: "needs-attention",
		Kind: KindProjectRenewal,
		Schema: Schema{
			Table:          "projectbodies",
			SubjectColumn:  "project",
			DetailColumn:   "regbody",
			ExpiryColumn:   "expirydate",
			StatusColumn:   "expirystatus",
			SentColumn:     "needsattentionsent",
			AddressColumn:  "emailaddress",
			RecipientTable: "projectemails",
		},
		DaysBeforeExpiry: 61,
		RequiredStatus:   "OK",
		NextStatus:       "Needs Attention",
		Subject:          "IRB Renewal Requires Your Attention",
		Body:             "Study {{.Project}} at {{.RegBody}} expires on {{.Expiry}}.",
	}
}

func testCertificateRule(days int) Rule {
	return Rule{
		Name: "apl-final",
		Kind: KindInvestigatorCertificate,
		Schema: Schema{
			Table:         "investigators",
			SubjectColumn: "investigator_id",
			DetailColumn:  "name",
			ExpiryColumn:  "apl_expiry_date",
			SentColumn:    "apl_30_day_sent",
			AddressColumn: "email_address",
		},
		DaysBeforeExpiry: days,
		Certificate:      "APL",
		Subject:          "Final reminder: {{.Certificate}} certificate expiry",
		Body:             "Dear {{.Name}}, your {{.Certificate}} certificate expires on {{.Expiry}}.",
	}
}

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRuleWindow_SevenDayExample(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	w := testCertificateRule(7).Window(now)

	require.NotNil(t, w.From)
	assert.Equal(t, "2024-01-01", w.From.Format(dateLayout))
	assert.Equal(t, "2024-01-08", w.Until.Format(dateLayout))

	assert.True(t, w.Contains(day("2024-01-05")), "4 days out qualifies")
	assert.False(t, w.Contains(day("2024-01-10")), "9 days out is beyond the threshold")
	assert.True(t, w.Contains(day("2024-01-08")), "upper bound is inclusive")
	assert.False(t, w.Contains(day("2023-12-31")), "no past-due certificate notices")
}

func TestRuleWindow_ProjectRulesAreUnboundedBelow(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	w := testProjectRule().Window(now)

	assert.Nil(t, w.From)
	assert.True(t, w.Contains(day("2020-01-01")))
	assert.True(t, w.Contains(day("2024-05-15")))
	assert.False(t, w.Contains(day("2024-05-16")))
}

func TestRuleValidate(t *testing.T) {
	require.NoError(t, testProjectRule().Validate())
	require.NoError(t, testCertificateRule(30).Validate())

	tests := []struct {
		name   string
		mutate func(r *Rule)
	}{
		{"missing name", func(r *Rule) { r.Name = "" }},
		{"negative threshold", func(r *Rule) { r.DaysBeforeExpiry = -1 }},
		{"unknown kind", func(r *Rule) { r.Kind = "weekly" }},
		{"injection-shaped table", func(r *Rule) { r.Schema.Table = "projectbodies; DROP TABLE x" }},
		{"quoted column", func(r *Rule) { r.Schema.SentColumn = `"sent"` }},
		{"missing recipient table", func(r *Rule) { r.Schema.RecipientTable = "" }},
		{"missing required status", func(r *Rule) { r.RequiredStatus = "" }},
		{"broken body template", func(r *Rule) { r.Body = "{{.Project" }},
		{"empty subject", func(r *Rule) { r.Subject = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testProjectRule()
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRule))
		})
	}

	r := testCertificateRule(7)
	r.Certificate = ""
	assert.ErrorIs(t, r.Validate(), ErrInvalidRule)
}

func TestJobValidate(t *testing.T) {
	job := Job{
		Name:  "investigator-final",
		Ping:  Ping{Subject: "No final reminders today", Recipients: []string{"ops@example.org"}},
		Rules: []Rule{testCertificateRule(7)},
	}
	require.NoError(t, job.Validate())
	assert.Equal(t, "INVESTIGATOR-FINAL", job.AuditLabel())

	job.Rules = append(job.Rules, testCertificateRule(7))
	assert.ErrorIs(t, job.Validate(), ErrInvalidRule, "duplicate rule names are rejected")

	heartbeat := Job{Name: "ping", Label: "PING", Ping: Ping{Subject: "Automated ping", Recipients: []string{"ops@example.org"}}}
	require.NoError(t, heartbeat.Validate())

	heartbeat.Ping.Recipients = nil
	assert.ErrorIs(t, heartbeat.Validate(), ErrInvalidRule)
}
