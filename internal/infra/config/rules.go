package config

import (
	"fmt"
	"os"

	"regulatory_notifier/internal/domain/notification"

	"gopkg.in/yaml.v3"
)

const renewalBody = `Dear PIs and Study Coordinator:

This is a reminder from the IDRC Regulatory Core team that your study: '{{.Project}}' is due for annual renewal submission at: {{.RegBody}}. The current approval for this study expires on: {{.Expiry}}.

Please send the annual report to the IDRC regulatory team as soon as possible to ensure that your study's approval will not lapse. If you require a copy of last year's submission, please contact Faith Kagoya at fkagoya@idrc-uganda.org.

We appreciate you urgent attention to this matter!

IDRC Reg Team - Bridget, Faith and Emma

**NOTE: This is an auto-generated email, please do not reply.
`

const reminderBody = `Dear {{.Name}},

This is a reminder that your {{.Certificate}} certificate is expiring on {{.Expiry}}.
Please complete renewal before expiry and share updated documentation with the Regulatory team.

**NOTE: This is an auto-generated email, please do not reply.
`

const finalReminderBody = `Dear {{.Name}},

This is your final reminder that your {{.Certificate}} certificate is expiring on {{.Expiry}}.
Please complete renewal immediately and share updated documentation with the Regulatory team.

**NOTE: This is an auto-generated email, please do not reply.
`

func projectSchema(sentColumn string) notification.Schema {
	return notification.Schema{
		Table:          "projectbodies",
		SubjectColumn:  "project",
		DetailColumn:   "regbody",
		ExpiryColumn:   "expirydate",
		StatusColumn:   "expirystatus",
		SentColumn:     sentColumn,
		AddressColumn:  "emailaddress",
		RecipientTable: "projectemails",
	}
}

// certificateRules builds one rule per certificate type sharing a threshold.
// sentSuffix selects the flag column family, e.g. "60_day_sent".
func certificateRules(prefix string, days int, sentSuffix, subject, body string) []notification.Rule {
	certs := []struct{ label, column string }{
		{"APL", "apl"},
		{"GCP", "gcp"},
		{"HSP", "hsp"},
	}
	rules := make([]notification.Rule, 0, len(certs))
	for _, c := range certs {
		rules = append(rules, notification.Rule{
			Name: prefix + "-" + c.column,
			Kind: notification.KindInvestigatorCertificate,
			Schema: notification.Schema{
				Table:         "investigators",
				SubjectColumn: "investigator_id",
				DetailColumn:  "name",
				ExpiryColumn:  c.column + "_expiry_date",
				SentColumn:    c.column + "_" + sentSuffix,
				AddressColumn: "email_address",
			},
			DaysBeforeExpiry: days,
			Certificate:      c.label,
			Subject:          subject,
			Body:             body,
		})
	}
	return rules
}

// DefaultJobs returns the built-in notification jobs, with ping recipients
// taken from the configuration.
func DefaultJobs(cfg *AppConfig) []notification.Job {
	jobs := []notification.Job{
		{
			Name:     "needs-attention",
			Label:    "NEEDS ATTENTION",
			Schedule: "0 7 * * *",
			Ping: notification.Ping{
				Subject: "No Needs Attention emails today!",
				Body:    "There are no 'Needs Attention' emails to send out today.",
			},
			Rules: []notification.Rule{{
				Name:             "needs-attention",
				Kind:             notification.KindProjectRenewal,
				Schema:           projectSchema("needsattentionsent"),
				DaysBeforeExpiry: 61,
				RequiredStatus:   "OK",
				NextStatus:       "Needs Attention",
				Subject:          "IRB Renewal Requires Your Attention",
				Body:             renewalBody,
			}},
		},
		{
			Name:     "critical",
			Label:    "CRITICAL",
			Schedule: "5 7 * * *",
			Ping: notification.Ping{
				Subject: "No critical emails today!",
				Body:    "There are no critical emails to send out today.",
			},
			Rules: []notification.Rule{{
				Name: "critical",
				Kind: notification.KindProjectRenewal,
				// Sites that still keep this tier in irb_submissions.expiry_date
				// must point the rule there with a RULES_FILE.
				Schema:           projectSchema("criticalsent"),
				DaysBeforeExpiry: 31,
				RequiredStatus:   "Needs Attention",
				NextStatus:       "Critical",
				Subject:          "IRB Renewal: Immediate Action Needed",
				Body:             renewalBody,
			}},
		},
		{
			Name:     "investigator-reminder",
			Label:    "INVESTIGATOR REMINDER",
			Schedule: "10 7 * * *",
			Ping: notification.Ping{
				Subject: "No investigator reminder emails today!",
				Body:    "There are no investigator reminder emails to send out today.",
			},
			Rules: certificateRules("investigator-reminder", 30, "60_day_sent",
				"{{.Certificate}} certificate expiry reminder", reminderBody),
		},
		{
			Name:     "investigator-final",
			Label:    "INVESTIGATOR FINAL",
			Schedule: "15 7 * * *",
			Ping: notification.Ping{
				Subject: "No final investigator reminder emails today!",
				Body:    "There are no final investigator reminder emails to send out today.",
			},
			Rules: certificateRules("investigator-final", 7, "30_day_sent",
				"Final reminder: {{.Certificate}} certificate expiry", finalReminderBody),
		},
		{
			Name:     "ping",
			Label:    "PING",
			Schedule: "0 6 * * *",
			Ping: notification.Ping{
				Subject: "Automated ping from server",
				Body:    "This is a test email from the regulatory notifier - testing if automated tasks are running.",
			},
		},
	}
	for i := range jobs {
		jobs[i].Ping.Recipients = append([]string(nil), cfg.PingAddresses...)
	}
	return jobs
}

// rulesFile is the YAML layout of RULES_FILE.
type rulesFile struct {
	Jobs []notification.Job `yaml:"jobs"`
}

// LoadJobs returns the built-in jobs when path is empty, otherwise the jobs
// defined in the YAML file at path. Jobs without ping recipients inherit
// PING_ADDRESSES. Every job is validated.
func LoadJobs(path string, cfg *AppConfig) ([]notification.Job, error) {
	var jobs []notification.Job
	if path == "" {
		jobs = DefaultJobs(cfg)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file: %w", err)
		}
		var f rulesFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
		}
		if len(f.Jobs) == 0 {
			return nil, fmt.Errorf("rules file %s defines no jobs", path)
		}
		jobs = f.Jobs
		for i := range jobs {
			if len(jobs[i].Ping.Recipients) == 0 {
				jobs[i].Ping.Recipients = append([]string(nil), cfg.PingAddresses...)
			}
		}
	}

	seen := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, err
		}
		if seen[j.Name] {
			return nil, fmt.Errorf("%w: duplicate job %s", notification.ErrInvalidRule, j.Name)
		}
		seen[j.Name] = true
	}
	return jobs, nil
}

// FindJob returns the job called name.
func FindJob(jobs []notification.Job, name string) (notification.Job, error) {
	for _, j := range jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return notification.Job{}, fmt.Errorf("unknown job %q", name)
}
