// internal/domain/notification/rule.go
package notification

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidRule is wrapped by every rule validation failure.
var ErrInvalidRule = fmt.Errorf("invalid notification rule")

// Schema names the table and columns a rule reads and writes.
// Identifiers are validated, never taken from user input at run time.
type Schema struct {
	Table          string `yaml:"table"`
	SubjectColumn  string `yaml:"subject_column"` // project, or investigator_id
	DetailColumn   string `yaml:"detail_column"`  // regbody, or the investigator name
	ExpiryColumn   string `yaml:"expiry_column"`
	StatusColumn   string `yaml:"status_column,omitempty"`
	SentColumn     string `yaml:"sent_column"`
	AddressColumn  string `yaml:"address_column"`
	RecipientTable string `yaml:"recipient_table,omitempty"` // project rules only
}

// Rule is the static configuration of one notification tier.
type Rule struct {
	Name             string `yaml:"name"`
	Kind             Kind   `yaml:"kind"`
	Schema           Schema `yaml:"schema"`
	DaysBeforeExpiry int    `yaml:"days_before_expiry"`
	RequiredStatus   string `yaml:"required_status,omitempty"`
	NextStatus       string `yaml:"next_status,omitempty"`
	Certificate      string `yaml:"certificate,omitempty"`
	Subject          string `yaml:"subject"`
	Body             string `yaml:"body"`
}

// Window is the inclusive range of expiry dates a rule selects.
// A nil From means the range is unbounded below.
type Window struct {
	From  *time.Time
	Until time.Time
}

// Window computes the expiry window for a run at now. Only the calendar date of
// now is used, matching a whole-day DATEDIFF.
func (r Rule) Window(now time.Time) Window {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	w := Window{Until: today.AddDate(0, 0, r.DaysBeforeExpiry)}
	if r.Kind == KindInvestigatorCertificate {
		w.From = &today
	}
	return w
}

// Contains reports whether an expiry date falls inside the window.
func (w Window) Contains(expiry time.Time) bool {
	day := expiry.Format(dateLayout)
	if w.From != nil && day < w.From.Format(dateLayout) {
		return false
	}
	return day <= w.Until.Format(dateLayout)
}

// Validate checks identifiers, thresholds and templates.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if r.DaysBeforeExpiry < 0 {
		return fmt.Errorf("%w: %s: days_before_expiry must not be negative", ErrInvalidRule, r.Name)
	}

	required := map[string]string{
		"table":          r.Schema.Table,
		"subject_column": r.Schema.SubjectColumn,
		"detail_column":  r.Schema.DetailColumn,
		"expiry_column":  r.Schema.ExpiryColumn,
		"sent_column":    r.Schema.SentColumn,
		"address_column": r.Schema.AddressColumn,
	}
	switch r.Kind {
	case KindProjectRenewal:
		required["status_column"] = r.Schema.StatusColumn
		required["recipient_table"] = r.Schema.RecipientTable
		if r.RequiredStatus == "" {
			return fmt.Errorf("%w: %s: required_status is required for %s rules", ErrInvalidRule, r.Name, r.Kind)
		}
	case KindInvestigatorCertificate:
		if r.Certificate == "" {
			return fmt.Errorf("%w: %s: certificate is required for %s rules", ErrInvalidRule, r.Name, r.Kind)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidRule, r.Name, r.Kind)
	}
	for field, ident := range required {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("%w: %s: %s %q is not a valid identifier", ErrInvalidRule, r.Name, field, ident)
		}
	}
	if r.Schema.StatusColumn != "" && !identifierPattern.MatchString(r.Schema.StatusColumn) {
		return fmt.Errorf("%w: %s: status_column %q is not a valid identifier", ErrInvalidRule, r.Name, r.Schema.StatusColumn)
	}

	if r.Subject == "" || r.Body == "" {
		return fmt.Errorf("%w: %s: subject and body are required", ErrInvalidRule, r.Name)
	}
	if _, err := parseTemplate("subject", r.Subject); err != nil {
		return fmt.Errorf("%w: %s: subject template: %v", ErrInvalidRule, r.Name, err)
	}
	if _, err := parseTemplate("body", r.Body); err != nil {
		return fmt.Errorf("%w: %s: body template: %v", ErrInvalidRule, r.Name, err)
	}
	return nil
}

// Ping is the fallback notice sent when a run delivers nothing.
type Ping struct {
	Subject    string   `yaml:"subject"`
	Body       string   `yaml:"body"`
	Recipients []string `yaml:"recipients,omitempty"`
}

// Job is what one scheduled invocation executes: its rules in order, then at
// most one ping. A job without rules only sends its ping.
type Job struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`              // audit log prefix, e.g. NEEDS ATTENTION
	Schedule string `yaml:"schedule,omitempty"` // cron spec for daemon mode
	Ping     Ping   `yaml:"ping"`
	Rules    []Rule `yaml:"rules"`
}

// Validate checks the job and every rule in it.
func (j Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("%w: job name is required", ErrInvalidRule)
	}
	if j.Ping.Subject == "" {
		return fmt.Errorf("%w: job %s: ping subject is required", ErrInvalidRule, j.Name)
	}
	if len(j.Ping.Recipients) == 0 {
		return fmt.Errorf("%w: job %s: at least one ping recipient is required", ErrInvalidRule, j.Name)
	}
	seen := make(map[string]bool, len(j.Rules))
	for _, r := range j.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: job %s: duplicate rule %s", ErrInvalidRule, j.Name, r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// AuditLabel is the prefix used on audit lines; defaults to the upper-cased job name.
func (j Job) AuditLabel() string {
	if j.Label != "" {
		return j.Label
	}
	return strings.ToUpper(j.Name)
}
