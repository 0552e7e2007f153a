// internal/domain/notification/message.go
package notification

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Message is one outbound email.
type Message struct {
	From    string
	To      RecipientSet
	Subject string
	Body    string
}

// Render builds the email for a candidate from the rule's subject and body templates.
// Templates see the Candidate, e.g. {{.Project}}, {{.RegBody}}, {{.Name}},
// {{.Certificate}} and {{.Expiry}}, plus the sprig functions such as
// {{dateInZone "02 Jan 2006" .ExpiryDate "UTC"}}.
func Render(rule Rule, c Candidate, from string) (Message, error) {
	subject, err := execute("subject", rule.Subject, c)
	if err != nil {
		return Message{}, fmt.Errorf("rendering subject for rule %s: %w", rule.Name, err)
	}
	body, err := execute("body", rule.Body, c)
	if err != nil {
		return Message{}, fmt.Errorf("rendering body for rule %s: %w", rule.Name, err)
	}
	return Message{
		From:    from,
		To:      c.Recipients,
		Subject: strings.TrimSpace(subject),
		Body:    body,
	}, nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
}

func execute(name, text string, data any) (string, error) {
	tmpl, err := parseTemplate(name, text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
