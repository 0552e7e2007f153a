// Package auditlog writes the shared, append-only plaintext audit file. Each
// outcome becomes exactly one line: "YYYY-MM-DD HH:MM:SS LABEL EVENT key=value ...".
package auditlog

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"regulatory_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is the layout of the leading timestamp on every line.
const TimestampFormat = "2006-01-02 15:04:05"

// Journal formats outcomes with a logrus formatter and appends them to the
// audit file, one Write per line.
type Journal struct {
	log    *logrus.Logger
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
}

// Open opens path for appending, creating it if needed. The file is never truncated.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	j := New(f)
	j.closer = f
	return j, nil
}

// New writes audit lines to w.
func New(w io.Writer) *Journal {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&lineFormatter{})
	return &Journal{log: l, out: w}
}

// Close releases the underlying file, if any.
func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// Record appends one line for o and returns any write error.
func (j *Journal) Record(o notification.Outcome) error {
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fields := logrus.Fields{}
	if o.RunID != "" {
		fields["run"] = o.RunID
	}
	if o.Rule != "" {
		fields["rule"] = o.Rule
	}
	if o.Recipients.Len() > 0 {
		fields["to"] = o.Recipients.String()
	}
	if c := o.Candidate; c != nil {
		fields["subject"] = c.SubjectID
		if c.Detail != "" {
			fields["detail"] = c.Detail
		}
		if c.Certificate != "" {
			fields["cert"] = c.Certificate
		}
		fields["expiry"] = c.Expiry()
	}
	if o.Err != nil {
		fields["error"] = o.Err.Error()
	}

	entry := j.log.WithTime(ts).WithFields(fields)
	entry.Message = strings.TrimSpace(o.Job + " " + eventText(o.Kind))
	entry.Level = logrus.InfoLevel
	if o.Kind == notification.OutcomeFailed || o.Kind == notification.OutcomeUnmarked ||
		o.Kind == notification.OutcomePingFailed || o.Kind == notification.OutcomeProcessFailed {
		entry.Level = logrus.ErrorLevel
	}

	line, err := j.log.Formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("formatting audit line: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.out.Write(line); err != nil {
		return fmt.Errorf("writing audit line: %w", err)
	}
	return nil
}

func eventText(k notification.OutcomeKind) string {
	switch k {
	case notification.OutcomeSent:
		return "EMAIL SENT"
	case notification.OutcomeFailed:
		return "EMAIL FAILED"
	case notification.OutcomeUnmarked:
		return "EMAIL SENT BUT NOT MARKED"
	case notification.OutcomePing:
		return "PING SENT"
	case notification.OutcomePingFailed:
		return "PING FAILED"
	case notification.OutcomeProcessFailed:
		return "PROCESS FAILED"
	default:
		return strings.ToUpper(string(k))
	}
}

// lineFormatter renders one entry as a single line. Field values containing
// spaces are quoted; newlines are escaped so an entry never spans two lines.
type lineFormatter struct{}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(e.Time.Format(TimestampFormat))
	b.WriteByte(' ')
	b.WriteString(oneLine(e.Message))

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := oneLine(fmt.Sprint(e.Data[k]))
		if strings.ContainsAny(v, " \t\"") {
			v = fmt.Sprintf("%q", v)
		}
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", `\r`, "\n", `\n`).Replace(s)
}
