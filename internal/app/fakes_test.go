package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"regulatory_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func fixedClock(t time.Time) notification.Clock {
	return func() time.Time { return t }
}

var runDay = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeRecord is one investigator certificate row with its sent flag.
type fakeRecord struct {
	ID        string
	Name      string
	Expiry    time.Time
	Addresses []string
	Sent      bool
}

// fakeStore keeps records in memory and applies the rule window like the SQL does.
type fakeStore struct {
	mu       sync.Mutex
	records  []*fakeRecord
	stray    []notification.Row // returned as is, ignoring the window
	queryErr error
	markErr  map[string]error
	queries  int
}

func newFakeStore(records ...*fakeRecord) *fakeStore {
	return &fakeStore{records: records, markErr: map[string]error{}}
}

func (s *fakeStore) ListCandidateRows(_ context.Context, _ notification.Rule, w notification.Window) ([]notification.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var rows []notification.Row
	for _, r := range s.records {
		if r.Sent || !w.Contains(r.Expiry) {
			continue
		}
		for _, a := range r.Addresses {
			rows = append(rows, notification.Row{SubjectID: r.ID, Detail: r.Name, ExpiryDate: r.Expiry, Address: a})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ExpiryDate.Before(rows[j].ExpiryDate) })
	return append(rows, s.stray...), nil
}

func (s *fakeStore) MarkSent(_ context.Context, _ notification.Rule, c notification.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.markErr[c.SubjectID]; err != nil {
		return err
	}
	for _, r := range s.records {
		if r.ID == c.SubjectID && !r.Sent {
			r.Sent = true
			return nil
		}
	}
	return errors.New("nothing marked")
}

func (s *fakeStore) sent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r.Sent
		}
	}
	return false
}

// fakeMailer records messages and fails any message addressed to a failing address.
type fakeMailer struct {
	mu       sync.Mutex
	messages []notification.Message
	failTo   map[string]bool
	failAll  bool
	closed   int
	events   *[]string
}

func (m *fakeMailer) Send(msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return &notification.TransportError{Stage: notification.StageSend, Err: errors.New("421 service not available")}
	}
	for _, a := range msg.To.Slice() {
		if m.failTo[a] {
			return &notification.TransportError{Stage: notification.StageSend, Err: fmt.Errorf("550 mailbox unavailable: %s", a)}
		}
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *fakeMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	if m.events != nil {
		*m.events = append(*m.events, "close mail")
	}
	return nil
}

func (m *fakeMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, msg.Subject)
	}
	return out
}

type fakeJournal struct {
	mu       sync.Mutex
	outcomes []notification.Outcome
	err      error
}

func (j *fakeJournal) Record(o notification.Outcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.outcomes = append(j.outcomes, o)
	return nil
}

func (j *fakeJournal) kinds() []notification.OutcomeKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]notification.OutcomeKind, 0, len(j.outcomes))
	for _, o := range j.outcomes {
		out = append(out, o.Kind)
	}
	return out
}

type fakeAlerter struct {
	calls []error
}

func (a *fakeAlerter) Alert(_ context.Context, _ string, _ notification.RunSummary, runErr error) error {
	a.calls = append(a.calls, runErr)
	return nil
}

func finalReminderJob() notification.Job {
	return notification.Job{
		Name:  "investigator-final",
		Label: "INVESTIGATOR FINAL",
		Ping: notification.Ping{
			Subject:    "No final investigator reminder emails today!",
			Body:       "There are no final investigator reminder emails to send out today.",
			Recipients: []string{"ops@example.org"},
		},
		Rules: []notification.Rule{{
			Name: "investigator-final-apl",
			Kind: notification.KindInvestigatorCertificate,
			Schema: notification.Schema{
				Table:         "investigators",
				SubjectColumn: "investigator_id",
				DetailColumn:  "name",
				ExpiryColumn:  "apl_expiry_date",
				SentColumn:    "apl_30_day_sent",
				AddressColumn: "email_address",
			},
			DaysBeforeExpiry: 7,
			Certificate:      "APL",
			Subject:          "Final reminder: {{.Certificate}} certificate expiry",
			Body:             "Dear {{.Name}}, your {{.Certificate}} certificate expires on {{.Expiry}}.",
		}},
	}
}
