// internal/domain/notification/outcome.go
package notification

import "time"

// Outcome is one audit event. Outcomes are appended to the journal and never changed.
type Outcome struct {
	Kind       OutcomeKind
	Timestamp  time.Time
	RunID      string
	Job        string // audit label of the job
	Rule       string
	Recipients RecipientSet
	Candidate  *Candidate
	Err        error
}

// RunSummary counts what one job run did.
type RunSummary struct {
	Candidates int
	Sent       int
	Failed     int // delivery failures plus Unmarked
	Unmarked   int // delivered but the sent flag could not be written
	Pinged     bool
	PingFailed bool
}

// Idle reports a quiet run: nothing qualified, nothing failed.
func (s RunSummary) Idle() bool {
	return s.Candidates == 0 && s.Failed == 0
}

// Degraded reports whether any delivery, mark or ping failed.
func (s RunSummary) Degraded() bool {
	return s.Failed > 0 || s.PingFailed
}

// Add merges the counts of another summary into s.
func (s *RunSummary) Add(o RunSummary) {
	s.Candidates += o.Candidates
	s.Sent += o.Sent
	s.Failed += o.Failed
	s.Unmarked += o.Unmarked
	s.Pinged = s.Pinged || o.Pinged
	s.PingFailed = s.PingFailed || o.PingFailed
}
