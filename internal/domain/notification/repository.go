// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository reads candidates and records deliveries in the data store.
type Repository interface {
	// ListCandidateRows returns the unsent rows of rule whose expiry is inside window.
	ListCandidateRows(ctx context.Context, rule Rule, window Window) ([]Row, error)
	// MarkSent sets the rule's sent flag (and status transition, if any) for exactly
	// the records behind c, in one committed transaction.
	MarkSent(ctx context.Context, rule Rule, c Candidate) error
}

// Mailer delivers one message.
type Mailer interface {
	Send(msg Message) error
}

// MailSession is an authenticated mail connection held for one run.
type MailSession interface {
	Mailer
	Close() error
}

// Journal is the append-only audit log.
type Journal interface {
	Record(o Outcome) error
}

// Alerter notifies an operator about fatal or degraded runs.
type Alerter interface {
	Alert(ctx context.Context, job string, summary RunSummary, runErr error) error
}

// Clock returns the current time.
type Clock func() time.Time
