// internal/infra/database/expiry_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"regulatory_notifier/internal/domain/notification"
)

// Custom errors specific to the expiry repository
var ErrNothingMarked = fmt.Errorf("no record matched the sent-flag update")
var ErrUnsupportedKind = fmt.Errorf("unsupported rule kind")

const dateLayout = "2006-01-02"

// ExpiryRepository reads expiry candidates and writes sent flags for any rule,
// building its SQL from the rule's validated schema.
type ExpiryRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewExpiryRepository(db *sql.DB, dialect Dialect) *ExpiryRepository {
	return &ExpiryRepository{db: db, dialect: dialect}
}

// ListCandidateRows implements notification.Repository.
func (r *ExpiryRepository) ListCandidateRows(ctx context.Context, rule notification.Rule, window notification.Window) ([]notification.Row, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	switch rule.Kind {
	case notification.KindProjectRenewal:
		return r.listProjectRenewals(ctx, rule, window)
	case notification.KindInvestigatorCertificate:
		return r.listInvestigatorCertificates(ctx, rule, window)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, rule.Kind)
	}
}

// MarkSent implements notification.Repository.
func (r *ExpiryRepository) MarkSent(ctx context.Context, rule notification.Rule, c notification.Candidate) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	var q *query
	switch rule.Kind {
	case notification.KindProjectRenewal:
		q = r.markProjectRenewalQuery(rule, c)
	case notification.KindInvestigatorCertificate:
		q = r.markInvestigatorCertificateQuery(rule, c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, rule.Kind)
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for mark sent: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	res, err := txn.ExecContext(ctx, q.String(), q.args...)
	if err != nil {
		return fmt.Errorf("error marking %s sent for %s: %w", rule.Name, c.SubjectID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for %s: %w", rule.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w (rule %s, subject %s)", ErrNothingMarked, rule.Name, c.SubjectID)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("error committing mark sent for %s: %w", c.SubjectID, err)
	}
	return nil
}

// query accumulates SQL text and its bind arguments in order of appearance.
type query struct {
	strings.Builder
	dialect Dialect
	args    []any
}

func newQuery(d Dialect) *query { return &query{dialect: d} }

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return q.dialect.Placeholder(len(q.args))
}

func (q *query) date(t time.Time) string {
	q.args = append(q.args, t.Format(dateLayout))
	return q.dialect.DateParam(len(q.args))
}

func (q *query) col(alias, ident string) string {
	if alias == "" {
		return q.dialect.Quote(ident)
	}
	return alias + "." + q.dialect.Quote(ident)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected expiry date %q: %w", s, err)
	}
	return t, nil
}
