// internal/infra/database/project_renewal_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"regulatory_notifier/internal/domain/notification"
)

// listProjectRenewals returns one row per (renewal record, recipient address).
// Records without any recipient address are not returned.
func (r *ExpiryRepository) listProjectRenewals(ctx context.Context, rule notification.Rule, window notification.Window) ([]notification.Row, error) {
	s := rule.Schema
	q := newQuery(r.dialect)
	expiry := q.col("b", s.ExpiryColumn)

	fmt.Fprintf(q, "SELECT %s, %s, %s, %s, %s\n",
		q.col("b", s.SubjectColumn), q.col("b", s.DetailColumn), r.dialect.DateText(expiry),
		q.col("b", s.StatusColumn), q.col("e", s.AddressColumn))
	fmt.Fprintf(q, "FROM %s b INNER JOIN %s e ON %s = %s\n",
		q.dialect.Quote(s.Table), q.dialect.Quote(s.RecipientTable),
		q.col("b", s.SubjectColumn), q.col("e", s.SubjectColumn))
	fmt.Fprintf(q, "WHERE %s <= %s", expiry, q.date(window.Until))
	if window.From != nil {
		fmt.Fprintf(q, " AND %s >= %s", expiry, q.date(*window.From))
	}
	fmt.Fprintf(q, "\n  AND NOT COALESCE(%s, FALSE)", q.col("b", s.SentColumn))
	fmt.Fprintf(q, "\n  AND %s = %s", q.col("b", s.StatusColumn), q.arg(rule.RequiredStatus))
	fmt.Fprintf(q, "\nORDER BY %s, %s, %s", expiry, q.col("b", s.SubjectColumn), q.col("b", s.DetailColumn))

	rows, err := r.db.QueryContext(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("error querying candidates for rule %s: %w", rule.Name, err)
	}
	defer rows.Close()

	result := make([]notification.Row, 0)
	for rows.Next() {
		var (
			row     notification.Row
			expiryS string
			address sql.NullString
		)
		if err := rows.Scan(&row.SubjectID, &row.Detail, &expiryS, &row.Status, &address); err != nil {
			return nil, fmt.Errorf("error scanning candidate for rule %s: %w", rule.Name, err)
		}
		if row.ExpiryDate, err = parseDate(expiryS); err != nil {
			return nil, err
		}
		row.Address = address.String
		result = append(result, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates for rule %s: %w", rule.Name, err)
	}
	return result, nil
}

// markProjectRenewalQuery flips the sent flag, and applies the status transition,
// for the one renewal record behind the candidate. The status and sent-flag
// predicates keep a concurrent run from marking the same record twice.
func (r *ExpiryRepository) markProjectRenewalQuery(rule notification.Rule, c notification.Candidate) *query {
	s := rule.Schema
	q := newQuery(r.dialect)

	fmt.Fprintf(q, "UPDATE %s SET %s = TRUE", q.dialect.Quote(s.Table), q.col("", s.SentColumn))
	if rule.NextStatus != "" {
		fmt.Fprintf(q, ", %s = %s", q.col("", s.StatusColumn), q.arg(rule.NextStatus))
	}
	fmt.Fprintf(q, " WHERE %s = %s", q.col("", s.SubjectColumn), q.arg(c.SubjectID))
	fmt.Fprintf(q, " AND %s = %s", q.col("", s.DetailColumn), q.arg(c.Detail))
	fmt.Fprintf(q, " AND %s = %s", q.col("", s.ExpiryColumn), q.date(c.ExpiryDate))
	fmt.Fprintf(q, " AND %s = %s", q.col("", s.StatusColumn), q.arg(rule.RequiredStatus))
	fmt.Fprintf(q, " AND NOT COALESCE(%s, FALSE)", q.col("", s.SentColumn))
	return q
}
