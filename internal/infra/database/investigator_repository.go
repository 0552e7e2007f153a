// internal/infra/database/investigator_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"regulatory_notifier/internal/domain/notification"
)

// listInvestigatorCertificates returns investigators whose certificate expires
// inside the window, skipping rows without an email address.
func (r *ExpiryRepository) listInvestigatorCertificates(ctx context.Context, rule notification.Rule, window notification.Window) ([]notification.Row, error) {
	s := rule.Schema
	q := newQuery(r.dialect)
	expiry := q.col("i", s.ExpiryColumn)
	email := q.col("i", s.AddressColumn)

	fmt.Fprintf(q, "SELECT %s, %s, %s, %s\n",
		q.col("i", s.SubjectColumn), q.col("i", s.DetailColumn), r.dialect.DateText(expiry), email)
	fmt.Fprintf(q, "FROM %s i\n", q.dialect.Quote(s.Table))
	fmt.Fprintf(q, "WHERE %s IS NOT NULL AND %s IS NOT NULL AND TRIM(%s) <> ''\n", expiry, email, email)
	if window.From != nil {
		fmt.Fprintf(q, "  AND %s >= %s", expiry, q.date(*window.From))
	}
	fmt.Fprintf(q, " AND %s <= %s", expiry, q.date(window.Until))
	fmt.Fprintf(q, "\n  AND NOT COALESCE(%s, FALSE)", q.col("i", s.SentColumn))
	fmt.Fprintf(q, "\nORDER BY %s, %s", expiry, q.col("i", s.SubjectColumn))

	rows, err := r.db.QueryContext(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("error querying candidates for rule %s: %w", rule.Name, err)
	}
	defer rows.Close()

	result := make([]notification.Row, 0)
	for rows.Next() {
		var (
			row     notification.Row
			name    sql.NullString
			expiryS string
		)
		if err := rows.Scan(&row.SubjectID, &name, &expiryS, &row.Address); err != nil {
			return nil, fmt.Errorf("error scanning candidate for rule %s: %w", rule.Name, err)
		}
		if row.ExpiryDate, err = parseDate(expiryS); err != nil {
			return nil, err
		}
		row.Detail = name.String
		result = append(result, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates for rule %s: %w", rule.Name, err)
	}
	return result, nil
}

// markInvestigatorCertificateQuery sets the certificate's sent flag for one investigator.
func (r *ExpiryRepository) markInvestigatorCertificateQuery(rule notification.Rule, c notification.Candidate) *query {
	s := rule.Schema
	q := newQuery(r.dialect)
	fmt.Fprintf(q, "UPDATE %s SET %s = TRUE WHERE %s = %s AND NOT COALESCE(%s, FALSE)",
		q.dialect.Quote(s.Table), q.col("", s.SentColumn),
		q.col("", s.SubjectColumn), q.arg(c.SubjectID), q.col("", s.SentColumn))
	return q
}
