// internal/domain/notification/candidate.go
package notification

import (
	"strings"
	"time"
)

// Row is one record returned by a rule's candidate query. Project rules return
// one row per recipient address.
type Row struct {
	SubjectID  string    // project name, or investigator id
	Detail     string    // regulatory body, or investigator name
	ExpiryDate time.Time // date only
	Status     string
	Address    string
}

// Candidate is one group of rows that receives a single email.
type Candidate struct {
	Rule        string
	SubjectID   string
	Detail      string
	Certificate string
	ExpiryDate  time.Time
	Status      string
	Recipients  RecipientSet
}

// Expiry renders the expiry date as YYYY-MM-DD for templates and logs.
func (c Candidate) Expiry() string {
	return c.ExpiryDate.Format(dateLayout)
}

// Project is the template alias for SubjectID on project rules.
func (c Candidate) Project() string { return c.SubjectID }

// RegBody is the template alias for Detail on project rules.
func (c Candidate) RegBody() string { return c.Detail }

// Name is the template alias for Detail on investigator rules.
func (c Candidate) Name() string { return c.Detail }

// groupKey identifies the rows that collapse into one email.
func groupKey(kind Kind, row Row) string {
	if kind == KindProjectRenewal {
		return row.SubjectID + "\x00" + row.Detail + "\x00" + row.ExpiryDate.Format(dateLayout)
	}
	return row.SubjectID
}

// GroupRows collapses query rows into candidates, one per grouping key, in
// order of first appearance. admin is added to every recipient set when set.
func GroupRows(rule Rule, rows []Row, admin string) []Candidate {
	index := make(map[string]int, len(rows))
	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		key := groupKey(rule.Kind, row)
		i, ok := index[key]
		if !ok {
			i = len(candidates)
			index[key] = i
			candidates = append(candidates, Candidate{
				Rule:        rule.Name,
				SubjectID:   row.SubjectID,
				Detail:      row.Detail,
				Certificate: rule.Certificate,
				ExpiryDate:  row.ExpiryDate,
				Status:      row.Status,
			})
		}
		candidates[i].Recipients.Add(row.Address)
	}
	if admin != "" {
		for i := range candidates {
			candidates[i].Recipients.Add(admin)
		}
	}
	return candidates
}

// RecipientSet is an insertion-ordered set of addresses keyed case-insensitively.
// The zero value is ready to use.
type RecipientSet struct {
	keys  map[string]struct{}
	addrs []string
}

// NewRecipientSet builds a set from addresses, skipping blanks and duplicates.
func NewRecipientSet(addrs ...string) RecipientSet {
	var s RecipientSet
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add inserts addr unless it is blank or already present. It reports whether
// the set changed.
func (s *RecipientSet) Add(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	key := strings.ToLower(addr)
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.addrs = append(s.addrs, addr)
	return true
}

// Contains reports whether addr is in the set, ignoring case.
func (s RecipientSet) Contains(addr string) bool {
	_, ok := s.keys[strings.ToLower(strings.TrimSpace(addr))]
	return ok
}

// Len returns the number of distinct addresses.
func (s RecipientSet) Len() int { return len(s.addrs) }

// Slice returns a copy of the addresses in insertion order.
func (s RecipientSet) Slice() []string {
	out := make([]string, len(s.addrs))
	copy(out, s.addrs)
	return out
}

// String joins the addresses with ';' as the audit log shows them.
func (s RecipientSet) String() string {
	return strings.Join(s.addrs, ";")
}
