// internal/domain/notification/shared_types.go
package notification

// Kind selects the query shape and grouping key of a rule.
type Kind string

const (
	// KindProjectRenewal joins renewal records with the project recipient table
	// and groups by project, regulatory body and expiry date.
	KindProjectRenewal Kind = "project_renewal"
	// KindInvestigatorCertificate reads one certificate column per investigator
	// and groups by investigator.
	KindInvestigatorCertificate Kind = "investigator_certificate"
)

// OutcomeKind is the audit event recorded for a candidate, a ping or the run itself.
type OutcomeKind string

const (
	OutcomeSent          OutcomeKind = "sent"
	OutcomeFailed        OutcomeKind = "failed"
	OutcomeUnmarked      OutcomeKind = "unmarked" // mail went out but the sent flag was not written
	OutcomePing          OutcomeKind = "ping"
	OutcomePingFailed    OutcomeKind = "ping_failed"
	OutcomeProcessFailed OutcomeKind = "process_failed"
)

const dateLayout = "2006-01-02"
