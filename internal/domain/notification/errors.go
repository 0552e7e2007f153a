// internal/domain/notification/errors.go
package notification

import (
	"errors"
	"fmt"
)

// ErrDegraded is returned by a run that finished but had at least one failure.
var ErrDegraded = errors.New("notification run degraded")

// CredentialError means the mail password could not be loaded or decrypted.
// It is fatal before any query or mail session.
type CredentialError struct {
	Path string
	Err  error
}

func (e *CredentialError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("credential: %v", e.Err)
	}
	return fmt.Sprintf("credential %s: %v", e.Path, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// DataStoreError covers connection, query and update failures.
type DataStoreError struct {
	Op  string
	Err error
}

func (e *DataStoreError) Error() string { return fmt.Sprintf("data store %s: %v", e.Op, e.Err) }

func (e *DataStoreError) Unwrap() error { return e.Err }

// TransportError covers SMTP connect, login and per-message failures.
// Stage is "login" for session start and "send" for one message.
type TransportError struct {
	Stage string
	Err   error
}

func (e *TransportError) Error() string { return fmt.Sprintf("mail %s: %v", e.Stage, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// IsFatalTransport reports whether err is a session-start mail failure.
func IsFatalTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Stage == StageLogin
}

const (
	StageLogin = "login"
	StageSend  = "send"
)
