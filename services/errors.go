package services

import (
	"errors"
	"fmt"

	"lifeplanner-backend/models"
)

// RepositoryError wraps a failed read against the events/schedule store.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string { return fmt.Sprintf("repository %s: %v", e.Op, e.Err) }
func (e *RepositoryError) Unwrap() error { return e.Err }

// NotifierError is a failed outbound send. StatusCode is 0 when no response arrived.
type NotifierError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NotifierError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notifier: %v", e.Err)
	}
	return fmt.Sprintf("notifier: status %d: %s", e.StatusCode, e.Body)
}

func (e *NotifierError) Unwrap() error { return e.Err }

// LedgerWriteError means the send-once ledger could not be read or written for one subject.
type LedgerWriteError struct {
	Op        string
	SubjectID string
	Kind      models.ReminderKind
	Day       string
	Err       error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("ledger %s %s/%s/%s: %v", e.Op, e.SubjectID, e.Kind, e.Day, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

// ErrPassInProgress is returned when a manual run hits a tick that is still going.
var ErrPassInProgress = errors.New("reminder pass already running")
