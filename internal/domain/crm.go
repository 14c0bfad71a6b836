package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Contact is the CRM's view of a person, keyed by email within a location.
// It is a mirror of User that this service does not own.
type Contact struct {
	ID         string          `json:"id"`
	LocationID string          `json:"locationId,omitempty"`
	FirstName  string          `json:"firstName,omitempty"`
	LastName   string          `json:"lastName,omitempty"`
	Email      string          `json:"email,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	Source     string          `json:"source,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

type ContactInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	LocationID string
}

// SyncStatus tags the outcome of a best-effort CRM call.
type SyncStatus string

const (
	SyncOK               SyncStatus = "synced"
	SyncDisabled         SyncStatus = "disabled"
	SyncTransportFailure SyncStatus = "transport_failure"
	SyncTimeout          SyncStatus = "timeout"
	SyncRejected         SyncStatus = "rejected"
)

// SyncResult is returned instead of an error so callers can tell a disabled
// integration from a network problem or a remote refusal.
type SyncResult struct {
	Status     SyncStatus
	Contact    *Contact
	HTTPStatus int
	Err        error
}

func (r SyncResult) OK() bool { return r.Status == SyncOK }

// Enabled is false only when credentials were missing.
func (r SyncResult) Enabled() bool { return r.Status != SyncDisabled }

// Message is the human-readable failure reason, "" on success.
func (r SyncResult) Message() string {
	if r.OK() {
		return ""
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return fmt.Sprintf("CRM sync %s", r.Status)
}

// ErrCRMDisabled is the cause attached to SyncDisabled results.
type ErrCRMDisabled struct {
	Missing []string
}

func (e *ErrCRMDisabled) Error() string {
	msg := "Missing environment variables: "
	for i, m := range e.Missing {
		if i > 0 {
			msg += ", "
		}
		msg += m
	}
	return msg
}

// RemoteError is a non-2xx answer from the CRM.
type RemoteError struct {
	StatusCode int
	Message    string
	Body       json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("CRM responded %d: %s", e.StatusCode, e.Message)
}

// IsRemoteStatus reports whether err is a RemoteError with the given status.
func IsRemoteStatus(err error, status int) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == status
}
