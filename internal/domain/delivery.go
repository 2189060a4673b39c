package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a delivery record.
//
// RETRYING is the only non-terminal status; SENT, FAILED and EXPIRED are
// terminal and no transition ever leaves them.
type Status string

const (
	StatusRetrying Status = "RETRYING"
	StatusSent     Status = "SENT"
	StatusFailed   Status = "FAILED"
	StatusExpired  Status = "EXPIRED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusRetrying, StatusSent, StatusFailed, StatusExpired:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusSent, StatusFailed, StatusExpired:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryRecord is the per-job idempotent outcome record (the ledger).
// Exactly one record exists per job id; attempts never decrease across
// writes, and SentAt is set iff the status is SENT.
type DeliveryRecord struct {
	JobID        string
	UserID       string
	Channel      Channel
	Status       Status
	Attempts     int
	ErrorCode    *string
	ErrorMessage *string
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeliveryAttempt is one immutable audit row per send attempt.
type DeliveryAttempt struct {
	ID            string
	JobID         string
	AttemptNumber int
	Error         *string
	CreatedAt     time.Time
}
