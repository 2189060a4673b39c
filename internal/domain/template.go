package domain

import (
	"fmt"
	"strings"
	"time"
)

// Template is a message template addressed by (code, locale, channel).
// Read-only from the pipeline's perspective.
type Template struct {
	ID        string
	Code      string
	Locale    string
	Channel   Channel
	Subject   *string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Template) Validate() error {
	if strings.TrimSpace(t.Code) == "" {
		return fmt.Errorf("%w: template code is required", ErrValidation)
	}
	if strings.TrimSpace(t.Locale) == "" {
		return fmt.Errorf("%w: template locale is required", ErrValidation)
	}
	if !t.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, t.Channel)
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("%w: template body is required", ErrValidation)
	}
	return nil
}

// UserContacts holds the delivery addresses resolved for a user. Empty string
// means the address is absent. Resolved per attempt, never cached.
type UserContacts struct {
	UserID      string
	Email       string
	PushToken   string
	WSSessionID string
}
