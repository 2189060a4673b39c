package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CampaignStatus represents the lifecycle state of a marketing campaign.
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "ACTIVE"
	CampaignStatusInactive CampaignStatus = "INACTIVE"
	CampaignStatusPaused   CampaignStatus = "PAUSED"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusActive, CampaignStatusInactive, CampaignStatusPaused:
		return true
	}
	return false
}

func ParseCampaignStatusFromString(s string) (CampaignStatus, error) {
	st := CampaignStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign status %q", ErrValidation, s)
	}
	return st, nil
}

// scheduleParser accepts the standard 5-field cron syntax.
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Campaign is a scheduled marketing campaign. Only the trigger transition
// mutates it; creation and editing are administrative concerns.
type Campaign struct {
	ID              string
	Name            string
	TemplateCode    string
	SegmentID       string
	ScheduleCron    string
	Status          CampaignStatus
	LastTriggeredAt *time.Time
	RunsCount       int
	MaxRuns         *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsDue decides whether the campaign should fire at now: never when the run
// cap is reached or the schedule does not parse, always on the first run,
// otherwise when the next cron fire time after the last trigger is at or
// before now.
func (c Campaign) IsDue(now time.Time) (bool, error) {
	if c.Status != CampaignStatusActive {
		return false, nil
	}
	if c.MaxRuns != nil && c.RunsCount >= *c.MaxRuns {
		return false, nil
	}
	schedule, err := scheduleParser.Parse(c.ScheduleCron)
	if err != nil {
		return false, fmt.Errorf("%w: invalid schedule %q: %v", ErrValidation, c.ScheduleCron, err)
	}

	if c.LastTriggeredAt == nil {
		return true, nil
	}

	next := schedule.Next(*c.LastTriggeredAt)
	return !next.After(now), nil
}
