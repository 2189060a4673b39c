package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/service"
)

type EventService interface {
	HandleEvent(ctx context.Context, event service.Event) ([]domain.NotificationJob, error)
}

type EventHandler struct {
	service EventService
}

func NewEventHandler(service EventService) (*EventHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("event service is required")
	}
	return &EventHandler{service: service}, nil
}

func RegisterEventRoutes(router fiber.Router, service EventService) error {
	h, err := NewEventHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/events", h.PublishEvent)

	return nil
}

type publishEventRequest struct {
	Type       string         `json:"type"`
	EventID    string         `json:"eventId"`
	UserID     string         `json:"userId"`
	CampaignID string         `json:"campaignId"`
	Locale     string         `json:"locale"`
	Data       map[string]any `json:"data"`
}

type publishEventResponse struct {
	Status    string   `json:"status"`
	EventID   string   `json:"eventId"`
	JobsCount int      `json:"jobsCount"`
	JobIDs    []string `json:"jobIds,omitempty"`
}

func (h *EventHandler) PublishEvent(c *fiber.Ctx) error {
	var req publishEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	event := service.Event{
		Type:       strings.TrimSpace(req.Type),
		EventID:    strings.TrimSpace(req.EventID),
		UserID:     strings.TrimSpace(req.UserID),
		CampaignID: strings.TrimSpace(req.CampaignID),
		Locale:     strings.TrimSpace(req.Locale),
		Data:       req.Data,
	}

	jobs, err := h.service.HandleEvent(c.Context(), event)
	if err != nil {
		return toHTTPError(err)
	}

	jobIDs := make([]string, 0, len(jobs))
	for i := range jobs {
		jobIDs = append(jobIDs, jobs[i].JobID)
	}

	eventID := event.EventID
	if len(jobs) > 0 {
		eventID = jobs[0].Meta.EventID
	}

	return c.Status(fiber.StatusAccepted).JSON(publishEventResponse{
		Status:    "accepted",
		EventID:   eventID,
		JobsCount: len(jobs),
		JobIDs:    jobIDs,
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
