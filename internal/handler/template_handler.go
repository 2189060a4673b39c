package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/repository"
)

type TemplateHandler struct {
	templates repository.TemplateRepository
}

func NewTemplateHandler(templates repository.TemplateRepository) (*TemplateHandler, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	return &TemplateHandler{templates: templates}, nil
}

func RegisterTemplateRoutes(router fiber.Router, templates repository.TemplateRepository) error {
	h, err := NewTemplateHandler(templates)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/templates", h.CreateTemplate)
	v1.Get("/templates", h.ListTemplates)
	v1.Get("/templates/:code", h.GetTemplate)

	return nil
}

type createTemplateRequest struct {
	Code    string  `json:"code"`
	Locale  string  `json:"locale"`
	Channel string  `json:"channel"`
	Subject *string `json:"subject"`
	Body    string  `json:"body"`
}

type templateResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Locale    string    `json:"locale"`
	Channel   string    `json:"channel"`
	Subject   *string   `json:"subject,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (h *TemplateHandler) CreateTemplate(c *fiber.Ctx) error {
	var req createTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, ok := domain.NormalizeChannel(req.Channel)
	if !ok {
		return toHTTPError(fmt.Errorf("unknown channel %q: %w", req.Channel, domain.ErrValidation))
	}

	now := time.Now().UTC()
	template := domain.Template{
		ID:        uuid.NewString(),
		Code:      strings.TrimSpace(req.Code),
		Locale:    strings.TrimSpace(req.Locale),
		Channel:   channel,
		Subject:   req.Subject,
		Body:      req.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if template.Locale == "" {
		template.Locale = "en"
	}

	if err := template.Validate(); err != nil {
		return toHTTPError(err)
	}

	if err := h.templates.Create(c.Context(), &template); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toTemplateResponse(template))
}

func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))

	locale := strings.TrimSpace(c.Query("locale", "en"))
	channel, ok := domain.NormalizeChannel(c.Query("channel", "email"))
	if !ok {
		return toHTTPError(fmt.Errorf("unknown channel: %w", domain.ErrValidation))
	}

	template, err := h.templates.Lookup(c.Context(), code, locale, channel)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(*template))
}

func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	templates, err := h.templates.List(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]templateResponse, 0, len(templates))
	for i := range templates {
		responses = append(responses, toTemplateResponse(templates[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": responses,
	})
}

func toTemplateResponse(t domain.Template) templateResponse {
	return templateResponse{
		ID:        t.ID,
		Code:      t.Code,
		Locale:    t.Locale,
		Channel:   t.Channel.String(),
		Subject:   t.Subject,
		Body:      t.Body,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
