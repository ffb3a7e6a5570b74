package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vialog/nfe-tracker/internal/domain"
)

type CarrierAdmin interface {
	SetCapability(ctx context.Context, carrierName string, ownedByEngine bool) error
	List(ctx context.Context) ([]domain.CarrierCapability, error)
}

type OccurrenceAdmin interface {
	ListOccurrenceCodes(ctx context.Context) ([]domain.OccurrenceCode, error)
	SetCategory(ctx context.Context, code string, category domain.Status) error
}

// TableReloader refreshes the classifier's in-memory occurrence table after
// an administrative change. Optional; nil when the pattern classifier is
// configured.
type TableReloader interface {
	Reload(ctx context.Context) error
}

// AdminHandler manages carrier ownership and occurrence-code categories.
type AdminHandler struct {
	carriers    CarrierAdmin
	occurrences OccurrenceAdmin
	reloader    TableReloader
}

func NewAdminHandler(carriers CarrierAdmin, occurrences OccurrenceAdmin, reloader TableReloader) (*AdminHandler, error) {
	if carriers == nil {
		return nil, fmt.Errorf("carrier repository is required")
	}
	if occurrences == nil {
		return nil, fmt.Errorf("occurrence repository is required")
	}
	return &AdminHandler{carriers: carriers, occurrences: occurrences, reloader: reloader}, nil
}

func RegisterAdminRoutes(router fiber.Router, carriers CarrierAdmin, occurrences OccurrenceAdmin, reloader TableReloader) error {
	h, err := NewAdminHandler(carriers, occurrences, reloader)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/carriers", h.ListCarriers)
	v1.Put("/carriers/:name/capability", h.SetCarrierCapability)
	v1.Get("/occurrences", h.ListOccurrences)
	v1.Put("/occurrences/:code/category", h.SetOccurrenceCategory)

	return nil
}

type capabilityRequest struct {
	OwnedByEngine bool `json:"ownedByEngine"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

type carrierResponse struct {
	CarrierName   string `json:"carrierName"`
	OwnedByEngine bool   `json:"ownedByEngine"`
}

type occurrenceResponse struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Category    *string `json:"category"`
}

func (h *AdminHandler) ListCarriers(c *fiber.Ctx) error {
	capabilities, err := h.carriers.List(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]carrierResponse, 0, len(capabilities))
	for _, capability := range capabilities {
		responses = append(responses, carrierResponse{
			CarrierName:   capability.CarrierName,
			OwnedByEngine: capability.OwnedByEngine,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *AdminHandler) SetCarrierCapability(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("name"))
	if name == "" {
		return toHTTPError(fmt.Errorf("%w: carrier name is required", domain.ErrValidation))
	}

	var req capabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.carriers.SetCapability(c.Context(), name, req.OwnedByEngine); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(carrierResponse{
		CarrierName:   name,
		OwnedByEngine: req.OwnedByEngine,
	})
}

func (h *AdminHandler) ListOccurrences(c *fiber.Ctx) error {
	codes, err := h.occurrences.ListOccurrenceCodes(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]occurrenceResponse, 0, len(codes))
	for _, code := range codes {
		var category *string
		if code.Category != nil {
			value := code.Category.String()
			category = &value
		}
		responses = append(responses, occurrenceResponse{
			Code:        code.Code,
			Description: code.Description,
			Category:    category,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *AdminHandler) SetOccurrenceCategory(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))
	if code == "" {
		return toHTTPError(fmt.Errorf("%w: occurrence code is required", domain.ErrValidation))
	}

	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	category, err := domain.ParseStatusFromString(req.Category)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.occurrences.SetCategory(c.Context(), code, category); err != nil {
		return toHTTPError(err)
	}

	// Classification must see the new category without a restart.
	if h.reloader != nil {
		if err := h.reloader.Reload(c.Context()); err != nil {
			return err
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"code":     code,
		"category": category.String(),
	})
}
