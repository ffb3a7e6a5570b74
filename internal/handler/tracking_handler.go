// Package handler exposes the read and operations API over fiber.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/repository"
	"github.com/vialog/nfe-tracker/internal/scheduler"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
)

type StatusReader interface {
	GetByKey(ctx context.Context, accessKey string) (*domain.StatusRecord, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.StatusRecord, int64, error)
}

type EventReader interface {
	ListByShipment(ctx context.Context, accessKey string) ([]domain.TrackingEvent, error)
}

// Reconciler triggers one reconciliation cycle outside its schedule.
type Reconciler interface {
	RunTier(ctx context.Context, name string) (scheduler.CycleReport, error)
}

type TrackingHandler struct {
	statuses   StatusReader
	events     EventReader
	reconciler Reconciler
}

func NewTrackingHandler(statuses StatusReader, events EventReader, reconciler Reconciler) (*TrackingHandler, error) {
	if statuses == nil {
		return nil, fmt.Errorf("status reader is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event reader is required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	return &TrackingHandler{statuses: statuses, events: events, reconciler: reconciler}, nil
}

func RegisterTrackingRoutes(router fiber.Router, statuses StatusReader, events EventReader, reconciler Reconciler) error {
	h, err := NewTrackingHandler(statuses, events, reconciler)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/shipments/:key/status", h.GetShipmentStatus)
	v1.Get("/shipments/:key/events", h.ListShipmentEvents)
	v1.Get("/statuses", h.ListStatuses)
	v1.Post("/reconcile/:tier", h.ForceReconcile)

	return nil
}

type statusResponse struct {
	AccessKey       string     `json:"accessKey"`
	Status          string     `json:"status"`
	LastEventCode   string     `json:"lastEventCode,omitempty"`
	LastEventText   string     `json:"lastEventText,omitempty"`
	LastEventTime   *time.Time `json:"lastEventTime,omitempty"`
	LastProcessedAt *time.Time `json:"lastProcessedAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type eventResponse struct {
	OccurrenceCode   string    `json:"occurrenceCode"`
	OccurrenceText   string    `json:"occurrenceText"`
	Description      string    `json:"description,omitempty"`
	EventTime        time.Time `json:"eventTime"`
	Branch           string    `json:"branch,omitempty"`
	Domain           string    `json:"domain,omitempty"`
	City             string    `json:"city,omitempty"`
	ReceiverName     string    `json:"receiverName,omitempty"`
	ReceiverDocument string    `json:"receiverDocument,omitempty"`
}

type listStatusesResponse struct {
	Data []statusResponse `json:"data"`
	Meta listMeta         `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type cycleReportResponse struct {
	Tier           string `json:"tier"`
	CycleID        string `json:"cycleId"`
	Selected       int    `json:"selected"`
	Succeeded      int    `json:"succeeded"`
	Failed         int    `json:"failed"`
	EventsInserted int    `json:"eventsInserted"`
	DurationMillis int64  `json:"durationMillis"`
}

func (h *TrackingHandler) GetShipmentStatus(c *fiber.Ctx) error {
	key, err := accessKeyParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	record, err := h.statuses.GetByKey(c.Context(), key)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toStatusResponse(record))
}

func (h *TrackingHandler) ListShipmentEvents(c *fiber.Ctx) error {
	key, err := accessKeyParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	events, err := h.events.ListByShipment(c.Context(), key)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]eventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, eventResponse{
			OccurrenceCode:   event.OccurrenceCode,
			OccurrenceText:   event.OccurrenceText,
			Description:      event.Description,
			EventTime:        event.EventTime,
			Branch:           event.Branch,
			Domain:           event.Domain,
			City:             event.City,
			ReceiverName:     event.ReceiverName,
			ReceiverDocument: event.ReceiverDocument,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"accessKey": key,
		"events":    responses,
	})
}

func (h *TrackingHandler) ListStatuses(c *fiber.Ctx) error {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}
	if params.Page < 1 {
		return toHTTPError(fmt.Errorf("%w: page must be >= 1", domain.ErrValidation))
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := domain.ParseStatusFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}

	records, total, err := h.statuses.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]statusResponse, 0, len(records))
	for i := range records {
		data = append(data, toStatusResponse(&records[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listStatusesResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *TrackingHandler) ForceReconcile(c *fiber.Ctx) error {
	tier := strings.TrimSpace(c.Params("tier"))

	report, err := h.reconciler.RunTier(c.Context(), tier)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownTier):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case errors.Is(err, scheduler.ErrCycleInProgress):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		default:
			return err
		}
	}

	return c.Status(fiber.StatusOK).JSON(cycleReportResponse{
		Tier:           report.Tier,
		CycleID:        report.CycleID,
		Selected:       report.Selected,
		Succeeded:      report.Succeeded,
		Failed:         report.Failed,
		EventsInserted: report.EventsInserted,
		DurationMillis: report.Duration.Milliseconds(),
	})
}

func toStatusResponse(record *domain.StatusRecord) statusResponse {
	return statusResponse{
		AccessKey:       record.ShipmentKey,
		Status:          record.Status.String(),
		LastEventCode:   record.LastEventCode,
		LastEventText:   record.LastEventText,
		LastEventTime:   record.LastEventTime,
		LastProcessedAt: record.LastProcessedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func accessKeyParam(c *fiber.Ctx) (string, error) {
	key := strings.TrimSpace(c.Params("key"))
	if len(key) != domain.AccessKeyLength {
		return "", fmt.Errorf("%w: access key must have %d characters", domain.ErrValidation, domain.AccessKeyLength)
	}
	return key, nil
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
