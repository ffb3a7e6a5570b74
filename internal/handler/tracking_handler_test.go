package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/repository"
	"github.com/vialog/nfe-tracker/internal/scheduler"
	"github.com/vialog/nfe-tracker/internal/transport"
)

type fakeStatusReader struct {
	getFunc  func(ctx context.Context, accessKey string) (*domain.StatusRecord, error)
	listFunc func(ctx context.Context, params repository.ListParams) ([]domain.StatusRecord, int64, error)
}

func (f *fakeStatusReader) GetByKey(ctx context.Context, accessKey string) (*domain.StatusRecord, error) {
	return f.getFunc(ctx, accessKey)
}

func (f *fakeStatusReader) List(ctx context.Context, params repository.ListParams) ([]domain.StatusRecord, int64, error) {
	return f.listFunc(ctx, params)
}

type fakeEventReader struct {
	listFunc func(ctx context.Context, accessKey string) ([]domain.TrackingEvent, error)
}

func (f *fakeEventReader) ListByShipment(ctx context.Context, accessKey string) ([]domain.TrackingEvent, error) {
	return f.listFunc(ctx, accessKey)
}

type fakeReconciler struct {
	runFunc func(ctx context.Context, name string) (scheduler.CycleReport, error)
}

func (f *fakeReconciler) RunTier(ctx context.Context, name string) (scheduler.CycleReport, error) {
	return f.runFunc(ctx, name)
}

func validKey() string { return strings.Repeat("3", domain.AccessKeyLength) }

func newTestApp(t *testing.T, statuses StatusReader, events EventReader, reconciler Reconciler) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	if err := RegisterTrackingRoutes(app, statuses, events, reconciler); err != nil {
		t.Fatalf("RegisterTrackingRoutes() error = %v", err)
	}
	return app
}

func defaultFakes() (*fakeStatusReader, *fakeEventReader, *fakeReconciler) {
	statuses := &fakeStatusReader{
		getFunc: func(ctx context.Context, accessKey string) (*domain.StatusRecord, error) {
			return nil, domain.ErrNotFound
		},
		listFunc: func(ctx context.Context, params repository.ListParams) ([]domain.StatusRecord, int64, error) {
			return nil, 0, nil
		},
	}
	events := &fakeEventReader{
		listFunc: func(ctx context.Context, accessKey string) ([]domain.TrackingEvent, error) {
			return nil, nil
		},
	}
	reconciler := &fakeReconciler{
		runFunc: func(ctx context.Context, name string) (scheduler.CycleReport, error) {
			return scheduler.CycleReport{Tier: name}, nil
		},
	}
	return statuses, events, reconciler
}

func TestGetShipmentStatus(t *testing.T) {
	t.Parallel()

	processed := time.Date(2025, 7, 2, 12, 0, 0, 0, time.UTC)
	statuses, events, reconciler := defaultFakes()
	statuses.getFunc = func(ctx context.Context, accessKey string) (*domain.StatusRecord, error) {
		return &domain.StatusRecord{
			ShipmentKey:     accessKey,
			Status:          domain.StatusInTransit,
			LastEventCode:   "59",
			LastEventText:   "SAIU PARA ENTREGA",
			LastProcessedAt: &processed,
		}, nil
	}

	app := newTestApp(t, statuses, events, reconciler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/shipments/"+validKey()+"/status", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "IN_TRANSIT" || body.LastEventCode != "59" {
		t.Fatalf("body = %+v, want IN_TRANSIT with code 59", body)
	}
}

func TestGetShipmentStatusValidation(t *testing.T) {
	t.Parallel()

	statuses, events, reconciler := defaultFakes()
	app := newTestApp(t, statuses, events, reconciler)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "short key", path: "/v1/shipments/123/status", want: http.StatusBadRequest},
		{name: "unknown key", path: "/v1/shipments/" + validKey() + "/status", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestListShipmentEvents(t *testing.T) {
	t.Parallel()

	statuses, events, reconciler := defaultFakes()
	events.listFunc = func(ctx context.Context, accessKey string) ([]domain.TrackingEvent, error) {
		return []domain.TrackingEvent{
			{OccurrenceCode: "59", OccurrenceText: "SAIU PARA ENTREGA", EventTime: time.Date(2025, 7, 1, 8, 30, 0, 0, time.UTC)},
			{OccurrenceCode: "01", OccurrenceText: "MERCADORIA ENTREGUE", EventTime: time.Date(2025, 7, 1, 14, 10, 0, 0, time.UTC)},
		}, nil
	}

	app := newTestApp(t, statuses, events, reconciler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/shipments/"+validKey()+"/events", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		AccessKey string          `json:"accessKey"`
		Events    []eventResponse `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(body.Events))
	}
}

func TestListStatusesFilter(t *testing.T) {
	t.Parallel()

	var gotParams repository.ListParams
	statuses, events, reconciler := defaultFakes()
	statuses.listFunc = func(ctx context.Context, params repository.ListParams) ([]domain.StatusRecord, int64, error) {
		gotParams = params
		return []domain.StatusRecord{{ShipmentKey: validKey(), Status: domain.StatusDelivered}}, 1, nil
	}

	app := newTestApp(t, statuses, events, reconciler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/statuses?status=delivered&page=2&pageSize=10", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotParams.Status == nil || *gotParams.Status != domain.StatusDelivered {
		t.Fatalf("status filter = %v, want DELIVERED", gotParams.Status)
	}
	if gotParams.Page != 2 || gotParams.PageSize != 10 {
		t.Fatalf("pagination = %+v, want page 2 size 10", gotParams)
	}
}

func TestListStatusesRejectsInvalidFilter(t *testing.T) {
	t.Parallel()

	statuses, events, reconciler := defaultFakes()
	app := newTestApp(t, statuses, events, reconciler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/statuses?status=TELEPORTED", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestForceReconcile(t *testing.T) {
	t.Parallel()

	statuses, events, reconciler := defaultFakes()
	reconciler.runFunc = func(ctx context.Context, name string) (scheduler.CycleReport, error) {
		return scheduler.CycleReport{
			Tier:     name,
			CycleID:  "cycle-1",
			Selected: 7, Succeeded: 6, Failed: 1,
		}, nil
	}

	app := newTestApp(t, statuses, events, reconciler)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/v1/reconcile/pending", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body cycleReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Tier != "pending" || body.Selected != 7 {
		t.Fatalf("body = %+v, want pending tier with 7 selected", body)
	}
}

func TestForceReconcileErrors(t *testing.T) {
	t.Parallel()

	statuses, events, reconciler := defaultFakes()
	reconciler.runFunc = func(ctx context.Context, name string) (scheduler.CycleReport, error) {
		switch name {
		case "busy":
			return scheduler.CycleReport{}, scheduler.ErrCycleInProgress
		default:
			return scheduler.CycleReport{}, scheduler.ErrUnknownTier
		}
	}

	app := newTestApp(t, statuses, events, reconciler)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "unknown tier", path: "/v1/reconcile/nightly", want: http.StatusNotFound},
		{name: "cycle in progress", path: "/v1/reconcile/busy", want: http.StatusConflict},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, tt.path, nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if _, err := io.ReadAll(resp.Body); err != nil {
				t.Fatalf("reading body: %v", err)
			}
		})
	}
}
