package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEngineCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncPoll("success")
	metrics.IncPoll("Not_Found")
	metrics.AddEventsInserted(3)
	metrics.IncStatusTransition("PENDING", "IN_TRANSIT")
	metrics.IncWorkerInFlight()
	metrics.DecWorkerInFlight()
	metrics.ObserveCycleDuration("pending", 250*time.Millisecond)
	metrics.AddDueSelected("pending", 7)

	if got := testutil.ToFloat64(metrics.pollsTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("polls_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.pollsTotal.WithLabelValues("not_found")); got != 1 {
		t.Fatalf("polls_total{not_found} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.eventsInsertedTotal); got != 3 {
		t.Fatalf("events_inserted_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.statusTransitions.WithLabelValues("PENDING", "IN_TRANSIT")); got != 1 {
		t.Fatalf("status_transitions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workerInflight); got != 0 {
		t.Fatalf("worker_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.shipmentsDueSelected.WithLabelValues("pending")); got != 7 {
		t.Fatalf("shipments_due_selected_total = %v, want 7", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/healthz", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
