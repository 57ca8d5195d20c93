package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestInstrumentHandler_RecordsRequest(t *testing.T) {
	c, err := NewCollector()
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := c.InstrumentHandler(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/abc123", nil))

	body := scrape(t, c)
	// The path label is the route pattern, not the concrete URL.
	if !strings.Contains(body, `hunchd_http_requests_total{method="GET",path="GET /api/markets/{id}",status="404"} 1`) {
		t.Errorf("request counter missing or mislabelled:\n%s", body)
	}
	if strings.Contains(body, "abc123") {
		t.Error("concrete URL leaked into metric labels")
	}
}

func TestObserveResolution(t *testing.T) {
	c, err := NewCollector()
	if err != nil {
		t.Fatal(err)
	}

	c.ObserveResolution("paid", 1300, 100)
	c.ObserveResolution("no_winners", 0, 500)

	body := scrape(t, c)
	for _, want := range []string{
		`hunchd_settlement_resolutions_total{kind="paid"} 1`,
		`hunchd_settlement_resolutions_total{kind="no_winners"} 1`,
		`hunchd_settlement_chips_paid_total 1300`,
		`hunchd_settlement_chips_forfeited_total 600`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape:\n%s", want, body)
		}
	}
}

func TestOutboxMetrics(t *testing.T) {
	c, err := NewCollector()
	if err != nil {
		t.Fatal(err)
	}

	c.ObserveOutboxBatch("ok")
	c.ObserveOutboxBatch("ok")
	c.ObserveOutboxBatch("error")
	c.SetOutboxPending(7)

	body := scrape(t, c)
	for _, want := range []string{
		`hunchd_outbox_batches_total{result="ok"} 2`,
		`hunchd_outbox_batches_total{result="error"} 1`,
		`hunchd_outbox_pending 7`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape:\n%s", want, body)
		}
	}
}
