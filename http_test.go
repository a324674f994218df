package culturedb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func doGet(t *testing.T, srv *httptest.Server, path string, params url.Values) (int, []byte) {
	t.Helper()

	u := srv.URL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, body
}

func TestHTTPHealth(t *testing.T) {
	store := newTestStore(t)
	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	status, _ := doGet(t, srv, "/health", nil)
	if status != http.StatusOK {
		t.Errorf("health status = %d, want 200", status)
	}
}

func TestHTTPActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	ts := "2026-08-31T00:00:01.000Z"
	if err := store.AppendTemperature(ctx, TemperatureReading{Key: key(ts), TemperatureC: 22.5}); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	params := url.Values{"experiment": {"run1"}, "unit": {"A"}, "timestamp": {ts}}
	status, body := doGet(t, srv, "/api/v1/activity", params)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", status, body)
	}

	var row ActivityRow
	if err := json.Unmarshal(body, &row); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
	if row.TemperatureC == nil || *row.TemperatureC != 22.5 {
		t.Errorf("TemperatureC = %v, want 22.5", row.TemperatureC)
	}
	if row.PH != nil {
		t.Errorf("PH should be nil, got %v", *row.PH)
	}
}

func TestHTTPActivityErrors(t *testing.T) {
	store := newTestStore(t)
	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	// Unknown key.
	params := url.Values{"experiment": {"run1"}, "unit": {"A"}, "timestamp": {"2026-08-31T00:00:01.000Z"}}
	status, _ := doGet(t, srv, "/api/v1/activity", params)
	if status != http.StatusNotFound {
		t.Errorf("missing row status = %d, want 404", status)
	}

	// Incomplete key.
	status, _ = doGet(t, srv, "/api/v1/activity", url.Values{"experiment": {"run1"}})
	if status != http.StatusBadRequest {
		t.Errorf("incomplete key status = %d, want 400", status)
	}

	// Bad limit on range.
	status, _ = doGet(t, srv, "/api/v1/activity/range",
		url.Values{"experiment": {"run1"}, "unit": {"A"}, "limit": {"x"}})
	if status != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", status)
	}
}

func TestHTTPActivityRange(t *testing.T) {
	store := newTestStore(t)
	seedRange(t, store, 4)
	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	params := url.Values{"experiment": {"run1"}, "unit": {"A"}, "limit": {"2"}}
	status, body := doGet(t, srv, "/api/v1/activity/range", params)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", status, body)
	}

	var payload struct {
		Rows []ActivityRow `json:"rows"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
	if len(payload.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(payload.Rows))
	}
}

func TestHTTPLatest(t *testing.T) {
	store := newTestStore(t)
	seedRange(t, store, 3)
	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	params := url.Values{"experiment": {"run1"}, "unit": {"A"}}
	status, body := doGet(t, srv, "/api/v1/activity/latest", params)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", status, body)
	}

	var row ActivityRow
	if err := json.Unmarshal(body, &row); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
	if row.Timestamp != "2026-08-31T00:00:02.000Z" {
		t.Errorf("latest = %s, want 00:00:02", row.Timestamp)
	}
}

func TestHTTPExperimentsAndStats(t *testing.T) {
	store := newTestStore(t)
	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	status, body := doGet(t, srv, "/api/v1/experiments", nil)
	if status != http.StatusOK {
		t.Fatalf("experiments status = %d (%s)", status, body)
	}
	var exps struct {
		Experiments []Experiment `json:"experiments"`
	}
	if err := json.Unmarshal(body, &exps); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
	if len(exps.Experiments) != 1 || exps.Experiments[0].Name != "run1" {
		t.Errorf("experiments = %v, want [run1]", exps.Experiments)
	}

	status, body = doGet(t, srv, "/api/v1/stats", nil)
	if status != http.StatusOK {
		t.Fatalf("stats status = %d (%s)", status, body)
	}
	var stats StoreStats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
	if stats.Experiments != 1 {
		t.Errorf("stats.Experiments = %d, want 1", stats.Experiments)
	}
}
