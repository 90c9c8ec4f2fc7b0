package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gateway-monitor/internal/audit"
	"gateway-monitor/internal/monitoring/application"
	monitoring "gateway-monitor/internal/monitoring/domain"
	"gateway-monitor/internal/monitoring/infrastructure/memory"
)

type fakeFetcher struct {
	telemetry map[string]monitoring.Telemetry
}

func (f *fakeFetcher) Fetch(ctx context.Context, gatewayID string) (monitoring.Telemetry, error) {
	_ = ctx
	telemetry, ok := f.telemetry[gatewayID]
	if !ok {
		return monitoring.Telemetry{}, monitoring.NewFetchError(monitoring.FetchNotFound, gatewayID, nil)
	}
	return telemetry, nil
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Log(ctx context.Context, entry audit.Entry) error {
	_ = ctx
	a.entries = append(a.entries, entry)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeFetcher, *recordingAuditor) {
	t.Helper()
	fetcher := &fakeFetcher{telemetry: map[string]monitoring.Telemetry{
		"gw-1": {
			Gateway:       monitoring.Gateway{ID: "gw-1", Name: "Rooftop"},
			LastDatapoint: time.Now().UTC().Add(-time.Minute),
		},
	}}
	service, err := application.NewService(memory.NewSubscriptionRepository(), memory.NewStateRepository(), fetcher)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	auditor := &recordingAuditor{}
	handler, err := NewHandler(service, auditor)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler, fetcher, auditor
}

func TestSubscribeEndpoint(t *testing.T) {
	handler, _, auditor := newTestHandler(t)

	body := strings.NewReader(`{"user_id": 1, "gateway_id": "gw-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload subscribeResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Subscribed || payload.Gateway.Name != "Rooftop" {
		t.Fatalf("unexpected response %+v", payload)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Action != "subscribe" {
		t.Fatalf("expected subscribe audit entry, got %+v", auditor.entries)
	}
}

func TestSubscribeDuplicateConflict(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		body := strings.NewReader(`{"user_id": 1, "gateway_id": "gw-1"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", body)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d", i, want, resp.Code)
		}
	}
}

func TestSubscribeUnknownGateway(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	body := strings.NewReader(`{"user_id": 1, "gateway_id": "nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestUnsubscribeEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	body := strings.NewReader(`{"user_id": 1, "gateway_id": "gw-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", body)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/subscriptions?user_id=1&gateway_id=gw-1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	// Deleting again is a 404.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/subscriptions?user_id=1&gateway_id=gw-1", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing subscription, got %d", resp.Code)
	}
}

func TestThresholdEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/42/threshold", strings.NewReader(`{"minutes": 15}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/42/threshold", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	var payload thresholdResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Minutes != 15 {
		t.Fatalf("expected 15 minutes, got %+v", payload)
	}
}

func TestThresholdEndpointRejectsOutOfRange(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	for _, body := range []string{`{"minutes": 0}`, `{"minutes": 61}`} {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/users/42/threshold", strings.NewReader(body))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.Code)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	body := strings.NewReader(`{"user_id": 1, "gateway_id": "gw-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", body)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status?user_id=1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var statuses []application.GatewayStatus
	if err := json.Unmarshal(resp.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Evaluation == nil || statuses[0].Evaluation.Status != monitoring.StatusOnline {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
}

func TestStatsAndExports(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	body := strings.NewReader(`{"user_id": 1, "gateway_id": "gw-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", body)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.Code)
	}
	var stats monitoring.SubscriptionStats
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalSubscriptions != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	for _, path := range []string{"/api/v1/exports/stats.xlsx", "/api/v1/exports/stats.pdf"} {
		req = httptest.NewRequest(http.MethodGet, path, nil)
		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
		if resp.Body.Len() == 0 {
			t.Fatalf("%s: empty export body", path)
		}
	}
}

func TestStatusRequiresUserID(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
