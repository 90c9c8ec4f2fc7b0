package srcful

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

func TestFetchAggregatesDERs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(req.Query, "gateway(id:"):
			w.Write([]byte(`{"data":{"gateway":{"gateway":{
				"id":"gw-1","name":"Rooftop","typeOf":"Sourceful Energy Gateway",
				"ders":[
					{"type":"solar","name":"Inverter A","sn":"sn-a","meta":{"make":"Deye","nominalPower":8000}},
					{"type":"solar","name":"Inverter B","sn":"sn-b","meta":{"make":"Huawei","nominalPower":5000}}
				]}}}}`))
		case strings.Contains(req.Query, `solar(sn: "sn-a")`):
			w.Write([]byte(`{"data":{"derData":{"solar":{"latest":{"ts":1755900000000,"power":1200.5}}}}}`))
		case strings.Contains(req.Query, `solar(sn: "sn-b")`):
			w.Write([]byte(`{"data":{"derData":{"solar":{"latest":{"ts":1755900060000,"power":800}}}}}`))
		default:
			t.Fatalf("unexpected query: %s", req.Query)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	telemetry, err := client.Fetch(context.Background(), "gw-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if telemetry.Gateway.ID != "gw-1" || telemetry.Gateway.Name != "Rooftop" {
		t.Fatalf("unexpected gateway: %+v", telemetry.Gateway)
	}
	if len(telemetry.Gateway.DERs) != 2 {
		t.Fatalf("expected 2 DERs, got %d", len(telemetry.Gateway.DERs))
	}
	if telemetry.PowerWatts != 2000.5 {
		t.Fatalf("expected summed power 2000.5, got %v", telemetry.PowerWatts)
	}
	want := time.UnixMilli(1755900060000).UTC()
	if !telemetry.LastDatapoint.Equal(want) {
		t.Fatalf("expected last datapoint %v, got %v", want, telemetry.LastDatapoint)
	}
	if telemetry.Gateway.DERs[0].Make != "Deye" || telemetry.Gateway.DERs[0].NominalPower != 8000 {
		t.Fatalf("unexpected DER meta: %+v", telemetry.Gateway.DERs[0])
	}
}

func TestFetchUnknownGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"gateway":{"gateway":null}}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Fetch(context.Background(), "missing")
	fetchErr, ok := monitoring.AsFetchError(err)
	if !ok || fetchErr.Kind != monitoring.FetchNotFound {
		t.Fatalf("expected not_found fetch error, got %v", err)
	}
}

func TestFetchGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors":[{"message":"internal"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Fetch(context.Background(), "gw-1")
	fetchErr, ok := monitoring.AsFetchError(err)
	if !ok || fetchErr.Kind != monitoring.FetchInvalidResponse {
		t.Fatalf("expected invalid_response fetch error, got %v", err)
	}
}

func TestFetchUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Fetch(context.Background(), "gw-1")
	fetchErr, ok := monitoring.AsFetchError(err)
	if !ok || fetchErr.Kind != monitoring.FetchUnreachable {
		t.Fatalf("expected unreachable fetch error, got %v", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Fetch(ctx, "gw-1")
	fetchErr, ok := monitoring.AsFetchError(err)
	if !ok || fetchErr.Kind != monitoring.FetchTimeout {
		t.Fatalf("expected timeout fetch error, got %v", err)
	}
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Fetch(context.Background(), "gw-1")
	fetchErr, ok := monitoring.AsFetchError(err)
	if !ok || fetchErr.Kind != monitoring.FetchUnreachable {
		t.Fatalf("expected unreachable fetch error, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want time.Time
		ok   bool
	}{
		{"epoch millis", float64(1755900000000), time.UnixMilli(1755900000000).UTC(), true},
		{"rfc3339", "2026-08-22T12:00:00Z", time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC), true},
		{"no zone", "2026-08-22T12:00:00", time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC), true},
		{"empty string", "", time.Time{}, false},
		{"nil", nil, time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseTimestamp(tc.raw)
			if ok != tc.ok {
				t.Fatalf("ok=%v, want %v", ok, tc.ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
