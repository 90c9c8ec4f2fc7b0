package application

import (
	"testing"
	"time"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

func TestEvaluateOnlineWithinThreshold(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	telemetry := monitoring.Telemetry{
		Gateway:       monitoring.Gateway{ID: "gw-1", Name: "Rooftop"},
		LastDatapoint: now.Add(-4 * time.Minute),
		PowerWatts:    1500,
	}

	state := Evaluate(telemetry, 5, now)
	if state.Status != monitoring.StatusOnline {
		t.Fatalf("expected online, got %s", state.Status)
	}
	if state.ThresholdMinutes != 5 {
		t.Fatalf("expected threshold 5, got %d", state.ThresholdMinutes)
	}
	if state.LastSeenText == "" || state.LastSeenText == "never" {
		t.Fatalf("expected relative last seen text, got %q", state.LastSeenText)
	}
}

func TestEvaluateBoundaryAgeIsOnline(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	telemetry := monitoring.Telemetry{
		Gateway:       monitoring.Gateway{ID: "gw-1"},
		LastDatapoint: now.Add(-5 * time.Minute),
	}

	state := Evaluate(telemetry, 5, now)
	if state.Status != monitoring.StatusOnline {
		t.Fatalf("age equal to threshold must be online, got %s", state.Status)
	}
}

func TestEvaluateStaleIsOffline(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	telemetry := monitoring.Telemetry{
		Gateway:       monitoring.Gateway{ID: "gw-1"},
		LastDatapoint: now.Add(-5*time.Minute - time.Second),
	}

	state := Evaluate(telemetry, 5, now)
	if state.Status != monitoring.StatusOffline {
		t.Fatalf("expected offline just past threshold, got %s", state.Status)
	}
}

func TestEvaluateNoDatapointIsOffline(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	telemetry := monitoring.Telemetry{Gateway: monitoring.Gateway{ID: "gw-1"}}

	state := Evaluate(telemetry, 5, now)
	if state.Status != monitoring.StatusOffline {
		t.Fatalf("expected offline without datapoint, got %s", state.Status)
	}
	if state.LastSeenText != "never" {
		t.Fatalf("expected last seen 'never', got %q", state.LastSeenText)
	}
	if !state.LastDatapoint.IsZero() {
		t.Fatalf("expected zero last datapoint, got %v", state.LastDatapoint)
	}
}

func TestEvaluateThresholdChangeFlipsStatus(t *testing.T) {
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	telemetry := monitoring.Telemetry{
		Gateway:       monitoring.Gateway{ID: "gw-1"},
		LastDatapoint: now.Add(-7 * time.Minute),
	}

	if state := Evaluate(telemetry, 10, now); state.Status != monitoring.StatusOnline {
		t.Fatalf("expected online under 10-minute threshold, got %s", state.Status)
	}
	if state := Evaluate(telemetry, 5, now); state.Status != monitoring.StatusOffline {
		t.Fatalf("expected offline under 5-minute threshold, got %s", state.Status)
	}
}

func TestFormatPower(t *testing.T) {
	cases := []struct {
		watts float64
		want  string
	}{
		{0, "0 W"},
		{850, "850 W"},
		{1000, "1 kW"},
		{1500, "1.5 kW"},
		{12345, "12.35 kW"},
		{2_500_000, "2.5 MW"},
	}
	for _, tc := range cases {
		if got := FormatPower(tc.watts); got != tc.want {
			t.Fatalf("FormatPower(%v) = %q, want %q", tc.watts, got, tc.want)
		}
	}
}
