package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

// Evaluate classifies one telemetry observation against a staleness
// threshold. The age comparison is the only source of truth for state:
// a gateway is online iff its newest datapoint is at most threshold minutes
// old. A telemetry record without any datapoint is always offline.
func Evaluate(telemetry monitoring.Telemetry, thresholdMinutes int, now time.Time) monitoring.EvaluatedState {
	now = now.UTC()
	state := monitoring.EvaluatedState{
		Status:           monitoring.StatusOffline,
		Gateway:          telemetry.Gateway,
		ThresholdMinutes: thresholdMinutes,
		PowerWatts:       telemetry.PowerWatts,
		PowerText:        FormatPower(telemetry.PowerWatts),
		LastSeenText:     "never",
		EvaluatedAt:      now,
	}
	if !telemetry.HasDatapoint() {
		return state
	}
	last := telemetry.LastDatapoint.UTC()
	state.LastDatapoint = last
	state.LastSeenText = humanize.RelTime(last, now, "ago", "from now")

	age := now.Sub(last)
	if age <= time.Duration(thresholdMinutes)*time.Minute {
		state.Status = monitoring.StatusOnline
	}
	return state
}

// FormatPower renders watts in the unit a human would pick.
func FormatPower(watts float64) string {
	abs := watts
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 1000:
		return fmt.Sprintf("%.0f W", watts)
	case abs < 1_000_000:
		return trimZeros(fmt.Sprintf("%.2f", watts/1000)) + " kW"
	default:
		return trimZeros(fmt.Sprintf("%.2f", watts/1_000_000)) + " MW"
	}
}

func trimZeros(value string) string {
	value = strings.TrimRight(value, "0")
	return strings.TrimSuffix(value, ".")
}
