package monitoring

import "time"

// DER describes a distributed energy resource attached to a gateway.
type DER struct {
	Serial       string    `json:"serial"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Make         string    `json:"make,omitempty"`
	NominalPower int       `json:"nominal_power,omitempty"`
	LatestPower  float64   `json:"latest_power"`
	LastSeen     time.Time `json:"last_seen,omitempty"`
}

// Gateway is a remote energy gateway identified by an opaque id.
type Gateway struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	DERs []DER  `json:"ders,omitempty"`
}

// Telemetry is one observation of a gateway from the remote source.
type Telemetry struct {
	Gateway       Gateway   `json:"gateway"`
	LastDatapoint time.Time `json:"last_datapoint,omitempty"`
	PowerWatts    float64   `json:"power_watts"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// HasDatapoint reports whether any DER has ever produced a datapoint.
func (t Telemetry) HasDatapoint() bool {
	return !t.LastDatapoint.IsZero()
}
