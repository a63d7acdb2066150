package telemetry

import (
	"fmt"
	"time"
)

// PositionSample is a single position reading from the tracking API.
// Immutable once produced; the event time is the timestamp embedded in the
// API response, not the time of the fetch.
type PositionSample struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Timestamp  int64   `json:"timestamp"` // event time, epoch seconds
	FetchTime  string  `json:"fetch_time"`
	AltitudeKm float64 `json:"altitude_km"`
}

// EventTime returns the sample's event time as a time.Time.
func (s *PositionSample) EventTime() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// Validate checks the sample against the record schema. Samples failing
// validation are counted as malformed and dropped by the ingest loop.
func (s *PositionSample) Validate() error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", s.Longitude)
	}
	if s.Timestamp <= 0 {
		return fmt.Errorf("timestamp %d not positive", s.Timestamp)
	}
	return nil
}

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}
