package telemetry

import (
	"fmt"
	"strconv"
)

// OrbitPhase classifies whether latitude is increasing or decreasing
// between consecutive samples.
type OrbitPhase string

const (
	OrbitAscending  OrbitPhase = "ASCENDING"
	OrbitDescending OrbitPhase = "DESCENDING"
	// OrbitUnknown marks the first record of a session, where no prior
	// sample exists.
	OrbitUnknown OrbitPhase = "UNKNOWN"
)

// Valid reports whether p is one of the defined phases.
func (p OrbitPhase) Valid() bool {
	switch p {
	case OrbitAscending, OrbitDescending, OrbitUnknown:
		return true
	}
	return false
}

// Hemisphere labels, sign-based: latitude/longitude >= 0 is North/East.
const (
	HemisphereNorth = "North"
	HemisphereSouth = "South"
	HemisphereEast  = "East"
	HemisphereWest  = "West"
)

// Record is an enriched position sample. Derived deterministically from the
// current sample and at most one immediately preceding sample.
type Record struct {
	PositionSample

	VelocityKmS     float64    `json:"velocity_km_s"`
	OrbitPhase      OrbitPhase `json:"orbit_phase"`
	DistanceToRefKm float64    `json:"distance_to_reference_km"`
	HemisphereNS    string     `json:"hemisphere_ns"`
	HemisphereEW    string     `json:"hemisphere_ew"`
}

// Key returns the dedup key for the processed-records stream. Samples are
// produced at most once per event-time second, so the event time identifies
// the record.
func (r *Record) Key() string {
	return strconv.FormatInt(r.Timestamp, 10)
}

// Validate checks the enriched fields on top of the sample schema.
func (r *Record) Validate() error {
	if err := r.PositionSample.Validate(); err != nil {
		return err
	}
	if r.VelocityKmS < 0 {
		return fmt.Errorf("velocity_km_s %v negative", r.VelocityKmS)
	}
	if r.DistanceToRefKm < 0 {
		return fmt.Errorf("distance_to_reference_km %v negative", r.DistanceToRefKm)
	}
	if r.OrbitPhase != "" && !r.OrbitPhase.Valid() {
		return fmt.Errorf("orbit_phase %q not recognized", r.OrbitPhase)
	}
	return nil
}

// RecordBatch is a collection of records for micro-batch processing.
type RecordBatch struct {
	Records []Record
}

// NewRecordBatch creates a batch with the given capacity.
func NewRecordBatch(capacity int) *RecordBatch {
	return &RecordBatch{Records: make([]Record, 0, capacity)}
}

// Add appends a record to the batch.
func (b *RecordBatch) Add(r Record) {
	b.Records = append(b.Records, r)
}

// Len returns the number of records in the batch.
func (b *RecordBatch) Len() int {
	return len(b.Records)
}

// Clear resets the batch for reuse.
func (b *RecordBatch) Clear() {
	b.Records = b.Records[:0]
}
