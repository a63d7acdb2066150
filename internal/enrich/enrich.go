// Package enrich derives per-record fields from a position sample and at
// most one immediately preceding sample.
//
// Enrichment is a pure function of (current, prior): it never consults the
// wall clock, so the same inputs always produce the same record. The caller
// owns the single previous-sample slot and passes it explicitly.
//
// Rounding policy: values are computed from the raw inputs and rounded once
// when finalized. Coordinates and velocity carry four decimal places, the
// reference distance two.
package enrich

import (
	"math"

	"github.com/xtxerr/orbitd/internal/telemetry"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Enricher derives enriched records relative to a fixed reference
// coordinate.
type Enricher struct {
	Reference telemetry.Coordinate
}

// New creates an Enricher for the given reference coordinate.
func New(ref telemetry.Coordinate) *Enricher {
	return &Enricher{Reference: ref}
}

// Enrich builds the enriched record for sample. prior is the immediately
// preceding sample by event time, or nil for the first sample of a session.
//
// With no prior, or a non-positive elapsed time between prior and sample,
// velocity is 0 and the orbit phase is UNKNOWN.
func (e *Enricher) Enrich(sample telemetry.PositionSample, prior *telemetry.PositionSample) telemetry.Record {
	rec := telemetry.Record{
		PositionSample:  sample,
		VelocityKmS:     0,
		OrbitPhase:      telemetry.OrbitUnknown,
		DistanceToRefKm: Round(e.distanceToReference(sample), 2),
		HemisphereNS:    hemisphereNS(sample.Latitude),
		HemisphereEW:    hemisphereEW(sample.Longitude),
	}

	rec.Latitude = Round(sample.Latitude, 4)
	rec.Longitude = Round(sample.Longitude, 4)

	if prior != nil {
		if sample.Latitude > prior.Latitude {
			rec.OrbitPhase = telemetry.OrbitAscending
		} else {
			rec.OrbitPhase = telemetry.OrbitDescending
		}

		elapsed := sample.Timestamp - prior.Timestamp
		if elapsed > 0 {
			dist := Haversine(prior.Latitude, prior.Longitude, sample.Latitude, sample.Longitude)
			rec.VelocityKmS = Round(dist/float64(elapsed), 4)
		}
	}

	return rec
}

// distanceToReference returns the unrounded great-circle distance from the
// sample to the reference coordinate.
func (e *Enricher) distanceToReference(s telemetry.PositionSample) float64 {
	return Haversine(s.Latitude, s.Longitude, e.Reference.Latitude, e.Reference.Longitude)
}

// Haversine returns the great-circle distance in kilometers between two
// latitude/longitude points on a sphere of radius EarthRadiusKm.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlon1 := lon1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	rlon2 := lon2 * math.Pi / 180

	dlat := rlat2 - rlat1
	dlon := rlon2 - rlon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Round rounds v to the given number of decimal places, half away from
// zero.
func Round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

func hemisphereNS(lat float64) string {
	if lat >= 0 {
		return telemetry.HemisphereNorth
	}
	return telemetry.HemisphereSouth
}

func hemisphereEW(lon float64) string {
	if lon >= 0 {
		return telemetry.HemisphereEast
	}
	return telemetry.HemisphereWest
}
