package enrich

import (
	"math"
	"testing"

	"github.com/xtxerr/orbitd/internal/telemetry"
)

func sample(lat, lon float64, ts int64) telemetry.PositionSample {
	return telemetry.PositionSample{
		Latitude:   lat,
		Longitude:  lon,
		Timestamp:  ts,
		FetchTime:  "2026-01-01T00:00:00Z",
		AltitudeKm: 408.0,
	}
}

func TestEnrich_FirstSample(t *testing.T) {
	e := New(telemetry.Coordinate{Latitude: 48.8566, Longitude: 2.3522})

	rec := e.Enrich(sample(10.5, 20.25, 1000), nil)

	if rec.VelocityKmS != 0 {
		t.Errorf("expected velocity=0 for first sample, got %f", rec.VelocityKmS)
	}
	if rec.OrbitPhase != telemetry.OrbitUnknown {
		t.Errorf("expected orbit_phase=UNKNOWN for first sample, got %s", rec.OrbitPhase)
	}
}

func TestEnrich_IdenticalPositions(t *testing.T) {
	e := New(telemetry.Coordinate{Latitude: 48.8566, Longitude: 2.3522})

	prior := sample(45.0, 90.0, 1000)
	rec := e.Enrich(sample(45.0, 90.0, 1010), &prior)

	if rec.VelocityKmS != 0 {
		t.Errorf("expected velocity=0 for unchanged position, got %f", rec.VelocityKmS)
	}
	// Equal latitude is not ascending
	if rec.OrbitPhase != telemetry.OrbitDescending {
		t.Errorf("expected DESCENDING for equal latitude, got %s", rec.OrbitPhase)
	}
}

func TestEnrich_NonPositiveElapsed(t *testing.T) {
	e := New(telemetry.Coordinate{})

	prior := sample(10.0, 10.0, 1000)

	for _, ts := range []int64{1000, 999} {
		rec := e.Enrich(sample(11.0, 10.0, ts), &prior)
		if rec.VelocityKmS != 0 {
			t.Errorf("ts=%d: expected velocity=0 for non-positive elapsed, got %f", ts, rec.VelocityKmS)
		}
	}
}

func TestEnrich_OrbitPhase(t *testing.T) {
	e := New(telemetry.Coordinate{})

	tests := []struct {
		name     string
		priorLat float64
		lat      float64
		want     telemetry.OrbitPhase
	}{
		{"rising", 10.0, 11.0, telemetry.OrbitAscending},
		{"falling", 11.0, 10.0, telemetry.OrbitDescending},
		{"flat", 10.0, 10.0, telemetry.OrbitDescending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prior := sample(tt.priorLat, 0, 1000)
			rec := e.Enrich(sample(tt.lat, 0, 1010), &prior)
			if rec.OrbitPhase != tt.want {
				t.Errorf("expected %s, got %s", tt.want, rec.OrbitPhase)
			}
		})
	}
}

func TestEnrich_VelocityScenario(t *testing.T) {
	// Two samples 10 seconds apart, 0.09 degrees latitude apart (~10 km)
	// should yield roughly 1.0 km/s.
	e := New(telemetry.Coordinate{})

	prior := sample(0.0, 0.0, 1000)
	rec := e.Enrich(sample(0.09, 0.0, 1010), &prior)

	if math.Abs(rec.VelocityKmS-1.0) > 0.01 {
		t.Errorf("expected velocity near 1.0 km/s, got %f", rec.VelocityKmS)
	}
}

func TestEnrich_ReferenceDistanceZero(t *testing.T) {
	e := New(telemetry.Coordinate{Latitude: 0, Longitude: 0})

	rec := e.Enrich(sample(0, 0, 1000), nil)

	if rec.DistanceToRefKm != 0.0 {
		t.Errorf("expected distance_to_reference_km=0.00, got %f", rec.DistanceToRefKm)
	}
}

func TestEnrich_Hemispheres(t *testing.T) {
	e := New(telemetry.Coordinate{})

	tests := []struct {
		lat, lon float64
		ns, ew   string
	}{
		{10, 10, telemetry.HemisphereNorth, telemetry.HemisphereEast},
		{-10, 10, telemetry.HemisphereSouth, telemetry.HemisphereEast},
		{10, -10, telemetry.HemisphereNorth, telemetry.HemisphereWest},
		{-10, -10, telemetry.HemisphereSouth, telemetry.HemisphereWest},
		{0, 0, telemetry.HemisphereNorth, telemetry.HemisphereEast},
	}

	for _, tt := range tests {
		rec := e.Enrich(sample(tt.lat, tt.lon, 1000), nil)
		if rec.HemisphereNS != tt.ns || rec.HemisphereEW != tt.ew {
			t.Errorf("(%v,%v): expected %s/%s, got %s/%s",
				tt.lat, tt.lon, tt.ns, tt.ew, rec.HemisphereNS, rec.HemisphereEW)
		}
	}
}

func TestEnrich_Pure(t *testing.T) {
	e := New(telemetry.Coordinate{Latitude: 48.8566, Longitude: 2.3522})

	prior := sample(10.0, 20.0, 1000)
	cur := sample(10.5, 20.5, 1010)

	a := e.Enrich(cur, &prior)
	b := e.Enrich(cur, &prior)

	if a != b {
		t.Error("enrich is not deterministic for identical inputs")
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	d1 := Haversine(48.8566, 2.3522, 51.5074, -0.1278)
	d2 := Haversine(51.5074, -0.1278, 48.8566, 2.3522)

	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("haversine not symmetric: %f vs %f", d1, d2)
	}

	if d := Haversine(48.8566, 2.3522, 48.8566, 2.3522); d != 0 {
		t.Errorf("expected distance(A,A)=0, got %f", d)
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Paris to London, roughly 344 km.
	d := Haversine(48.8566, 2.3522, 51.5074, -0.1278)
	if d < 330 || d > 360 {
		t.Errorf("Paris-London distance implausible: %f km", d)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{1.23456, 4, 1.2346},
		{1.23454, 4, 1.2345},
		{-1.5, 0, -2},
		{0, 2, 0},
		{123.456, 2, 123.46},
	}

	for _, tt := range tests {
		if got := Round(tt.v, tt.places); got != tt.want {
			t.Errorf("Round(%v,%d) = %v, want %v", tt.v, tt.places, got, tt.want)
		}
	}
}
