package model

import (
	"fmt"
	"math"
)

// CoordinatePrecision is the number of decimal places used when
// canonicalizing a pin's coordinates. Five decimals is roughly one metre at
// the equator, which is tight enough to treat repeated selections of the same
// venue as one place.
const CoordinatePrecision = 5

// PlacePin is a geographic pin the user saved. PlaceID is the external place
// identifier when the pin came from a place lookup; map long-presses produce
// pins with coordinates only.
type PlacePin struct {
	Lat     float64 `json:"lat" bson:"lat"`
	Lng     float64 `json:"lng" bson:"lng"`
	Label   string  `json:"label" bson:"label"`
	PlaceID string  `json:"placeId,omitempty" bson:"placeId,omitempty"`
}

// Validate checks that the pin's coordinates are on the globe.
func (p PlacePin) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("coordinates out of range: lat=%f lng=%f", p.Lat, p.Lng)
	}
	return nil
}

// Key derives the canonical identity key for the pin. Pins carrying an
// external place id key on it; coordinate-only pins key on the rounded
// coordinates. The key is stable under repeated canonicalization.
func (p PlacePin) Key() string {
	if p.PlaceID != "" {
		return "g_" + p.PlaceID
	}
	return fmt.Sprintf("%.5f_%.5f", roundCoordinate(p.Lat), roundCoordinate(p.Lng))
}

// SamePlace reports whether two pins identify the same real-world place.
// When both pins carry an external place id the id comparison wins; otherwise
// the rounded coordinates decide.
func SamePlace(a, b PlacePin) bool {
	if a.PlaceID != "" && b.PlaceID != "" {
		return a.PlaceID == b.PlaceID
	}
	return roundCoordinate(a.Lat) == roundCoordinate(b.Lat) &&
		roundCoordinate(a.Lng) == roundCoordinate(b.Lng)
}

// Canonical returns a copy of the pin with its coordinates rounded to the
// canonical precision.
func (p PlacePin) Canonical() PlacePin {
	p.Lat = roundCoordinate(p.Lat)
	p.Lng = roundCoordinate(p.Lng)
	return p
}

func roundCoordinate(v float64) float64 {
	shift := math.Pow10(CoordinatePrecision)
	return math.Round(v*shift) / shift
}
