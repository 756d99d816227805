// Package geo provides great-circle distance estimates used to rank
// candidate delivery routes before the routing service refines them.
package geo

import (
	"math"

	"fleetroute/internal/model"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between two
// points in kilometers. Inputs are not validated; out-of-range degrees
// produce a mathematically defined result.
func DistanceKm(a, b model.GeoPoint) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// RouteDistanceKm sums consecutive haversine legs from start through
// stops in the given order, optionally closing the loop back to start.
// The stop order is taken as supplied; no reordering is attempted.
// An empty stop list yields 0 regardless of returnToStart.
//
// This is a straight-line estimate only; the routing resolver produces
// the drivable distance.
func RouteDistanceKm(start model.GeoPoint, stops []model.GeoPoint, returnToStart bool) float64 {
	if len(stops) == 0 {
		return 0
	}
	total := 0.0
	prev := start
	for _, p := range stops {
		total += DistanceKm(prev, p)
		prev = p
	}
	if returnToStart {
		total += DistanceKm(prev, start)
	}
	return total
}
