// Package score ranks clusters by revenue per estimated kilometer
// relative to the active warehouse.
package score

import (
	"sort"

	"fleetroute/internal/geo"
	"fleetroute/internal/model"
)

// Rank recomputes the derived fields (TotalValue, EstimatedKm,
// Efficiency) of every cluster against warehouse w and returns the
// clusters ordered by descending efficiency.
//
// Scoring is a batch over one warehouse snapshot: partial re-scoring
// could leave clusters ranked against different warehouses, so callers
// always pass the full cluster set. Values keep full precision here;
// rounding happens at the presentation layer only.
//
// A cluster whose stops coincide with the warehouse has zero estimated
// distance and scores 0 rather than Inf/NaN, so it can never rank best.
//
// Ties on efficiency prefer the higher total value, then the caller's
// original order.
func Rank(w model.Warehouse, clusters []model.Cluster) []model.Cluster {
	out := make([]model.Cluster, len(clusters))
	copy(out, clusters)

	for i := range out {
		c := &out[i]
		total := 0.0
		points := make([]model.GeoPoint, len(c.Stops))
		for j, s := range c.Stops {
			total += s.Value
			points[j] = s.Location
		}
		c.TotalValue = total
		c.EstimatedKm = geo.RouteDistanceKm(w.Location, points, true)
		if c.EstimatedKm > 0 {
			c.Efficiency = c.TotalValue / c.EstimatedKm
		} else {
			c.Efficiency = 0
		}
		c.WarehouseID = w.ID
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Efficiency != out[j].Efficiency {
			return out[i].Efficiency > out[j].Efficiency
		}
		return out[i].TotalValue > out[j].TotalValue
	})
	return out
}
