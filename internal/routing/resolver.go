package routing

import (
	"context"
	"log"
	"sync"

	"fleetroute/internal/geo"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
)

const (
	SourceOSRM         = "osrm"
	SourceStraightLine = "straight_line"
)

// RouteFetcher is the external routing dependency of the Resolver.
type RouteFetcher interface {
	Route(ctx context.Context, waypoints []model.GeoPoint) (model.ResolvedPath, error)
}

// Resolver turns a waypoint list into a displayable path. The routing
// service is tried exactly once; any failure falls back to the
// straight-line path implied by the waypoints so that map display
// always has something to draw. Fallback is a soft event, never an
// error to the caller.
//
// Overlapping requests for the same key (cluster) are last-write-wins:
// each request takes a generation number and a response from a
// superseded generation reports itself as stale so the caller can
// avoid publishing it over a newer result.
type Resolver struct {
	fetcher RouteFetcher

	mu  sync.Mutex
	gen map[string]uint64
}

func NewResolver(f RouteFetcher) *Resolver {
	return &Resolver{fetcher: f, gen: map[string]uint64{}}
}

// Resolve fetches the path for key (cluster id or map-view token).
// The second return value reports whether this response is still the
// newest one issued for key.
func (r *Resolver) Resolve(ctx context.Context, key string, waypoints []model.GeoPoint) (model.ResolvedPath, bool) {
	gen := r.nextGen(key)

	path, err := r.fetch(ctx, waypoints)
	if err != nil {
		log.Printf("routing: falling back to straight line for %s: %v", key, err)
		path = StraightLine(waypoints)
	}
	metrics.RoutingResolves.WithLabelValues(path.Source).Inc()

	return path, r.isCurrent(key, gen)
}

func (r *Resolver) fetch(ctx context.Context, waypoints []model.GeoPoint) (model.ResolvedPath, error) {
	if r.fetcher == nil || len(waypoints) < 2 {
		return StraightLine(waypoints), nil
	}
	return r.fetcher.Route(ctx, waypoints)
}

// StraightLine is the degraded path: the waypoints themselves, with
// distance summed over the haversine legs and no duration estimate.
func StraightLine(waypoints []model.GeoPoint) model.ResolvedPath {
	p := model.ResolvedPath{
		Path:   append([]model.GeoPoint(nil), waypoints...),
		Source: SourceStraightLine,
	}
	if len(waypoints) > 1 {
		p.DistanceKm = geo.RouteDistanceKm(waypoints[0], waypoints[1:], false)
	}
	return p
}

func (r *Resolver) nextGen(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen[key]++
	return r.gen[key]
}

func (r *Resolver) isCurrent(key string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen[key] == gen
}
