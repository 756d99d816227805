package model

// Core domain types for warehouses, clusters, and the fleet.

// GeoPoint is an immutable latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Warehouse is a fixed route start point. Exactly one warehouse is
// active at a time; cluster scores are only meaningful relative to it.
type Warehouse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location GeoPoint `json:"location"`
	Vehicles int      `json:"vehicles"` // vehicles stationed here
}

// RetailerStop is one delivery stop with its declared order value.
type RetailerStop struct {
	Name      string   `json:"name"`
	Location  GeoPoint `json:"location"`
	Value     float64  `json:"value"` // order value, non-negative
	OrderRef  string   `json:"orderRef,omitempty"`
	Completed bool     `json:"completed"`
}

type ClusterStatus string

const (
	ClusterPlanned    ClusterStatus = "planned"
	ClusterAssigned   ClusterStatus = "assigned"
	ClusterInProgress ClusterStatus = "in_progress"
	ClusterCompleted  ClusterStatus = "completed"
)

// Cluster is a named group of retailer stops treated as one candidate
// delivery route. Stop membership is fixed; only completion state
// changes during execution.
//
// TotalValue, EstimatedKm and Efficiency are derived fields owned by
// the scorer. They are recomputed as a batch whenever the active
// warehouse changes and must never be edited directly.
type Cluster struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Stops           []RetailerStop `json:"stops"`
	Status          ClusterStatus  `json:"status"`
	WarehouseID     string         `json:"warehouseId,omitempty"` // warehouse the cluster is currently planned from
	AssignedVehicle string         `json:"assignedVehicleId,omitempty"`

	TotalValue  float64 `json:"totalValue"`
	EstimatedKm float64 `json:"estimatedKm"`
	Efficiency  float64 `json:"efficiency"` // value per km, 0 for degenerate distance
}

// PendingStops counts stops not yet marked complete.
func (c *Cluster) PendingStops() int {
	n := 0
	for i := range c.Stops {
		if !c.Stops[i].Completed {
			n++
		}
	}
	return n
}

type VehicleStatus string

const (
	VehicleAvailable VehicleStatus = "available"
	VehicleAssigned  VehicleStatus = "assigned"
	VehicleOnRoute   VehicleStatus = "on_route"
)

// Vehicle belongs to one warehouse. Status and AssignedRoute are owned
// by the fleet ledger; at most one cluster references a vehicle while
// it is assigned or on_route.
type Vehicle struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Category      string        `json:"category"` // bike, van, truck
	CapacityKg    int           `json:"capacityKg"`
	CostPerKm     float64       `json:"costPerKm"`
	Status        VehicleStatus `json:"status"`
	AssignedRoute string        `json:"assignedRoute,omitempty"` // name of the cluster it serves
	WarehouseID   string        `json:"warehouseId"`
}

// ResolvedPath is a driving path for map display. Source is "osrm"
// when the routing service produced the geometry and "straight_line"
// when the resolver fell back to the raw waypoints.
type ResolvedPath struct {
	Path        []GeoPoint `json:"path"`
	DistanceKm  float64    `json:"distanceKm"`
	DurationMin float64    `json:"durationMin"`
	Source      string     `json:"source"`
}

// API request/response payloads.

type AssignRequest struct {
	VehicleID string `json:"vehicleId"`
}

type StopCompleteResult struct {
	ClusterID      string `json:"clusterId"`
	StopIndex      int    `json:"stopIndex"`
	StopName       string `json:"stopName,omitempty"`
	Remaining      int    `json:"remaining"`
	RouteCompleted bool   `json:"routeCompleted"`
	TS             string `json:"ts"`
}
