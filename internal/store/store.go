package store

import (
	"context"
	"errors"

	"fleetroute/internal/fleet"
	"fleetroute/internal/model"
)

// Store is the persistence interface used by the API server.
//
// Ownership split: cluster/vehicle status mutations arrive via
// SaveCluster/SaveVehicle after the fleet ledger has applied them;
// derived score fields arrive only via ApplyScores after a batch
// scoring run. Neither path writes the other's fields.
type Store interface {
	// Warehouses
	ListWarehouses(ctx context.Context) ([]model.Warehouse, error)
	GetWarehouse(ctx context.Context, id string) (model.Warehouse, error)
	ActiveWarehouse(ctx context.Context) (model.Warehouse, error)
	SetActiveWarehouse(ctx context.Context, id string) (model.Warehouse, error)

	// Clusters, in ranked order once scored
	ListClusters(ctx context.Context) ([]model.Cluster, error)
	GetCluster(ctx context.Context, id string) (model.Cluster, error)
	SaveCluster(ctx context.Context, c model.Cluster) error
	ApplyScores(ctx context.Context, ranked []model.Cluster) error

	// Fleet
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
	SaveVehicle(ctx context.Context, v model.Vehicle) error

	// Progress history
	AppendEvent(ctx context.Context, e fleet.Event) error
	ListEvents(ctx context.Context, clusterID string, limit int) ([]fleet.Event, error)
}

var ErrNotFound = errors.New("not found")
