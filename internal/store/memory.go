package store

import (
	"context"
	"sync"

	"fleetroute/internal/fleet"
	"fleetroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	warehouses map[string]model.Warehouse
	whOrder    []string
	activeWH   string
	clusters   map[string]model.Cluster
	clOrder    []string // ranked order after scoring, seed order before
	vehicles   map[string]model.Vehicle
	vehOrder   []string
	events     map[string][]fleet.Event // clusterId -> events, oldest first
}

func NewMemory() *Memory {
	return &Memory{
		warehouses: map[string]model.Warehouse{},
		clusters:   map[string]model.Cluster{},
		vehicles:   map[string]model.Vehicle{},
		events:     map[string][]fleet.Event{},
	}
}

// Load replaces the store contents with the given records. The first
// warehouse becomes active.
func (m *Memory) Load(ws []model.Warehouse, cs []model.Cluster, vs []model.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warehouses = map[string]model.Warehouse{}
	m.whOrder = m.whOrder[:0]
	for _, w := range ws {
		m.warehouses[w.ID] = w
		m.whOrder = append(m.whOrder, w.ID)
	}
	if len(m.whOrder) > 0 {
		m.activeWH = m.whOrder[0]
	}
	m.clusters = map[string]model.Cluster{}
	m.clOrder = m.clOrder[:0]
	for _, c := range cs {
		m.clusters[c.ID] = cloneCluster(c)
		m.clOrder = append(m.clOrder, c.ID)
	}
	m.vehicles = map[string]model.Vehicle{}
	m.vehOrder = m.vehOrder[:0]
	for _, v := range vs {
		m.vehicles[v.ID] = v
		m.vehOrder = append(m.vehOrder, v.ID)
	}
}

func (m *Memory) ListWarehouses(ctx context.Context) ([]model.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Warehouse, 0, len(m.whOrder))
	for _, id := range m.whOrder {
		out = append(out, m.warehouses[id])
	}
	return out, nil
}

func (m *Memory) GetWarehouse(ctx context.Context, id string) (model.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.warehouses[id]
	if !ok {
		return model.Warehouse{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) ActiveWarehouse(ctx context.Context) (model.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.warehouses[m.activeWH]
	if !ok {
		return model.Warehouse{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) SetActiveWarehouse(ctx context.Context, id string) (model.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.warehouses[id]
	if !ok {
		return model.Warehouse{}, ErrNotFound
	}
	m.activeWH = id
	return w, nil
}

func (m *Memory) ListClusters(ctx context.Context) ([]model.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Cluster, 0, len(m.clOrder))
	for _, id := range m.clOrder {
		out = append(out, cloneCluster(m.clusters[id]))
	}
	return out, nil
}

func (m *Memory) GetCluster(ctx context.Context, id string) (model.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clusters[id]
	if !ok {
		return model.Cluster{}, ErrNotFound
	}
	return cloneCluster(c), nil
}

// SaveCluster persists ledger-owned fields (status, vehicle reference,
// stop completion). Derived score fields stay as the store knows them;
// only ApplyScores may change those.
func (m *Memory) SaveCluster(ctx context.Context, c model.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.clusters[c.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = c.Status
	cur.AssignedVehicle = c.AssignedVehicle
	cur.Stops = append([]model.RetailerStop(nil), c.Stops...)
	m.clusters[c.ID] = cur
	return nil
}

// ApplyScores persists derived fields and the ranked order from one
// batch scoring run. Ledger-owned fields of the stored records are
// kept, so a transition that raced the scoring run is not lost.
func (m *Memory) ApplyScores(ctx context.Context, ranked []model.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order := make([]string, 0, len(ranked))
	for _, r := range ranked {
		cur, ok := m.clusters[r.ID]
		if !ok {
			continue
		}
		cur.TotalValue = r.TotalValue
		cur.EstimatedKm = r.EstimatedKm
		cur.Efficiency = r.Efficiency
		cur.WarehouseID = r.WarehouseID
		m.clusters[r.ID] = cur
		order = append(order, r.ID)
	}
	// Keep any cluster the scorer did not see at the tail.
	for _, id := range m.clOrder {
		seen := false
		for _, rid := range order {
			if rid == id {
				seen = true
				break
			}
		}
		if !seen {
			order = append(order, id)
		}
	}
	m.clOrder = order
	return nil
}

func (m *Memory) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Vehicle, 0, len(m.vehOrder))
	for _, id := range m.vehOrder {
		out = append(out, m.vehicles[id])
	}
	return out, nil
}

func (m *Memory) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return model.Vehicle{}, ErrNotFound
	}
	return v, nil
}

func (m *Memory) SaveVehicle(ctx context.Context, v model.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[v.ID]; !ok {
		return ErrNotFound
	}
	m.vehicles[v.ID] = v
	return nil
}

func (m *Memory) AppendEvent(ctx context.Context, e fleet.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ClusterID] = append(m.events[e.ClusterID], e)
	return nil
}

func (m *Memory) ListEvents(ctx context.Context, clusterID string, limit int) ([]fleet.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evts := m.events[clusterID]
	if limit <= 0 || limit > len(evts) {
		limit = len(evts)
	}
	// newest last; return the tail
	out := append([]fleet.Event(nil), evts[len(evts)-limit:]...)
	return out, nil
}

func cloneCluster(c model.Cluster) model.Cluster {
	c.Stops = append([]model.RetailerStop(nil), c.Stops...)
	return c
}
