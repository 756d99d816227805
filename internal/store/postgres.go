package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetroute/internal/fleet"
	"fleetroute/internal/model"
)

// Postgres persists warehouses, clusters, fleet, and progress events.
// Ranked cluster order is kept as a rank column written by ApplyScores.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir executes the .sql files of dir in lexical order. Dev
// helper; production schemas are managed externally.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) ListWarehouses(ctx context.Context) ([]model.Warehouse, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, lat, lng, vehicles FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Warehouse{}
	for rows.Next() {
		var w model.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Location.Lat, &w.Location.Lng, &w.Vehicles); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) GetWarehouse(ctx context.Context, id string) (model.Warehouse, error) {
	var w model.Warehouse
	err := p.db.QueryRowContext(ctx, `SELECT id, name, lat, lng, vehicles FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Name, &w.Location.Lat, &w.Location.Lng, &w.Vehicles)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Warehouse{}, ErrNotFound
	}
	return w, err
}

func (p *Postgres) ActiveWarehouse(ctx context.Context) (model.Warehouse, error) {
	var w model.Warehouse
	err := p.db.QueryRowContext(ctx, `SELECT id, name, lat, lng, vehicles FROM warehouses WHERE active LIMIT 1`).
		Scan(&w.ID, &w.Name, &w.Location.Lat, &w.Location.Lng, &w.Vehicles)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Warehouse{}, ErrNotFound
	}
	return w, err
}

func (p *Postgres) SetActiveWarehouse(ctx context.Context, id string) (model.Warehouse, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Warehouse{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE warehouses SET active = (id = $1)`, id)
	if err != nil {
		return model.Warehouse{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Warehouse{}, ErrNotFound
	}
	var w model.Warehouse
	err = tx.QueryRowContext(ctx, `SELECT id, name, lat, lng, vehicles FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Name, &w.Location.Lat, &w.Location.Lng, &w.Vehicles)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Warehouse{}, ErrNotFound
	}
	if err != nil {
		return model.Warehouse{}, err
	}
	return w, tx.Commit()
}

func (p *Postgres) ListClusters(ctx context.Context) ([]model.Cluster, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, status, warehouse_id, assigned_vehicle, total_value, estimated_km, efficiency FROM clusters ORDER BY rank, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Cluster{}
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		stops, err := p.loadStops(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Stops = stops
	}
	return out, nil
}

func (p *Postgres) GetCluster(ctx context.Context, id string) (model.Cluster, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, name, status, warehouse_id, assigned_vehicle, total_value, estimated_km, efficiency FROM clusters WHERE id=$1`, id)
	c, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Cluster{}, ErrNotFound
	}
	if err != nil {
		return model.Cluster{}, err
	}
	c.Stops, err = p.loadStops(ctx, id)
	return c, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanCluster(r rowScanner) (model.Cluster, error) {
	var c model.Cluster
	var wh, veh sql.NullString
	err := r.Scan(&c.ID, &c.Name, &c.Status, &wh, &veh, &c.TotalValue, &c.EstimatedKm, &c.Efficiency)
	c.WarehouseID = wh.String
	c.AssignedVehicle = veh.String
	return c, err
}

func (p *Postgres) loadStops(ctx context.Context, clusterID string) ([]model.RetailerStop, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name, lat, lng, value, order_ref, completed FROM stops WHERE cluster_id=$1 ORDER BY seq`, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RetailerStop{}
	for rows.Next() {
		var s model.RetailerStop
		var ref sql.NullString
		if err := rows.Scan(&s.Name, &s.Location.Lat, &s.Location.Lng, &s.Value, &ref, &s.Completed); err != nil {
			return nil, err
		}
		s.OrderRef = ref.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveCluster(ctx context.Context, c model.Cluster) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE clusters SET status=$2, assigned_vehicle=$3 WHERE id=$1`,
		c.ID, c.Status, nullIfEmpty(c.AssignedVehicle))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for i, s := range c.Stops {
		if _, err := tx.ExecContext(ctx, `UPDATE stops SET completed=$3 WHERE cluster_id=$1 AND seq=$2`,
			c.ID, i, s.Completed); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ApplyScores(ctx context.Context, ranked []model.Cluster) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, c := range ranked {
		if _, err := tx.ExecContext(ctx, `UPDATE clusters SET total_value=$2, estimated_km=$3, efficiency=$4, warehouse_id=$5, rank=$6 WHERE id=$1`,
			c.ID, c.TotalValue, c.EstimatedKm, c.Efficiency, nullIfEmpty(c.WarehouseID), i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, category, capacity_kg, cost_per_km, status, assigned_route, warehouse_id FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		var route sql.NullString
		if err := rows.Scan(&v.ID, &v.Name, &v.Category, &v.CapacityKg, &v.CostPerKm, &v.Status, &route, &v.WarehouseID); err != nil {
			return nil, err
		}
		v.AssignedRoute = route.String
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var v model.Vehicle
	var route sql.NullString
	err := p.db.QueryRowContext(ctx, `SELECT id, name, category, capacity_kg, cost_per_km, status, assigned_route, warehouse_id FROM vehicles WHERE id=$1`, id).
		Scan(&v.ID, &v.Name, &v.Category, &v.CapacityKg, &v.CostPerKm, &v.Status, &route, &v.WarehouseID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vehicle{}, ErrNotFound
	}
	v.AssignedRoute = route.String
	return v, err
}

func (p *Postgres) SaveVehicle(ctx context.Context, v model.Vehicle) error {
	res, err := p.db.ExecContext(ctx, `UPDATE vehicles SET status=$2, assigned_route=$3 WHERE id=$1`,
		v.ID, v.Status, nullIfEmpty(v.AssignedRoute))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AppendEvent(ctx context.Context, e fleet.Event) error {
	data, _ := json.Marshal(e.Data)
	_, err := p.db.ExecContext(ctx, `INSERT INTO route_events (id, cluster_id, type, vehicle_id, ts, data) VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.ClusterID, e.Type, nullIfEmpty(e.VehicleID), e.TS, data)
	return err
}

func (p *Postgres) ListEvents(ctx context.Context, clusterID string, limit int) ([]fleet.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id, cluster_id, type, vehicle_id, ts, data FROM route_events WHERE cluster_id=$1 ORDER BY ts DESC LIMIT $2`, clusterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []fleet.Event{}
	for rows.Next() {
		var e fleet.Event
		var veh sql.NullString
		var data []byte
		if err := rows.Scan(&e.ID, &e.ClusterID, &e.Type, &veh, &e.TS, &data); err != nil {
			return nil, err
		}
		e.VehicleID = veh.String
		if len(data) > 0 {
			_ = json.Unmarshal(data, &e.Data)
		}
		out = append(out, e)
	}
	// oldest first, matching the memory store
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
