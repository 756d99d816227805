package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetroute/internal/buildinfo"
	"fleetroute/internal/fleet"
	"fleetroute/internal/model"
	"fleetroute/internal/store"
)

// WarehousesHandler handles GET /v1/warehouses
func (s *Server) WarehousesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.ListWarehouses(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List warehouses failed", err.Error(), r.URL.Path)
		return
	}
	active, _ := s.Store.ActiveWarehouse(r.Context())
	out := make([]map[string]any, 0, len(items))
	for _, wh := range items {
		out = append(out, map[string]any{
			"id":       wh.ID,
			"name":     wh.Name,
			"location": wh.Location,
			"vehicles": wh.Vehicles,
			"active":   wh.ID == active.ID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// WarehouseByIDHandler handles POST /v1/warehouses/{id}/activate
func (s *Server) WarehouseByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/warehouses/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 2 && parts[1] == "activate" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		wh, err := s.Store.SetActiveWarehouse(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Warehouse not found", id, r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Activate warehouse failed", err.Error(), r.URL.Path)
			return
		}
		// Switching the origin invalidates every cluster score.
		if err := s.rescore(r.Context()); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Rescore failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, wh)
		return
	}
	if r.Method != http.MethodGet || len(parts) != 1 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	wh, err := s.Store.GetWarehouse(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Warehouse not found", id, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

// clusterView is the list/detail projection: distances and efficiency are
// rounded for display, raw figures stay in the store.
type clusterView struct {
	model.Cluster
	EstimatedKm float64 `json:"estimatedKm"`
	Efficiency  float64 `json:"efficiency"`
	Pending     int     `json:"pendingStops"`
	Best        bool    `json:"best,omitempty"`
}

func viewOf(c model.Cluster) clusterView {
	return clusterView{
		Cluster:     c,
		EstimatedKm: math.Round(c.EstimatedKm*10) / 10,
		Efficiency:  math.Round(c.Efficiency),
		Pending:     c.PendingStops(),
	}
}

// ClustersHandler handles GET /v1/clusters
func (s *Server) ClustersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	clusters, err := s.Store.ListClusters(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List clusters failed", err.Error(), r.URL.Path)
		return
	}
	views := make([]clusterView, 0, len(clusters))
	for i, c := range clusters {
		v := viewOf(c)
		// store keeps clusters in ranked order; the head is the pick
		if i == 0 && c.Efficiency > 0 {
			v.Best = true
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

// ClusterByIDHandler handles GET /v1/clusters/{id} plus the assign, start,
// stops/complete, cancel, path and events subresources.
func (s *Server) ClusterByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/clusters/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]

	if len(parts) == 3 && parts[1] == "events" && parts[2] == "stream" {
		s.streamClusterEvents(w, r, id)
		return
	}
	if len(parts) == 2 && parts[1] == "events" {
		s.clusterEvents(w, r, id)
		return
	}
	if len(parts) == 2 && parts[1] == "path" {
		s.clusterPath(w, r, id)
		return
	}
	if len(parts) == 2 && parts[1] == "assign" {
		s.assignCluster(w, r, id)
		return
	}
	if len(parts) == 2 && parts[1] == "start" {
		s.startCluster(w, r, id)
		return
	}
	if len(parts) == 3 && parts[1] == "stops" && parts[2] == "complete" {
		s.completeStop(w, r, id)
		return
	}
	if len(parts) == 2 && parts[1] == "cancel" {
		s.cancelCluster(w, r, id)
		return
	}
	if len(parts) != 1 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	c, err := s.Store.GetCluster(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Cluster not found", id, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (s *Server) clusterPath(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	c, err := s.Store.GetCluster(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Cluster not found", id, r.URL.Path)
		return
	}
	wh, err := s.Store.ActiveWarehouse(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "No active warehouse", err.Error(), r.URL.Path)
		return
	}
	waypoints := make([]model.GeoPoint, 0, len(c.Stops)+1)
	waypoints = append(waypoints, wh.Location)
	for _, st := range c.Stops {
		waypoints = append(waypoints, st.Location)
	}
	path, current := s.Resolver.Resolve(r.Context(), id, waypoints)
	if !current {
		writeProblem(w, http.StatusConflict, "Path superseded", "a newer path request replaced this one", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clusterId":   id,
		"path":        path.Path,
		"distanceKm":  path.DistanceKm,
		"durationMin": path.DurationMin,
		"source":      path.Source,
	})
}

func (s *Server) assignCluster(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.VehicleID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing vehicleId", "", r.URL.Path)
		return
	}
	s.muts.Lock()
	defer s.muts.Unlock()
	c, err := s.Store.GetCluster(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Cluster not found", id, r.URL.Path)
		return
	}
	v, err := s.Store.GetVehicle(r.Context(), req.VehicleID)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Vehicle not found", req.VehicleID, r.URL.Path)
		return
	}
	var prev *model.Vehicle
	if c.AssignedVehicle != "" && c.AssignedVehicle != v.ID {
		if pv, err := s.Store.GetVehicle(r.Context(), c.AssignedVehicle); err == nil {
			prev = &pv
		}
	}
	if err := s.Ledger.Assign(&c, &v, prev); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if err := s.saveAssignment(r, c, v, prev); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cluster": viewOf(c), "vehicle": v})
}

func (s *Server) startCluster(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.muts.Lock()
	defer s.muts.Unlock()
	c, v, ok := s.loadClusterVehicle(w, r, id)
	if !ok {
		return
	}
	if err := s.Ledger.Start(&c, v); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if err := s.saveAssignment(r, c, *v, nil); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cluster": viewOf(c), "vehicle": v})
}

func (s *Server) completeStop(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.muts.Lock()
	defer s.muts.Unlock()
	c, v, ok := s.loadClusterVehicle(w, r, id)
	if !ok {
		return
	}
	res, err := s.Ledger.MarkStopComplete(&c, v)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	var saveErr error
	if v != nil {
		saveErr = s.saveAssignment(r, c, *v, nil)
	} else {
		saveErr = s.Store.SaveCluster(r.Context(), c)
	}
	if saveErr != nil {
		writeProblem(w, http.StatusInternalServerError, "Save failed", saveErr.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) cancelCluster(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.muts.Lock()
	defer s.muts.Unlock()
	c, v, ok := s.loadClusterVehicle(w, r, id)
	if !ok {
		return
	}
	if err := s.Ledger.Cancel(&c, v); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	var saveErr error
	if v != nil {
		saveErr = s.saveAssignment(r, c, *v, nil)
	} else {
		saveErr = s.Store.SaveCluster(r.Context(), c)
	}
	if saveErr != nil {
		writeProblem(w, http.StatusInternalServerError, "Save failed", saveErr.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cluster": viewOf(c)})
}

func (s *Server) clusterEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.Store.GetCluster(r.Context(), id); err != nil {
		writeProblem(w, http.StatusNotFound, "Cluster not found", id, r.URL.Path)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := s.Store.ListEvents(r.Context(), id, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List events failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}

func (s *Server) streamClusterEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	// initial heartbeat
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"clusterId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"clusterId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// VehiclesHandler handles GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.ListVehicles(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
		return
	}
	if wh := r.URL.Query().Get("warehouseId"); wh != "" {
		filtered := items[:0]
		for _, v := range items {
			if v.WarehouseID == wh {
				filtered = append(filtered, v)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HealthHandler handles /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

// ReadyHandler handles /readyz; ready means a warehouse is active.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.ActiveWarehouse(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// loadClusterVehicle fetches the cluster plus its assigned vehicle, if any.
// Writes the problem response itself when the cluster is missing.
func (s *Server) loadClusterVehicle(w http.ResponseWriter, r *http.Request, id string) (model.Cluster, *model.Vehicle, bool) {
	c, err := s.Store.GetCluster(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Cluster not found", id, r.URL.Path)
		return model.Cluster{}, nil, false
	}
	var v *model.Vehicle
	if c.AssignedVehicle != "" {
		if veh, err := s.Store.GetVehicle(r.Context(), c.AssignedVehicle); err == nil {
			v = &veh
		}
	}
	return c, v, true
}

func (s *Server) saveAssignment(r *http.Request, c model.Cluster, v model.Vehicle, prev *model.Vehicle) error {
	if err := s.Store.SaveCluster(r.Context(), c); err != nil {
		return err
	}
	if err := s.Store.SaveVehicle(r.Context(), v); err != nil {
		return err
	}
	if prev != nil {
		return s.Store.SaveVehicle(r.Context(), *prev)
	}
	return nil
}

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *fleet.Rejection
	if errors.As(err, &rej) {
		writeProblem(w, http.StatusConflict, "Transition rejected", rej.Reason, r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Transition failed", err.Error(), r.URL.Path)
}
