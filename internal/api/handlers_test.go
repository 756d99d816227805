package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetroute/internal/config"
	"fleetroute/internal/routing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{OSRMURL: "http://127.0.0.1:1", OSRMTimeoutMs: 500}
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

type clusterItem struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	AssignedVehicle string  `json:"assignedVehicleId"`
	TotalValue      float64 `json:"totalValue"`
	EstimatedKm     float64 `json:"estimatedKm"`
	Efficiency      float64 `json:"efficiency"`
	Pending         int     `json:"pendingStops"`
	Best            bool    `json:"best"`
}

func listClusters(t *testing.T, s *Server) []clusterItem {
	t.Helper()
	rr := httptest.NewRecorder()
	s.ClustersHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/clusters", nil))
	if rr.Code != 200 {
		t.Fatalf("clusters list: got %d", rr.Code)
	}
	var out struct {
		Items []clusterItem `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.Items
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestClustersRankedAndRounded(t *testing.T) {
	s := newTestServer(t)
	items := listClusters(t, s)
	if len(items) == 0 {
		t.Fatal("no clusters")
	}
	for i, c := range items {
		if c.EstimatedKm != math.Round(c.EstimatedKm*10)/10 {
			t.Fatalf("cluster %s estimatedKm %v not rounded", c.ID, c.EstimatedKm)
		}
		if c.Efficiency != math.Round(c.Efficiency) {
			t.Fatalf("cluster %s efficiency %v not rounded", c.ID, c.Efficiency)
		}
		if i > 0 && c.Efficiency > items[i-1].Efficiency {
			t.Fatalf("ranking broken: %s (%v) after %s (%v)", c.ID, c.Efficiency, items[i-1].ID, items[i-1].Efficiency)
		}
	}
	if !items[0].Best {
		t.Fatal("top cluster should carry the best flag")
	}
	for _, c := range items[1:] {
		if c.Best {
			t.Fatalf("cluster %s should not be best", c.ID)
		}
	}
}

func TestActivateWarehouseRescores(t *testing.T) {
	s := newTestServer(t)
	before := listClusters(t, s)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/warehouses/wh_atl/activate", nil)
	s.WarehouseByIDHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("activate: got %d: %s", rr.Code, rr.Body.String())
	}

	after := listClusters(t, s)
	byID := map[string]clusterItem{}
	for _, c := range before {
		byID[c.ID] = c
	}
	changed := false
	for _, c := range after {
		if byID[c.ID].EstimatedKm != c.EstimatedKm {
			changed = true
			break
		}
	}
	if !changed {
		t.Fatal("activating another warehouse should change estimated distances")
	}

	// active flag moves on the warehouse list
	rr = httptest.NewRecorder()
	s.WarehousesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/warehouses", nil))
	var out struct {
		Items []struct {
			ID     string `json:"id"`
			Active bool   `json:"active"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, wh := range out.Items {
		if wh.Active != (wh.ID == "wh_atl") {
			t.Fatalf("warehouse %s active=%v", wh.ID, wh.Active)
		}
	}
}

func TestActivateUnknownWarehouse(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.WarehouseByIDHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/warehouses/wh_nope/activate", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
}

func postCluster(t *testing.T, s *Server, id, action string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/clusters/"+id+"/"+action, rd)
	req.Header.Set("Content-Type", "application/json")
	s.ClusterByIDHandler(rr, req)
	return rr
}

func TestAssignStartCompleteFlow(t *testing.T) {
	s := newTestServer(t)
	items := listClusters(t, s)
	cid := items[0].ID

	rr := postCluster(t, s, cid, "assign", map[string]string{"vehicleId": "veh_1"})
	if rr.Code != 200 {
		t.Fatalf("assign: %d: %s", rr.Code, rr.Body.String())
	}
	rr = postCluster(t, s, cid, "start", nil)
	if rr.Code != 200 {
		t.Fatalf("start: %d: %s", rr.Code, rr.Body.String())
	}

	// vehicle goes on route and is persisted that way
	veh, err := s.Store.GetVehicle(context.Background(), "veh_1")
	if err != nil || string(veh.Status) != "on_route" {
		t.Fatalf("vehicle after start: %+v err=%v", veh, err)
	}

	c, _ := s.Store.GetCluster(context.Background(), cid)
	stops := len(c.Stops)
	for i := 0; i < stops; i++ {
		rr = postCluster(t, s, cid, "stops/complete", nil)
		if rr.Code != 200 {
			t.Fatalf("complete stop %d: %d: %s", i, rr.Code, rr.Body.String())
		}
		var res struct {
			Remaining      int  `json:"remaining"`
			RouteCompleted bool `json:"routeCompleted"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if res.Remaining != stops-i-1 {
			t.Fatalf("remaining = %d, want %d", res.Remaining, stops-i-1)
		}
		if res.RouteCompleted != (i == stops-1) {
			t.Fatalf("routeCompleted = %v on stop %d", res.RouteCompleted, i)
		}
	}

	c, _ = s.Store.GetCluster(context.Background(), cid)
	if string(c.Status) != "completed" {
		t.Fatalf("cluster status = %s", c.Status)
	}
	veh, _ = s.Store.GetVehicle(context.Background(), "veh_1")
	if string(veh.Status) != "available" || veh.AssignedRoute != "" {
		t.Fatalf("vehicle not released: %+v", veh)
	}

	// history recorded the full lifecycle
	rr = httptest.NewRecorder()
	s.ClusterByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/clusters/"+cid+"/events", nil))
	if rr.Code != 200 {
		t.Fatalf("events: %d", rr.Code)
	}
	var ev struct {
		Items []struct {
			Type string `json:"type"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ev.Items) < stops+3 { // assigned + started + per-stop + completed
		t.Fatalf("got %d events", len(ev.Items))
	}
}

func TestAssignRejectsForeignVehicle(t *testing.T) {
	s := newTestServer(t)
	items := listClusters(t, s)
	// veh_5 is stationed at wh_atl; clusters are scored from wh_tvm
	rr := postCluster(t, s, items[0].ID, "assign", map[string]string{"vehicleId": "veh_5"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409: %s", rr.Code, rr.Body.String())
	}
	var p Problem
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Detail == "" {
		t.Fatal("rejection should carry a reason")
	}
}

func TestConcurrentAssignsSingleVehicle(t *testing.T) {
	s := newTestServer(t)

	for round := 0; round < 20; round++ {
		results := make(chan int, 2)
		var wg sync.WaitGroup
		for _, cid := range []string{"cl_attingal", "cl_varkala"} {
			wg.Add(1)
			go func(cid string) {
				defer wg.Done()
				rr := postCluster(t, s, cid, "assign", map[string]string{"vehicleId": "veh_1"})
				results <- rr.Code
			}(cid)
		}
		wg.Wait()
		close(results)

		codes := map[int]int{}
		for code := range results {
			codes[code]++
		}
		if codes[200] != 1 || codes[http.StatusConflict] != 1 {
			t.Fatalf("round %d: codes %v, want one 200 and one 409", round, codes)
		}

		holders := []string{}
		for _, cid := range []string{"cl_attingal", "cl_varkala"} {
			c, err := s.Store.GetCluster(context.Background(), cid)
			if err != nil {
				t.Fatalf("GetCluster %s: %v", cid, err)
			}
			if c.AssignedVehicle == "veh_1" {
				holders = append(holders, cid)
			}
		}
		if len(holders) != 1 {
			t.Fatalf("round %d: veh_1 held by %v", round, holders)
		}

		// release for the next round
		if rr := postCluster(t, s, holders[0], "cancel", nil); rr.Code != 200 {
			t.Fatalf("round %d: cancel: %d", round, rr.Code)
		}
	}
}

func TestStartWithoutAssignRejected(t *testing.T) {
	s := newTestServer(t)
	items := listClusters(t, s)
	rr := postCluster(t, s, items[0].ID, "start", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", rr.Code)
	}
}

func TestAssignInvalidBody(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/clusters/cl_varkala/assign", strings.NewReader("{nope"))
	s.ClusterByIDHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestCancelReleasesVehicle(t *testing.T) {
	s := newTestServer(t)
	items := listClusters(t, s)
	cid := items[0].ID
	if rr := postCluster(t, s, cid, "assign", map[string]string{"vehicleId": "veh_2"}); rr.Code != 200 {
		t.Fatalf("assign: %d", rr.Code)
	}
	if rr := postCluster(t, s, cid, "cancel", nil); rr.Code != 200 {
		t.Fatalf("cancel: %d", rr.Code)
	}
	veh, _ := s.Store.GetVehicle(context.Background(), "veh_2")
	if string(veh.Status) != "available" {
		t.Fatalf("vehicle after cancel: %+v", veh)
	}
	c, _ := s.Store.GetCluster(context.Background(), cid)
	if string(c.Status) != "planned" || c.AssignedVehicle != "" {
		t.Fatalf("cluster after cancel: %+v", c)
	}
}

func TestClusterPathFromOSRM(t *testing.T) {
	osrm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":12400,"duration":1260,"geometry":{"coordinates":[[76.9366,8.5241],[76.7164,8.7379]]}}]}`)
	}))
	defer osrm.Close()

	s := newTestServer(t)
	s.Resolver = routing.NewResolver(routing.NewClient(osrm.URL, time.Second))

	items := listClusters(t, s)
	rr := httptest.NewRecorder()
	s.ClusterByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/clusters/"+items[0].ID+"/path", nil))
	if rr.Code != 200 {
		t.Fatalf("path: %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Source      string  `json:"source"`
		DistanceKm  float64 `json:"distanceKm"`
		DurationMin float64 `json:"durationMin"`
		Path        []struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"path"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Source != "osrm" {
		t.Fatalf("source = %s", out.Source)
	}
	if out.DistanceKm != 12.4 || out.DurationMin != 21 {
		t.Fatalf("distance %v duration %v", out.DistanceKm, out.DurationMin)
	}
	if len(out.Path) != 2 || out.Path[0].Lat != 8.5241 {
		t.Fatalf("path = %+v", out.Path)
	}
}

func TestClusterPathFallsBack(t *testing.T) {
	s := newTestServer(t) // OSRM URL points nowhere
	items := listClusters(t, s)
	cid := items[0].ID

	rr := httptest.NewRecorder()
	s.ClusterByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/clusters/"+cid+"/path", nil))
	if rr.Code != 200 {
		t.Fatalf("path: %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Source string `json:"source"`
		Path   []any  `json:"path"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Source != "straight_line" {
		t.Fatalf("source = %s", out.Source)
	}
	c, _ := s.Store.GetCluster(context.Background(), cid)
	if len(out.Path) != len(c.Stops)+1 {
		t.Fatalf("path has %d points, want %d", len(out.Path), len(c.Stops)+1)
	}
}

func TestClusterPathUnknownCluster(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.ClusterByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/clusters/cl_nope/path", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
}

func TestVehiclesFilterByWarehouse(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.VehiclesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/vehicles?warehouseId=wh_atl", nil))
	if rr.Code != 200 {
		t.Fatalf("vehicles: %d", rr.Code)
	}
	var out struct {
		Items []struct {
			WarehouseID string `json:"warehouseId"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("got %d vehicles, want 2", len(out.Items))
	}
	for _, v := range out.Items {
		if v.WarehouseID != "wh_atl" {
			t.Fatalf("leaked vehicle from %s", v.WarehouseID)
		}
	}
}

func TestSSEStreamDeliversLedgerEvents(t *testing.T) {
	s := newTestServer(t)
	items := listClusters(t, s)
	cid := items[0].ID

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/clusters/"+cid+"/events/stream", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		s.ClusterByIDHandler(rr, req)
		close(done)
	}()

	// give the stream a moment to subscribe, then drive a transition
	time.Sleep(50 * time.Millisecond)
	if resp := postCluster(t, s, cid, "assign", map[string]string{"vehicleId": "veh_1"}); resp.Code != 200 {
		t.Fatalf("assign: %d", resp.Code)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rr.Body.String()
	if !strings.Contains(body, "event: heartbeat") {
		t.Fatalf("missing heartbeat: %q", body)
	}
	if !strings.Contains(body, "event: cluster.assigned") {
		t.Fatalf("missing assignment event: %q", body)
	}
	if !strings.Contains(body, "veh_1") {
		t.Fatalf("event payload missing vehicle: %q", body)
	}
}
