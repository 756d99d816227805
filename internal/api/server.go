package api

import (
	"context"
	"log"
	"strings"
	"sync"

	"fleetroute/internal/config"
	"fleetroute/internal/fleet"
	"fleetroute/internal/metrics"
	"fleetroute/internal/routing"
	"fleetroute/internal/score"
	"fleetroute/internal/store"
)

type Server struct {
	Store    store.Store
	Ledger   *fleet.Ledger
	Resolver *routing.Resolver
	Broker   EventBroker
	Cfg      config.Config

	// muts serializes each load-transition-save round trip. The ledger
	// mutex alone only covers the in-memory transition; without this a
	// second request can load the same records before the first one
	// saves, and both pass validation.
	muts sync.Mutex
}

// NewServer wires storage, broker, ledger and the route resolver.
// With no databaseUrl configured it runs on the in-memory store with demo data.
func NewServer(cfg config.Config) (*Server, error) {
	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		mem := store.NewMemory()
		mem.Load(store.Seed())
		st = mem
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if cfg.Migrate {
			_ = sp.MigrateDir("db/migrations")
		}
		st = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker unavailable, using in-process broker: %v", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	s := &Server{
		Store:    st,
		Resolver: routing.NewResolver(routing.NewClient(cfg.OSRMURL, cfg.OSRMTimeout())),
		Broker:   broker,
		Cfg:      cfg,
	}
	s.Ledger = fleet.NewLedger(s.onLedgerEvent)

	// Score clusters against the active warehouse on boot so the first
	// list request already carries rankings.
	if err := s.rescore(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// onLedgerEvent persists accepted transitions and fans them out to stream
// subscribers. Persistence failures are logged, not surfaced: the transition
// itself has already been accepted.
func (s *Server) onLedgerEvent(e fleet.Event) {
	if err := s.Store.AppendEvent(context.Background(), e); err != nil {
		log.Printf("append event %s: %v", e.Type, err)
	}
	data := map[string]any{"clusterId": e.ClusterID, "ts": e.TS}
	if e.VehicleID != "" {
		data["vehicleId"] = e.VehicleID
	}
	for k, v := range e.Data {
		data[k] = v
	}
	s.Broker.Publish(e.ClusterID, SSEEvent{Type: e.Type, Data: data})
}

// rescore recomputes distance, value and efficiency for every cluster
// relative to the active warehouse and persists the ranking.
func (s *Server) rescore(ctx context.Context) error {
	w, err := s.Store.ActiveWarehouse(ctx)
	if err != nil {
		return err
	}
	clusters, err := s.Store.ListClusters(ctx)
	if err != nil {
		return err
	}
	ranked := score.Rank(w, clusters)
	metrics.ScoreRuns.Inc()
	return s.Store.ApplyScores(ctx, ranked)
}
