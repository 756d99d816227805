package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetroute/internal/api"
	"fleetroute/internal/buildinfo"
	"fleetroute/internal/config"
	"fleetroute/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	mux := http.NewServeMux()

	// Warehouses
	mux.HandleFunc("/v1/warehouses", srvDeps.WarehousesHandler)
	mux.HandleFunc("/v1/warehouses/", srvDeps.WarehouseByIDHandler) // includes /activate

	// Clusters
	mux.HandleFunc("/v1/clusters", srvDeps.ClustersHandler)
	mux.HandleFunc("/v1/clusters/", srvDeps.ClusterByIDHandler) // includes /assign, /start, /stops/complete, /cancel, /path, /events, /events/stream

	// Vehicles
	mux.HandleFunc("/v1/vehicles", srvDeps.VehiclesHandler)

	// WebSocket live feed
	mux.HandleFunc("/v1/events/ws", srvDeps.EventsWSHandler)

	// Health and introspection
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	handler := api.LogMiddleware(api.RateLimitMiddleware(cfg.RateRPS, cfg.RateBurst, mux))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("API %s listening on %s", buildinfo.Version, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
