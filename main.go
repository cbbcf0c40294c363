package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"picfinder/internal/handlers"
	"picfinder/internal/indexer"
	"picfinder/internal/logging"
	"picfinder/internal/memory"
	"picfinder/internal/middleware"
	"picfinder/internal/startup"
	"picfinder/internal/vision"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	manager := indexer.NewManager(stageFactory, indexer.Options{Monitor: monitor})
	h := handlers.New(manager, config)

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// stageFactory maps a validated run configuration to inference stages. This
// build carries no inference backend; runs with every model set to None
// still fingerprint and catalog files, which is what the search layer and
// the tests exercise. Wiring an ONNX-backed vision implementation in means
// returning it from here.
func stageFactory(cfg vision.IndexConfig) (vision.Stages, error) {
	if cfg.Classification.Enabled() || cfg.Detection.Enabled() || cfg.OCR.Enabled() {
		return vision.Stages{}, fmt.Errorf("no inference backend is available in this build, set all models to %q", vision.ModelNone)
	}
	return vision.Stages{}, nil
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/index", h.StartIndex).Methods("POST")
	api.HandleFunc("/index/progress", h.IndexProgress).Methods("GET")
	api.HandleFunc("/index/last", h.LastIndexRun).Methods("GET")
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/history", h.History).Methods("GET")

	if config.MetricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	return r
}

func handleShutdown(srv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	startup.LogShutdownComplete()
}
