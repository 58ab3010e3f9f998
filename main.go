package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iptv-scout/work/cache"
	"iptv-scout/work/client"
	"iptv-scout/work/config"
	"iptv-scout/work/database"
	"iptv-scout/work/handlers"
	"iptv-scout/work/logger"
	"iptv-scout/work/middleware"
	"iptv-scout/work/validator"
)

var (
	Version = "v0.1.0" // default version
)

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()

	// Set up logging
	level := "INFO"
	if cfg.Debug {
		level = "DEBUG"
	}
	appLog := logger.New(level)

	// Initialize HTTP client
	httpClient := client.New(client.Headers{})

	// Open the source store
	db, err := database.Open(cfg.DatabasePath, appLog)
	if err != nil {
		log.Fatalf("Failed to open source store: %v", err)
	}
	defer db.Close()

	// Initialize the result cache
	resultCache := cache.NewCache(cfg.CacheDuration, cfg.CacheEnabled)

	// Create the validation pipeline
	validatorInstance := validator.New(cfg, httpClient, appLog, resultCache)

	// Setup HTTP routes
	router := mux.NewRouter()
	router.Use(middleware.Gzip)

	// API surface: validation, detection, mac identities, source store
	api := handlers.New(cfg, httpClient, appLog, validatorInstance, db, resultCache)
	api.Register(router)

	// Metrics handler
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// show info
	appLog.Info("Starting IPTV Scout %s", Version)
	appLog.Info("Server configuration:")
	appLog.Info("  - Listen Address: %s", cfg.ListenAddr)
	appLog.Info("  - Base URL: %s", cfg.BaseURL)
	appLog.Info("  - Database Path: %s", cfg.DatabasePath)
	appLog.Info("  - Worker Threads: %d", cfg.WorkerThreads)
	appLog.Info("  - Parallel Probing: %v (workers: %d)", cfg.ProbeParallel, cfg.ProbeWorkers)
	appLog.Info("  - Cache Enabled: %v", cfg.CacheEnabled)
	appLog.Info("  - Cache Duration: %s", cfg.CacheDuration)
	appLog.Info("  - Geo Lookups: %v", cfg.GeoEnabled)
	appLog.Info("  - Debug Enabled: %v", cfg.Debug)
	appLog.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	// fire us up
	if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}

}
