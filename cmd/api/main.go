package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"property-listing-api/internal/cleanup"
	"property-listing-api/internal/config"
	"property-listing-api/internal/database"
	"property-listing-api/internal/handlers"
	"property-listing-api/internal/ratelimit"
	"property-listing-api/internal/scheduler"
	"property-listing-api/internal/search"
	"property-listing-api/internal/service"
	"property-listing-api/internal/storage"
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "config/config.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", configPath, err)
	}
	log.Printf("Loaded configuration (env: %s, db: %s, auth: %s)",
		appConfig.Server.Environment, appConfig.Database.Type, appConfig.Auth.Mode)

	handlers.SetGinMode(&appConfig.Server)

	gormDB, err := database.Open(appConfig.Database)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", appConfig.Database.Type, err)
	}
	defer gormDB.Close()

	// Initialize schema with GORM AutoMigrate
	if err := gormDB.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	files, err := storage.NewLocalStorage(
		appConfig.Storage.Dir,
		appConfig.Storage.PublicPrefix,
		appConfig.Storage.MaxFileSize(),
	)
	if err != nil {
		log.Fatalf("Failed to initialize image storage: %v", err)
	}
	log.Printf("Image storage at %s served under %s", files.Root(), files.PublicPrefix())

	// Search is optional; every consumer treats a nil interface as disabled
	var (
		indexer   service.Indexer
		searcher  handlers.Searcher
		reindexer scheduler.Reindexer
	)
	if appConfig.Search.Enabled {
		ms := appConfig.Search.Meilisearch
		searchClient := search.NewSearchClient(ms.Host, ms.APIKey, ms.Index)
		if err := searchClient.InitIndex(); err != nil {
			log.Printf("Warning: Failed to initialize search index: %v", err)
		}
		// listing writes must not stall on an unreachable search node
		indexer = search.NewGuardedIndexer(searchClient, search.NewCircuitBreaker(3, time.Minute))
		searcher = searchClient
		reindexer = search.NewSyncer(searchClient, gormDB)
		log.Printf("Search enabled (%s, index %s)", ms.Host, ms.Index)
	}

	propertyService := service.NewPropertyService(gormDB, files, indexer, service.Pagination{
		DefaultLimit: appConfig.Pagination.DefaultLimit,
		MaxLimit:     appConfig.Pagination.MaxLimit,
	})
	imageService := service.NewImageService(gormDB, files, service.UploadLimits{
		MaxFiles:    appConfig.Storage.MaxFiles,
		MaxFileSize: appConfig.Storage.MaxFileSize(),
	})
	cleanupService := cleanup.NewService(files, gormDB)

	rateLimiter := ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.Burst,
		appConfig.RateLimit.Enabled,
	)
	log.Printf("Rate limiter initialized: %d req/min, burst %d (enabled: %v)",
		appConfig.RateLimit.RequestsPerMinute, appConfig.RateLimit.Burst, appConfig.RateLimit.Enabled)

	appScheduler := scheduler.NewScheduler(appConfig, cleanupService, reindexer)
	if err := appScheduler.Start(); err != nil {
		log.Printf("Warning: Failed to start scheduler: %v", err)
	}
	defer appScheduler.Stop()

	hideDetail := appConfig.Server.IsProduction()
	cleanupDefaults := cleanup.CleanupConfig{
		GracePeriod:      appConfig.Cleanup.GetGracePeriod(),
		MaxDeletionCount: appConfig.Cleanup.MaxDeletionCount,
	}

	router := handlers.BuildRouter(handlers.RouterDeps{
		Config:      appConfig,
		DB:          gormDB,
		Properties:  handlers.NewPropertyHandler(propertyService, hideDetail),
		Images:      handlers.NewImageHandler(imageService, appConfig.Storage.MaxFiles, appConfig.Storage.MaxFileSize(), hideDetail),
		Search:      handlers.NewSearchHandler(searcher, hideDetail),
		Admin:       handlers.NewAdminHandler(gormDB, cleanupService, reindexer, rateLimiter, cleanupDefaults, hideDetail),
		RateLimiter: rateLimiter,
		UploadDir:   files.Root(),
	})

	srv := &http.Server{
		Addr:    ":" + appConfig.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", appConfig.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), appConfig.Server.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
