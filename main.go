package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/zoneclock/meeting-sync/internal/handlers"
	"github.com/zoneclock/meeting-sync/internal/locations"
	"github.com/zoneclock/meeting-sync/internal/models"
	"github.com/zoneclock/meeting-sync/internal/registry"
	"github.com/zoneclock/meeting-sync/internal/server"
	"github.com/zoneclock/meeting-sync/internal/ws"
)

func main() {
	// -----------------------------------------------------------------------
	// Configuration from environment variables.
	// -----------------------------------------------------------------------
	port := envOrDefault("PORT", "8080")
	shareURLBase := strings.TrimRight(envOrDefault("SHARE_URL_BASE", "http://localhost:"+port), "/")
	allowedOrigins := parseOrigins(envOrDefault("ALLOWED_ORIGINS", "*"))
	maxMessageSize := parseInt64(envOrDefault("WS_MAX_MESSAGE_SIZE", ""), 0)
	locationsPath := os.Getenv("LOCATIONS_FILE")

	// -----------------------------------------------------------------------
	// Location catalog.
	// -----------------------------------------------------------------------
	catalog := loadCatalog(locationsPath)
	log.Printf("Loaded %d locations", catalog.Len())

	// -----------------------------------------------------------------------
	// WebSocket hub and meeting registry. The hub is the registry's
	// broadcaster, so it is built first and the registry attached after.
	// -----------------------------------------------------------------------
	hub := ws.NewHub(ws.Config{
		AllowedOrigins: allowedOrigins,
		MaxMessageSize: maxMessageSize,
		Enrich: func(record *models.MeetingRecord) {
			catalog.EnrichParticipants(record, time.Now())
		},
	})
	reg := registry.New(hub)
	hub.SetSource(reg)
	go hub.Run()

	// -----------------------------------------------------------------------
	// HTTP server.
	// -----------------------------------------------------------------------
	h := &handlers.Handlers{
		Registry:     reg,
		Catalog:      catalog,
		ShareURLBase: shareURLBase,
	}
	router := server.NewRouter(h, hub)
	httpServer := server.NewHTTPServer(":"+port, router)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Meeting sync service starting on :%s", port)
		errCh <- httpServer.ListenAndServe()
	}()

	// -----------------------------------------------------------------------
	// Graceful shutdown on SIGINT/SIGTERM.
	// -----------------------------------------------------------------------
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case sig := <-stop:
		log.Printf("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		log.Printf("Hub shutdown: %v", err)
	}
	log.Println("Shutdown complete")
}

// envOrDefault returns the value of the environment variable or the default if unset/empty.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseOrigins splits a comma-separated origin list.
func parseOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// parseInt64 parses a positive integer, falling back to the default.
func parseInt64(raw string, defaultVal int64) int64 {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
		return v
	}
	return defaultVal
}

// loadCatalog builds the location catalog, merging in a registry file
// when one is configured. A broken file falls back to the built-ins.
func loadCatalog(path string) *locations.Catalog {
	if path == "" {
		return locations.NewCatalog()
	}

	catalog, err := locations.NewCatalogFromFile(path)
	if err != nil {
		log.Printf("Warning: could not load locations from %s: %v", path, err)
		return locations.NewCatalog()
	}
	log.Printf("Loaded locations from %s", path)
	return catalog
}
