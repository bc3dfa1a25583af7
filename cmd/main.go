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

	"github.com/beingkumara/placement-pitcher/internal/api"
	"github.com/beingkumara/placement-pitcher/internal/cli"
	"github.com/beingkumara/placement-pitcher/internal/config"
	"github.com/beingkumara/placement-pitcher/internal/database"
	"github.com/beingkumara/placement-pitcher/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Check if running a CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	// Optional bootstrap admin on an empty database
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService := services.NewUserService(db, nil, logService, cfg.FrontendURL)
	if err := userService.SeedDefaultAdmin(os.Getenv("PITCHER_ADMIN_EMAIL"), os.Getenv("PITCHER_ADMIN_PASSWORD")); err != nil {
		log.Printf("Warning: admin seed failed: %v", err)
	}

	router, scheduler := api.SetupRouter(db, cfg)
	scheduler.Start()

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("Starting Placement Pitcher server on port %s", cfg.APIPort)
		log.Printf("Database path: %s", cfg.DatabasePath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown: stop the poller first so no cycle outlives the DB.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
