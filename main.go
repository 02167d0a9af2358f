package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/isdelr/feedwall-be/internal/api"
	"github.com/isdelr/feedwall-be/internal/auth"
	"github.com/isdelr/feedwall-be/internal/config"
	"github.com/isdelr/feedwall-be/internal/database"
	"github.com/isdelr/feedwall-be/internal/logger"
	"github.com/isdelr/feedwall-be/internal/monitoring"
	"github.com/isdelr/feedwall-be/internal/repository"
	"github.com/isdelr/feedwall-be/internal/services"
	"github.com/isdelr/feedwall-be/internal/storage"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply database migrations: %v", err)
	}

	// Set up the image artifact store
	imageStore, err := storage.NewLocalStore(cfg.ImagePath)
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	// Set up services
	tokenService := auth.NewTokenService(cfg.JWTSecret)
	userService := services.NewUserService(db)
	eventService := services.NewEventService(db)
	postRepo := repository.NewSQLitePostRepository(db)
	postService := services.NewPostService(postRepo, userService, eventService, imageStore)

	// Set up and run the background reconciler
	reconciler, err := monitoring.NewReconciler(db, imageStore, eventService, cfg.ReconcileCron)
	if err != nil {
		log.Fatalf("Failed to initialize reconciler: %v", err)
	}
	go reconciler.Run()

	// Set up router
	router := api.NewRouter(tokenService, userService, postService, imageStore.BasePath(), cfg.AllowedOrigin)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on port %d\n", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	reconciler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
