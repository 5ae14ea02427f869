// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: it wires the dependency chain
// (sqlite.DB → repositories → services → handlers) in one place and decides
// which middleware runs on which routes. main.go stays minimal — it builds
// the config, logger, geocoder, and asset store, then hands them here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/places-api/internal/auth"
	"github.com/sakif/places-api/internal/config"
	"github.com/sakif/places-api/internal/geocode"
	"github.com/sakif/places-api/internal/handler"
	"github.com/sakif/places-api/internal/middleware"
	sqliteRepo "github.com/sakif/places-api/internal/repository/sqlite"
	"github.com/sakif/places-api/internal/service"
	"github.com/sakif/places-api/internal/storage"
)

// Server owns the router and the resources that must be released on
// shutdown, most importantly the database connection.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server: opens the database, assembles the dependency chain,
// and registers all routes.
//
// The geocoder and asset store are passed in rather than built here so main
// can pick the backend (disk vs S3) and tests can substitute fakes.
func New(cfg config.Config, logger *slog.Logger, geocoder geocode.Geocoder, assets storage.ObjectStore) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(geocoder, assets); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /health                  → liveness probe
//	GET    /uploads/*               → uploaded images (disk backend)
//	GET    /api/places/{pid}        → single place
//	GET    /api/places/user/{uid}   → places created by a user
//	POST   /api/places              → create place           [auth]
//	PATCH  /api/places/{pid}        → update title/description [auth]
//	DELETE /api/places/{pid}        → delete place            [auth]
//	GET    /api/users               → list users
//	GET    /api/users/{uid}         → single user
//	POST   /api/users/signup        → register + token
//	POST   /api/users/login         → authenticate + token
func (s *Server) setupRoutes(geocoder geocode.Geocoder, assets storage.ObjectStore) error {
	// Middleware order matters: request ID and real IP first so the logger
	// sees them, recoverer before anything that can panic.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	if len(s.config.TrustedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.TrustedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	userService := service.NewUserService(s.db.Users(), tokens, passwords, s.logger)
	placeService := service.NewPlaceService(s.db, geocoder, assets, s.logger)

	userHandler := handler.NewUserHandler(userService, assets, s.logger)
	placeHandler := handler.NewPlaceHandler(placeService, assets, s.logger)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Uploaded images are only served locally with the disk backend; with S3
	// the stored references point at the bucket instead.
	if s.config.AssetBackend == config.AssetBackendDisk {
		fileServer := http.FileServer(http.Dir(s.config.UploadDir))
		s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/places", func(r chi.Router) {
			r.Get("/{pid}", placeHandler.HandleGetByID)
			r.Get("/user/{uid}", placeHandler.HandleListByUser)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Post("/", placeHandler.HandleCreate)
				r.Patch("/{pid}", placeHandler.HandleUpdate)
				r.Delete("/{pid}", placeHandler.HandleDelete)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.HandleList)
			r.Get("/{uid}", userHandler.HandleGetByID)
			r.Post("/signup", userHandler.HandleSignup)
			r.Post("/login", userHandler.HandleLogin)
		})
	})

	return nil
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30s to
// drain, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("assetBackend", s.config.AssetBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
