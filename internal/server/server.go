// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects storage, services,
// handlers, middleware and routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and a logger, then:
//
//	Server.New() creates: sqlite.DB + storage.Local
//	                    → PostService / UserService / StudentService
//	                    → handlers
//
// This is the "composition root" pattern: all dependencies are wired in
// one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/lesson-api/internal/auth"
	"github.com/sakif/lesson-api/internal/config"
	"github.com/sakif/lesson-api/internal/handler"
	"github.com/sakif/lesson-api/internal/middleware"
	sqliteRepo "github.com/sakif/lesson-api/internal/repository/sqlite"
	"github.com/sakif/lesson-api/internal/service"
	"github.com/sakif/lesson-api/internal/storage"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after graceful
// shutdown; callers that never Start (tests) call Close.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	store  *storage.Local
	creds  *auth.CredentialStore
	tokens *auth.TokenService // nil when JWT_SECRET is unset
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
//  1. Create the database (sqlite.New) and upload storage (storage.NewLocal)
//  2. Hash the configured password into a CredentialStore
//  3. Create services with the repository interfaces they need
//  4. Create handlers with the services, then wire routes
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing upload dir: %w", err)
	}

	creds, err := auth.NewCredentialStore(cfg.AuthUsername, cfg.AuthPassword, cfg.BcryptCost)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up credentials: %w", err)
	}

	var tokens *auth.TokenService
	if cfg.TokensEnabled() {
		tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("setting up tokens: %w", err)
		}
	} else {
		logger.Info("JWT_SECRET not set: bearer tokens disabled, Basic auth only")
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		store:  store,
		creds:  creds,
		tokens: tokens,
	}
	s.setupRoutes()

	return s, nil
}

// Handler returns the fully wired router. Tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Safe to call if Start was never called.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                             → welcome + counts     (public)
// GET    /healthz                      → liveness             (public)
// GET    /metrics                      → Prometheus           (public)
// GET    /uploads/{name}               → uploaded images      (public)
// GET    /api/me                       → who am I
// POST   /api/token                    → bearer token (only with JWT_SECRET)
// GET    /api/posts?_start&_limit      → list posts
// POST   /api/posts                    → create post (JSON)
// POST   /api/posts/upload             → create post (multipart)
// GET    /api/posts/{id}               → get post
// PUT    /api/posts/{id}               → partial update
// DELETE /api/posts/{id}               → delete post
// PUT    /api/posts/{id}/upload        → replace image (multipart)
// GET    /api/users, POST /api/users   → list / create
// GET|PUT|DELETE /api/users/{id}       → get / update / delete
// POST   /api/demo-users               → seed demo users
// GET    /api/students                 → roster
// PUT    /api/students/{id}/attend|grade|online
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, RealIP, Recoverer
// 2. Logger, Metrics
// 3. CORS, before auth so preflight OPTIONS requests never need credentials
// 4. RequireAuth, only on /api
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// === SERVICES ===
	// s.db implements all three repository interfaces; each service only
	// sees the one it needs.
	postService := service.NewPostService(s.db, s.store, s.logger)
	userService := service.NewUserService(s.db, s.logger)
	studentService := service.NewStudentService(s.db, s.logger)

	rootHandler := handler.NewRootHandler(postService, userService, studentService, s.creds.Username(), s.logger)
	authHandler := handler.NewAuthHandler(s.tokens, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger, s.config.MaxUploadBytes)
	userHandler := handler.NewUserHandler(userService, s.logger)
	studentHandler := handler.NewStudentHandler(studentService, s.logger)

	// === PUBLIC ROUTES ===
	s.router.Get("/", rootHandler.HandleWelcome)
	s.router.Get("/healthz", rootHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	fileServer := http.FileServer(http.Dir(s.store.Dir()))
	s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", noDirListing(fileServer)))

	// === PROTECTED API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.creds, s.tokens))

		r.Get("/me", authHandler.HandleMe)
		if s.tokens != nil {
			r.Post("/token", authHandler.HandleToken)
		}

		r.Get("/posts", postHandler.HandleList)
		r.Post("/posts", postHandler.HandleCreate)
		r.Post("/posts/upload", postHandler.HandleCreateUpload)
		r.Get("/posts/{id}", postHandler.HandleGet)
		r.Put("/posts/{id}", postHandler.HandleUpdate)
		r.Delete("/posts/{id}", postHandler.HandleDelete)
		r.Put("/posts/{id}/upload", postHandler.HandleReplaceUpload)

		r.Get("/users", userHandler.HandleList)
		r.Post("/users", userHandler.HandleCreate)
		r.Get("/users/{id}", userHandler.HandleGet)
		r.Put("/users/{id}", userHandler.HandleUpdate)
		r.Delete("/users/{id}", userHandler.HandleDelete)
		r.Post("/demo-users", userHandler.HandleDemo)

		r.Get("/students", studentHandler.HandleList)
		r.Put("/students/{id}/attend", studentHandler.HandleAttend)
		r.Put("/students/{id}/grade", studentHandler.HandleGrade)
		r.Put("/students/{id}/online", studentHandler.HandleOnline)
	})
}

// noDirListing answers 404 for directory paths so /uploads/ can't be
// used to enumerate stored files.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second, // uploads can be slow
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("uploads", s.store.Dir()),
			slog.Bool("tokens", s.tokens != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
