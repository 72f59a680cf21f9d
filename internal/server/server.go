// Package server is the composition root: it opens the database, builds the
// services and handlers, and maps routes to them.
//
// Dependency flow:
//
//	config.Config → sqlite.DB → repositories → services → handlers → chi routes
//
// Each layer only receives what it needs. Handlers never touch the database
// and services never touch HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/onelink-portfolio/internal/auth"
	"github.com/sakif/onelink-portfolio/internal/classifier"
	"github.com/sakif/onelink-portfolio/internal/config"
	"github.com/sakif/onelink-portfolio/internal/demourl"
	"github.com/sakif/onelink-portfolio/internal/githubapi"
	"github.com/sakif/onelink-portfolio/internal/handler"
	"github.com/sakif/onelink-portfolio/internal/middleware"
	sqliteRepo "github.com/sakif/onelink-portfolio/internal/repository/sqlite"
	"github.com/sakif/onelink-portfolio/internal/service"
)

// stateCleanupInterval is how often the in-memory state store sweeps
// expired entries.
const stateCleanupInterval = time.Minute

// Server owns the router and the database connection; the connection is
// closed when Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// Deps are the collaborators that tests replace. Nil fields are built from
// the config.
type Deps struct {
	OAuth  handler.OAuthProvider
	GitHub service.RepositoryClient
}

// New opens the database and wires every route.
func New(cfg config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
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

	if err := s.setupRoutes(deps); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// DB exposes the database, for the CLI and tests.
func (s *Server) DB() *sqliteRepo.DB { return s.db }

// Close releases the database without serving.
func (s *Server) Close() error { return s.db.Close() }

// NewGitHubClient builds the REST client from config.
func NewGitHubClient(cfg config.Config, logger *slog.Logger) (*githubapi.Client, error) {
	ghCfg := githubapi.DefaultConfig()
	ghCfg.BaseURL = cfg.GitHubBaseURL
	ghCfg.CallTimeout = cfg.GitHubCallTimeout
	ghCfg.MaxRetries = cfg.GitHubMaxRetries
	ghCfg.RequestsPerSecond = cfg.GitHubRPS
	return githubapi.New(ghCfg, logger.With(slog.String("component", "githubapi")))
}

// NewSyncService wires the synchronization orchestrator on top of db. The
// server and portfolioctl share it. client may be nil.
func NewSyncService(cfg config.Config, db *sqliteRepo.DB, client service.RepositoryClient, logger *slog.Logger) (*service.SyncService, error) {
	vault, err := auth.NewVault(cfg.SealingKey())
	if err != nil {
		return nil, fmt.Errorf("creating credential vault: %w", err)
	}

	if client == nil {
		gh, err := NewGitHubClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating GitHub client: %w", err)
		}
		client = gh
	}

	users := db.Users()
	return service.NewSyncService(
		client,
		demourl.New(),
		classifier.New(),
		service.NewVaultCredentials(users, vault),
		users,
		db.Projects(),
		service.SyncConfig{Concurrency: cfg.SyncConcurrency},
		logger.With(slog.String("component", "sync")),
	), nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTES:
//
//	GET    /health
//	GET    /auth/github/login
//	GET    /auth/github/callback
//	POST   /auth/logout
//	GET    /users/me                      (auth)
//	PUT    /users/me                      (auth)
//	*      /users/me/{experience,education,skills}[/{id}]  (auth)
//	GET    /users/{username}
//	POST   /projects/sync                 (auth)
//	GET    /projects                      (auth)
//	GET    /projects/{id}                 (auth)
//	PUT    /projects/{id}                 (auth)
//	DELETE /projects/{id}                 (auth)
//	GET    /portfolio/{username}
//
// Middleware runs in the order it is added: request id, real IP, logging,
// panic recovery, CORS.
func (s *Server) setupRoutes(deps Deps) error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	vault, err := auth.NewVault(cfg.SealingKey())
	if err != nil {
		return fmt.Errorf("creating credential vault: %w", err)
	}
	if cfg.UsesFallbackCredentialKey() {
		s.logger.Warn("CREDENTIAL_KEY not set; GitHub tokens are sealed with JWT_SECRET, rotating it forces every user to log in again")
	}

	var states auth.StateStore
	switch cfg.StateStore {
	case config.StateStoreMemory:
		states = auth.NewMemoryStateStore(stateCleanupInterval)
	default:
		states = s.db.OAuthStates()
	}

	oauth := deps.OAuth
	if oauth == nil {
		if !cfg.OAuthConfigured() {
			s.logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set; GitHub login will fail")
		}
		oauth = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}

	syncService, err := NewSyncService(cfg, s.db, deps.GitHub, s.logger)
	if err != nil {
		return err
	}

	// === Services ===
	users := s.db.Users()
	resume := s.db.Resume()
	projects := s.db.Projects()

	authService := service.NewAuthService(users, tokens, vault, s.logger)
	profileService := service.NewProfileService(users, resume, s.logger)
	projectService := service.NewProjectService(projects, s.logger)
	portfolioService := service.NewPortfolioService(profileService, projects, resume, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(oauth, states, authService, handler.AuthConfig{
		FrontendURL:  cfg.FrontendURL,
		TokenTTL:     tokens.TTL(),
		SecureCookie: cfg.SecureCookie,
	}, s.logger)
	userHandler := handler.NewUserHandler(authService, profileService, s.logger)
	resumeHandler := handler.NewResumeHandler(profileService)
	projectHandler := handler.NewProjectHandler(projectService, syncService, s.logger)
	portfolioHandler := handler.NewPortfolioHandler(portfolioService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(cfg.CORSOrigins))

	requireAuth := auth.RequireAuth(tokens)

	s.router.Get("/health", healthHandler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/users", func(r chi.Router) {
		r.Route("/me", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", userHandler.HandleMe)
			r.Put("/", userHandler.HandleUpdateMe)
			resumeHandler.Routes(r)
		})
		r.Get("/{username}", userHandler.HandleGetPublic)
	})

	s.router.Route("/projects", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/sync", projectHandler.HandleSync)
		r.Get("/", projectHandler.HandleList)
		r.Get("/{id}", projectHandler.HandleGet)
		r.Put("/{id}", projectHandler.HandleUpdate)
		r.Delete("/{id}", projectHandler.HandleDelete)
	})

	s.router.Get("/portfolio/{username}", portfolioHandler.HandleGet)

	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	// WriteTimeout covers a full sync pass of a large account.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("stateStore", s.config.StateStore),
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
