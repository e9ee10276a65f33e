// Package server is the composition root: it builds the services and
// handlers over a storage backend, mounts them on a chi router behind the
// middleware chain, and runs the HTTP server until SIGINT/SIGTERM.
//
// ROUTES:
//
//	GET    /healthz                              storage ping
//	GET    /metrics                              Prometheus
//	GET    /auth/github/login                    (auth enabled)
//	GET    /auth/github/callback                 (auth enabled)
//	POST   /auth/logout                          (auth enabled)
//	GET    /api/public/collections/{id}[/items]  no auth
//	GET    /api/me                               RequireAuth
//	*      /api/favorites/...                    RequireAuth
//	*      /api/collections/...                  RequireAuth
//
// Without a JWT secret there is no way to identify a caller, so the
// per-user routes are not mounted at all.
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
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/spacedesk/internal/auth"
	"github.com/sakif/spacedesk/internal/config"
	"github.com/sakif/spacedesk/internal/handler"
	"github.com/sakif/spacedesk/internal/middleware"
	"github.com/sakif/spacedesk/internal/repository"
	"github.com/sakif/spacedesk/internal/service"
)

// Server owns the router and the storage backend. The store is closed when
// Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	store  repository.Store
	logger *slog.Logger
}

// New wires every layer over store:
//
//	store → FavoritesService/CollectionsService/AuthService → handlers → router
func New(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		store:  store,
		logger: logger,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() error {
	// Order: request ID first so every later log line can carry it; Recoverer
	// inside Logger/Metrics so a panic is still logged and counted as a 500.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.Security.CORSOrigins))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	favoritesHandler := handler.NewFavoritesHandler(service.NewFavoritesService(s.store, s.logger), s.logger)
	collectionsHandler := handler.NewCollectionsHandler(service.NewCollectionsService(s.store, s.logger), s.logger)

	var (
		tokens      *auth.TokenService
		authHandler *handler.AuthHandler
	)
	if s.config.Auth.Enabled() {
		var err error
		tokens, err = auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}

		github := auth.NewGitHubProvider(
			s.config.Auth.GitHubClientID,
			s.config.Auth.GitHubClientSecret,
			s.config.Auth.GitHubCallbackURL,
		)
		if !github.Enabled() {
			s.logger.Warn("GitHub OAuth not configured, login is unavailable")
		}
		authHandler = handler.NewAuthHandler(github, service.NewAuthService(s.store, tokens, s.logger), s.logger)

		s.router.Route("/auth", func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
			r.Post("/logout", authHandler.HandleLogout)
		})
	} else {
		s.logger.Warn("JWT_SECRET not set, per-user API routes are disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		if !s.config.Security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(s.config.Security.RateLimitRequests, s.config.Security.RateLimitWindow))
		}

		r.Route("/public/collections", collectionsHandler.PublicRoutes)

		if tokens == nil {
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Route("/favorites", favoritesHandler.Routes)
			r.Route("/collections", collectionsHandler.Routes)
		})
	})

	return nil
}

// handleHealth reports 503 when the storage backend does not answer.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to server.shutdown_timeout and closes the store.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Database.Driver),
			slog.Bool("auth", s.config.Auth.Enabled()),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
