package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devilmonastery/tally/internal/api"
	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/config"
	"github.com/devilmonastery/tally/internal/credstore"
	"github.com/devilmonastery/tally/internal/pkg/logger"
	"github.com/devilmonastery/tally/web/internal/handlers"
	"github.com/devilmonastery/tally/web/internal/middleware"
	"github.com/devilmonastery/tally/web/internal/render"
	"github.com/devilmonastery/tally/web/internal/session"
)

// sweepInterval is how often idle session clients are dropped
const sweepInterval = time.Minute

// setupWebLogging configures the global logger for the web service
func setupWebLogging(logLevel, logFormat string) error {
	cfg := logger.Config{
		Level:       logger.ParseLevel(logLevel),
		LogToStderr: true, // Web service always logs to stderr
		Format:      logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	// Set as default logger so all slog.Info/Warn/Error calls use our configured logger
	slog.SetDefault(globalLogger)

	return nil
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging (must be done before any logging calls)
	if err = setupWebLogging(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to setup logging: %v\n", err)
		os.Exit(1)
	}

	log := slog.Default().With("component", "web")
	log.Info("starting tally web service", slog.String("api", cfg.API.BaseURL))

	templates, err := render.LoadTemplates(nil)
	if err != nil {
		log.Error("failed to load templates", slog.Any("error", err))
		os.Exit(1)
	}
	render.LogTemplateNames(templates, log)

	sessionSecret, err := loadSessionSecret(cfg.Web.SessionSecret, log)
	if err != nil {
		log.Error("failed to set up session secret", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("failed to open credential store", slog.Any("error", err))
		os.Exit(1)
	}

	registry := session.NewRegistry(store, newClientFactory(cfg),
		session.WithIdleTimeout(cfg.Web.IdleTimeout),
		session.WithCredentialMaxAge(cfg.Web.SessionMaxAge),
		session.WithAuthOptions(api.WithTokenPath(cfg.Auth.TokenPath)),
		session.WithLogger(log),
	)
	go registry.Run(ctx, sweepInterval)

	sessionMgr := session.NewManager(sessionSecret, cfg.Web.SessionMaxAge)
	h := handlers.New(sessionMgr, registry, templates, cfg.Auth.LoginURL, log)
	authMw := middleware.NewAuthMiddleware(sessionMgr, registry, h.SessionExpired, log)

	serveMetricsInline := cfg.Web.MetricsPort == 0
	router := createRouter(h, authMw, sessionMgr, log, serveMetricsInline)

	if !serveMetricsInline {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Web.MetricsPort)
			log.Info("serving metrics", slog.String("address", addr))
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				log.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	log.Info("listening", slog.String("address", addr))

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Error("failed to start server", slog.Any("error", err))
		os.Exit(1)
	}
}

// loadSessionSecret decodes the configured secret, or generates a random one
// (dev mode only) when none is set
func loadSessionSecret(configured string, log *slog.Logger) ([]byte, error) {
	if configured != "" {
		secret, err := base64.StdEncoding.DecodeString(configured)
		if err == nil {
			log.Info("using configured session secret (sessions will persist across restarts)")
			return secret, nil
		}
		log.Warn("failed to decode session secret, generating a random one", slog.Any("error", err))
	} else {
		log.Warn("no session secret configured, generating random one (sessions won't persist)")
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return secret, nil
}

// openStore returns the credential store named by the config
func openStore(ctx context.Context, cfg *config.Config) (client.CredentialStore, error) {
	switch cfg.Store.Kind {
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
		defer cancel()
		store, err := credstore.Dial(dialCtx, credstore.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
			Prefix:      cfg.Store.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return client.NewMemoryStore(), nil
	}
}

// newClientFactory builds per-session API clients from the config
func newClientFactory(cfg *config.Config) session.ClientFactory {
	return func(store client.CredentialStore, nav client.Navigator) (*client.Client, error) {
		return client.New(cfg.API.BaseURL, store,
			client.WithTimeout(cfg.API.Timeout),
			client.WithRefreshPath(cfg.Auth.RefreshPath),
			client.WithRefreshTransport(client.RefreshTransport(cfg.Auth.RefreshTransport)),
			client.WithClientRefreshTimeout(cfg.Auth.RefreshTimeout),
			client.WithLoginNavigator(nav),
			client.WithLogger(slog.Default()),
		)
	}
}

// createRouter sets up the HTTP router with all routes and middleware
func createRouter(h *handlers.Handler, authMw *middleware.AuthMiddleware, sessions *session.Manager, log *slog.Logger, withMetrics bool) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LogRequest(log, sessions))

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	if withMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// Public routes (no auth required)
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/session", http.StatusSeeOther)
	}).Methods("GET")
	router.HandleFunc("/login", h.LoginPage).Methods("GET")
	router.HandleFunc("/login", h.Login).Methods("POST")
	router.HandleFunc("/logout", h.Logout).Methods("GET", "POST")

	// Session-backed routes
	router.Handle("/session", authMw.RequireSession(http.HandlerFunc(h.Session))).Methods("GET")
	router.Handle("/api/{path:.*}", authMw.RequireSession(http.HandlerFunc(h.APIProxy)))

	return router
}
