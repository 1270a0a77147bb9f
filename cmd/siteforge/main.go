package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	sfhttp "github.com/Strob0t/SiteForge/internal/adapter/http"
	sfotel "github.com/Strob0t/SiteForge/internal/adapter/otel"
	"github.com/Strob0t/SiteForge/internal/adapter/postgres"
	"github.com/Strob0t/SiteForge/internal/config"
	"github.com/Strob0t/SiteForge/internal/logger"
	"github.com/Strob0t/SiteForge/internal/middleware"
	"github.com/Strob0t/SiteForge/internal/service"
)

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func dispatch(args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		return runServe(args)
	case "migrate":
		return runMigrate(args)
	case "admin":
		return runAdmin(args)
	case "help":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: siteforge [command] [options]

Commands:
  serve     Run the HTTP server (default)
  migrate   Apply database migrations and exit
  admin     Administrative commands (see "siteforge admin help")

Options:
  -c, --config PATH    YAML config file (default siteforge.yaml)
  -p, --port PORT      HTTP port
  --log-level LEVEL    debug, info, warn, error
  --driver NAME        storage driver (postgres, sqlite)
  --dsn DSN            PostgreSQL DSN
  --nats-url URL       NATS server URL
`)
}

// loadConfig parses the shared flags, loads configuration and installs
// the default logger writing to logOut.
func loadConfig(args []string, logOut io.Writer) (*config.Config, logger.Closer, error) {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	cfg, path, err := config.LoadWithCLI(flags)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, closer := logger.NewWithWriter(cfg.Logging, logOut)
	slog.SetDefault(log)
	slog.Info("config loaded",
		"file", path,
		"port", cfg.Server.Port,
		"driver", cfg.Storage.Driver,
		"nats", cfg.NATS.Enabled,
		"static_directory", cfg.Directory.StaticFile != "",
	)
	return cfg, closer, nil
}

func runMigrate(args []string) error {
	cfg, closer, err := loadConfig(args, os.Stdout)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := context.Background()
	_, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	closeStore()

	if cfg.Storage.Driver == config.DriverPostgres {
		v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		slog.Info("schema up to date", "driver", cfg.Storage.Driver, "version", v)
		return nil
	}
	slog.Info("schema up to date", "driver", cfg.Storage.Driver)
	return nil
}

func runServe(args []string) error {
	cfg, closer, err := loadConfig(args, os.Stdout)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	shutdownOTEL, err := sfotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := sfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	infra, err := openInfra(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer infra.Close()

	// --- Services ---

	diagnostics := service.NewDiagnostics(metrics, infra.queue)
	defer diagnostics.Close()

	listener := service.NewChangeListener(infra.cached, service.DirectoryInvalidator{Dir: infra.directory})
	if infra.queue != nil {
		cancelSub, err := listener.Start(ctx, infra.queue)
		if err != nil {
			return err
		}
		defer cancelSub()
	}

	sites := service.NewSiteService(infra.directory, infra.cached, diagnostics, metrics)

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst, "/health")
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(sfhttp.Logger)
	r.Use(sfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(sfhttp.SecurityHeaders)
	r.Use(sfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.ForwardedHost(cfg.Server.TrustedHostHeader))
	r.Use(limiter.Handler)
	r.Use(chimw.Timeout(30 * time.Second))

	sfhttp.MountRoutes(r, &sfhttp.Handlers{Sites: sites, Ping: infra.guarded.Ping})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
