package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/magic-amatlan/backend/internal/api"
	"github.com/magic-amatlan/backend/internal/events"
	"github.com/magic-amatlan/backend/internal/feed"
	"github.com/magic-amatlan/backend/internal/locale"
	"github.com/magic-amatlan/backend/internal/lunar"
	"github.com/magic-amatlan/backend/internal/storage"
	"github.com/magic-amatlan/backend/internal/storage/models"
	"github.com/magic-amatlan/backend/internal/websocket"
)

var (
	serveAddr        string
	serveDataDir     string
	serveStaticDir   string
	serveHealthCheck bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	Long: `Starts the REST API, the websocket hub, the moon phase scheduler and the
ICS feed. Flags override the config file and AMATLAN_* environment variables.

Use --health-check from a container HEALTHCHECK to check a running server.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP server address (default from config, :8099)")
	serveCmd.Flags().StringVar(&serveDataDir, "data", "", "Data directory for SQLite database (default from config, /data)")
	serveCmd.Flags().StringVar(&serveStaticDir, "static", "", "Directory for static frontend files (default from config, ./static)")
	serveCmd.Flags().BoolVar(&serveHealthCheck, "health-check", false, "Run health check against a running server and exit")
}

func applyServeFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("data") {
		cfg.Storage.DataDir = serveDataDir
	}
	if cmd.Flags().Changed("static") {
		cfg.Server.StaticDir = serveStaticDir
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	applyServeFlags(cmd)

	// Health check mode for Docker HEALTHCHECK
	if serveHealthCheck {
		return runHealthCheck(cfg.Server.Addr)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting Magic Amatlán backend", zap.String("version", version))

	db, err := storage.NewDB(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	catalog, err := locale.New(logger)
	if err != nil {
		return err
	}
	namer := catalog.Namer(cfg.Lunar.DefaultLanguage)
	loc := cfg.Location()

	hub := websocket.NewHub(logger)
	broadcaster := websocket.NewEventBroadcaster(hub, namer, loc, logger)

	// The feed lists events and the event service notifies the feed, so the
	// feed is bound after both exist.
	var feedService *feed.Service
	eventService := events.NewService(
		storage.NewEventRepository(db),
		storage.NewAttendeeRepository(db),
		logger,
		events.WithObserver(events.MultiObserver{
			broadcaster,
			events.ObserverFunc(func(change models.EventChange) {
				feedService.EventChanged(change)
			}),
		}),
	)
	feedService = feed.NewService(&feed.Builder{
		ProductID:  cfg.Feed.ProductID,
		Months:     cfg.Feed.Months,
		Location:   loc,
		Translator: namer,
		Refresh:    cfg.RebuildInterval(),
	}, eventService, cfg.RebuildInterval(), logger)

	scheduler := lunar.NewScheduler(cfg.Lunar.RefreshSpec, broadcaster.BroadcastPhaseChanged, logger)

	router := api.NewRouter(api.Services{
		DB:          db,
		Hub:         hub,
		Events:      eventService,
		Scheduler:   scheduler,
		Catalog:     catalog,
		Feed:        feedService,
		Location:    loc,
		MaxResults:  cfg.Lunar.MaxResults,
		HorizonDays: cfg.Lunar.HorizonDays,
		StaticDir:   cfg.Server.StaticDir,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if err := scheduler.Start(); err != nil {
		stop()
		g.Wait()
		return err
	}
	defer scheduler.Stop()

	if err := feedService.Start(); err != nil {
		stop()
		g.Wait()
		return err
	}
	defer feedService.Stop()

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "health check: %s returned %s\n", url, resp.Status)
		return fmt.Errorf("health check: unhealthy (%d)", resp.StatusCode)
	}
	return nil
}
