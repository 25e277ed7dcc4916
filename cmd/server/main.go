package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/rosterimport/internal/config"
	"github.com/JonMunkholm/rosterimport/internal/core"
	"github.com/JonMunkholm/rosterimport/internal/logging"
	"github.com/JonMunkholm/rosterimport/internal/remote"
	"github.com/JonMunkholm/rosterimport/internal/store/postgres"
	"github.com/JonMunkholm/rosterimport/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	local := postgres.New(pool)
	if err := local.EnsureSchema(ctx); err != nil {
		return err
	}

	// The pipeline commits to the local store unless a remote one is configured.
	var (
		store       core.Store = local
		spreadsheet []core.SpreadsheetStrategy
	)
	if cfg.Remote.StoreURL != "" || cfg.Remote.ParseURL != "" {
		client := remote.NewClient(remote.Config{
			StoreURL: cfg.Remote.StoreURL,
			ParseURL: cfg.Remote.ParseURL,
			Timeout:  cfg.Remote.Timeout,
		})
		if cfg.Remote.StoreURL != "" {
			store = client
		}
		if cfg.Remote.ParseURL != "" {
			spreadsheet = append(spreadsheet, client.SpreadsheetParser())
		}
	}
	spreadsheet = append(spreadsheet, core.LocalSpreadsheet{})

	defaults := core.DefaultImportOptions()
	defaults.SkipInvalidRows = cfg.Import.SkipInvalidRows
	defaults.DateFormat = cfg.Import.DateFormat
	defaults.DataType = core.RecordType(strings.ToLower(cfg.Import.DefaultRecordType))

	newPipeline := func() *core.Pipeline {
		return core.NewPipeline(core.PipelineConfig{
			Store:       store,
			Spreadsheet: spreadsheet,
			BatchSize:   cfg.Import.BatchSize,
			Defaults:    defaults,
		})
	}

	slog.Info("pipeline configured",
		"store", storeName(cfg),
		"spreadsheet_strategies", len(spreadsheet),
		"batch_size", cfg.Import.BatchSize,
		"record_types", len(core.Definitions()),
	)

	server := web.NewServer(newPipeline, local, web.Options{
		MaxFileSize:    cfg.Import.MaxFileSize,
		MaxSessions:    cfg.Import.MaxSessions,
		SessionWait:    cfg.Import.SessionWait,
		SessionTTL:     cfg.Import.SessionTTL,
		ExecuteTimeout: cfg.Import.Timeout,
		TrustedProxies: cfg.Server.TrustedProxyList(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(cfg.Server.Addr()); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connect(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(db.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

func storeName(cfg *config.Config) string {
	if cfg.Remote.StoreURL != "" {
		return "remote"
	}
	return "postgres"
}
