// Command dataexplorer serves the data explorer dashboard API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nao1215/dataexplorer"
	"github.com/nao1215/dataexplorer/explorer"
	"github.com/nao1215/dataexplorer/internal/api"
	"github.com/nao1215/dataexplorer/internal/config"
	"github.com/nao1215/dataexplorer/internal/logging"
	"github.com/nao1215/dataexplorer/store"
	"github.com/nao1215/dataexplorer/store/duckdb"
	"github.com/nao1215/dataexplorer/summary"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [path ...]\n\nPaths are loaded as tables before serving.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Console)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("failed to close store")
		}
	}()

	paths := append(append([]string{}, cfg.Storage.Preload...), flag.Args()...)
	if len(paths) > 0 {
		if _, err := dataexplorer.NewLoader().AddPaths(paths...).Load(ctx, st); err != nil {
			return err
		}
	}
	if cfg.Storage.DumpDir != "" {
		defer func() {
			if _, derr := dataexplorer.Dump(logger.WithContext(context.Background()), st, cfg.Storage.DumpDir); derr != nil {
				logger.Error().Err(derr).Msg("failed to dump tables")
			}
		}()
	}

	ex := explorer.New(st,
		explorer.WithUploadDir(cfg.Storage.UploadDir),
		explorer.WithSummarizer(summary.New(cfg.SummaryConfig())),
	)
	e := api.NewServer(cfg.Server, api.NewHandler(ex, Version), logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("engine", st.Engine()).
			Str("llm_provider", cfg.LLM.Provider).
			Str("version", Version).
			Msg("server starting")
		errCh <- e.StartServer(srv)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.StorageConfig) (*store.Store, error) {
	zerolog.Ctx(ctx).Debug().Str("engine", cfg.Engine).Str("dsn", cfg.DSN).Msg("opening store")
	switch cfg.Engine {
	case config.EngineDuckDB:
		return duckdb.Open(ctx, cfg.DSN)
	default:
		return store.OpenSQLite(ctx, cfg.DSN)
	}
}
