// Command tempvortex runs the disposable-mailbox engine behind an HTTP
// API and websocket event stream, or as a terminal inbox with -tui.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nhle/tempvortex/internal/app"
	"github.com/nhle/tempvortex/internal/logger"
	"github.com/nhle/tempvortex/internal/model"
	httptransport "github.com/nhle/tempvortex/internal/transport/http"
	"github.com/nhle/tempvortex/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tempvortex: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the YAML configuration file")
	recoverLink := flag.String("recover", "", "recovery link to restore a mailbox from")
	tui := flag.Bool("tui", false, "run the terminal inbox instead of the HTTP server")
	flag.Parse()

	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	if *tui {
		// The terminal owns stderr while the inbox is open.
		cfg.Log.Quiet = true
		if cfg.Log.LogFile == "" {
			cfg.Log.LogFile = filepath.Join(filepath.Dir(*configPath), "tempvortex.log")
		}
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	var entry *url.URL
	if *recoverLink != "" {
		entry, err = url.Parse(*recoverLink)
		if err != nil {
			return fmt.Errorf("parsing recovery link: %w", err)
		}
	}
	if _, err := a.Start(ctx, entry); err != nil {
		return err
	}

	if *tui {
		exportDir, err := os.Getwd()
		if err != nil {
			exportDir = "."
		}
		return ui.Run(ctx, ui.Engine{
			Session:         a.Session,
			Sync:            a.Sync,
			Registry:        a.Registry,
			Bus:             a.Bus,
			Logger:          log.Named("ui"),
			RecoveryBaseURL: cfg.Session.RecoveryBaseURL,
			ExportDir:       exportDir,
		})
	}

	return serve(ctx, a, log)
}

// serve exposes the engine over HTTP until ctx is cancelled.
func serve(ctx context.Context, a *app.App, log *zap.Logger) error {
	cfg := a.Config

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Session:         a.Session,
		Sync:            a.Sync,
		Registry:        a.Registry,
		Bus:             a.Bus,
		Store:           a.Store,
		Metrics:         a.Metrics,
		Gatherer:        prometheus.DefaultGatherer,
		Logger:          log.Named("http"),
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		RecoveryBaseURL: cfg.Session.RecoveryBaseURL,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
