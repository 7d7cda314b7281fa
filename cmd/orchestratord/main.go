// orchestratord runs the execution orchestrator: a bus consumer that tracks
// accepted requests, launches them on AWX or OO, reconciles their status on
// a cadence, and serves a read-only inspection API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-logger/glog"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-orchestrator"
	"github.com/goliatone/go-orchestrator/api"
	"github.com/goliatone/go-orchestrator/backend"
	"github.com/goliatone/go-orchestrator/dispatcher"
	"github.com/goliatone/go-orchestrator/engine"
	"github.com/goliatone/go-orchestrator/store"
	"github.com/goliatone/go-orchestrator/trigger"
)

type cli struct {
	Config   string        `short:"c" type:"path" help:"Path to the yaml config file."`
	DB       string        `help:"Override the sqlite database path."`
	Addr     string        `help:"Override the HTTP listen address."`
	Cadence  time.Duration `help:"Override the reconcile cadence."`
	LogLevel string        `default:"info" enum:"trace,debug,info,warn,error" help:"Log level."`
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("orchestratord"),
		kong.Description("Job execution orchestrator for AWX and OO backends."),
	)
	kctx.FatalIfErrorf(run(flags))
}

func run(flags cli) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger := newLogger(flags.LogLevel)
	logger.Info("starting orchestratord, cadence %s, store %s", cfg.Cadence.Std(), cfg.Store.Path)

	db, err := sql.Open("sqlite3", cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.NewSQLite(db, "")

	bus := dispatcher.New()

	engineOpts := []engine.Option{
		engine.WithPublisher(dispatcher.NewEventPublisher(bus)),
		engine.WithLogger(logger),
		engine.WithLaunchRetry(cfg.LaunchRetry),
		engine.WithPolling(cfg.Polling),
	}
	if cfg.Backends.AWX.BaseURL != "" {
		engineOpts = append(engineOpts,
			engine.WithAdapter(orchestrator.TargetAWX, backend.NewAWX(cfg.Backends.AWX, logger)))
	}
	if cfg.Backends.OO.BaseURL != "" {
		engineOpts = append(engineOpts,
			engine.WithAdapter(orchestrator.TargetOO, backend.NewOO(cfg.Backends.OO, logger)))
	}
	eng := engine.New(st, engineOpts...)

	dispatcher.BindRequestConsumer(bus, eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := trigger.NewScheduler(trigger.WithLogger(logger))
	worker := trigger.NewWorker(eng, cfg.Cadence.Std(), scheduler)
	if err := worker.Start(ctx); err != nil {
		return err
	}

	apiServer := api.NewServer(st, api.WithLogger(logger))
	httpServer := &http.Server{
		Addr:    cfg.API.Addr,
		Handler: apiServer.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("api server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown: %v", err)
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Error("worker stop: %v", err)
	}
	logger.Info("orchestratord stopped")
	return nil
}

func loadConfig(flags cli) (orchestrator.Config, error) {
	cfg := orchestrator.DefaultConfig()
	if flags.Config != "" {
		data, err := os.ReadFile(flags.Config)
		if err != nil {
			return cfg, err
		}
		cfg, err = orchestrator.ParseConfig(data)
		if err != nil {
			return cfg, err
		}
	}
	if flags.DB != "" {
		cfg.Store.Path = flags.DB
	}
	if flags.Addr != "" {
		cfg.API.Addr = flags.Addr
	}
	if flags.Cadence > 0 {
		cfg.Cadence = orchestrator.Duration(flags.Cadence)
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) orchestrator.Logger {
	base := glog.NewLogger(
		glog.WithLevel(level),
	)
	return glogAdapter{logger: base}
}

// glogAdapter bridges go-logger to this module's logging contract.
type glogAdapter struct {
	logger glog.Logger
}

func (l glogAdapter) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogAdapter) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogAdapter) WithContext(ctx context.Context) orchestrator.Logger {
	return glogAdapter{logger: l.logger.WithContext(ctx)}
}

func (l glogAdapter) WithFields(fields map[string]any) orchestrator.Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogAdapter{logger: fl.WithFields(fields)}
	}
	return l
}
